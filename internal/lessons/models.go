// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"fmt"
	"time"
)

// User is the sample user of the serialization lessons.
type User struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// Order is the sample order used across lessons.
type Order struct {
	OrderID    string    `json:"orderId"`
	CustomerID string    `json:"customerId"`
	Product    string    `json:"product"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

func sampleUser(i int) User {
	return User{
		UserID:     fmt.Sprintf("user-%03d", i),
		Name:       fmt.Sprintf("User %d", i),
		Email:      fmt.Sprintf("user%d@example.com", i),
		Department: []string{"engineering", "sales", "support"}[i%3],
	}
}

func sampleOrder(i int, status string) Order {
	return Order{
		OrderID:    fmt.Sprintf("order-%04d", i),
		CustomerID: fmt.Sprintf("customer-%03d", i%50),
		Product:    []string{"laptop", "monitor", "keyboard", "mouse"}[i%4],
		Quantity:   1 + i%5,
		Price:      19.99 + float64(i%10)*10,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
}
