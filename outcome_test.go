// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"
)

// TestStatus_String tests the String() method for all Status values.
func TestStatus_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   Status
		expected string
	}{
		{
			name:     "Delivered",
			status:   Delivered,
			expected: "Delivered",
		},
		{
			name:     "Failed",
			status:   Failed,
			expected: "Failed",
		},
		{
			name:     "Unknown - invalid status value",
			status:   Status(999),
			expected: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := tt.status.String()
			assert.Equal(t, tt.expected, result, "String() should return correct value")
		})
	}
}

func TestOutcomeFromKgo(t *testing.T) {
	t.Parallel()

	ts := time.UnixMilli(1_700_000_000_123)

	tests := []struct {
		name     string
		record   *kgo.Record
		err      error
		latency  time.Duration
		expected DeliveryOutcome
	}{
		{
			name:    "delivered",
			record:  &kgo.Record{Topic: "t", Partition: 3, Offset: 99, Timestamp: ts},
			latency: 5 * time.Millisecond,
			expected: DeliveryOutcome{
				Topic:     "t",
				Partition: 3,
				Offset:    99,
				Timestamp: 1_700_000_000_123,
				Latency:   5 * time.Millisecond,
			},
		},
		{
			name:   "delivered without timestamp",
			record: &kgo.Record{Topic: "t", Partition: 0, Offset: 0},
			expected: DeliveryOutcome{
				Topic:     "t",
				Timestamp: -1,
			},
		},
		{
			name:    "failed",
			record:  &kgo.Record{Topic: "t", Partition: 3, Offset: 99, Timestamp: ts},
			err:     kgo.ErrRecordTimeout,
			latency: time.Second,
			expected: DeliveryOutcome{
				Topic:     "t",
				Partition: -1,
				Offset:    -1,
				Timestamp: -1,
				Latency:   time.Second,
				Err:       kgo.ErrRecordTimeout,
			},
		},
		{
			name:    "negative latency clamped",
			record:  &kgo.Record{Topic: "t", Timestamp: ts},
			latency: -time.Second,
			expected: DeliveryOutcome{
				Topic:     "t",
				Timestamp: 1_700_000_000_123,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := outcomeFromKgo(tt.record, tt.err, tt.latency)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFailedOutcome(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	out := failedOutcome("orders", err)

	assert.Equal(t, Failed, out.Status())
	assert.Equal(t, "orders", out.Topic)
	assert.Equal(t, int32(-1), out.Partition)
	assert.Equal(t, int64(-1), out.Offset)
	assert.Equal(t, int64(-1), out.Timestamp)
	assert.Equal(t, "unknown", out.ErrorType())

	assert.Empty(t, DeliveryOutcome{}.ErrorType())
	assert.Equal(t, Delivered, DeliveryOutcome{}.Status())
}
