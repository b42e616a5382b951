// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/xmidt-org/kpipeline"
)

// Example demonstrates basic usage of the kpipeline producer.
func Example() {
	producer := &kpipeline.Producer{
		Brokers: []string{"localhost:9092"},
		InterceptorOrder: []kpipeline.InterceptorID{
			kpipeline.InterceptorTimestamp,
			kpipeline.InterceptorTraceID,
			kpipeline.InterceptorMetrics,
		},
	}

	// Start producer (connects to Kafka lazily)
	if err := producer.Start(); err != nil {
		log.Fatal(err)
	}
	defer producer.Stop(context.Background())

	out := producer.ProduceSync(context.Background(), &kpipeline.Record{
		Topic: "user-events",
		Key:   []byte("user-123"),
		Value: []byte(`{"action":"login"}`),
	})
	if out.Err != nil {
		log.Printf("Send failed (%s): %v", out.ErrorType(), out.Err)
		return
	}

	fmt.Printf("Delivered to partition %d at offset %d\n", out.Partition, out.Offset)
}

// ExampleProducer demonstrates creating and configuring a Producer.
func ExampleProducer() {
	producer := &kpipeline.Producer{
		// Kafka cluster configuration
		Brokers:  []string{"localhost:9092", "localhost:9093"},
		ClientID: "orders-service",

		// Buffer limits (optional - 0 keeps the client default)
		MaxBufferedRecords: 10000,
		MaxBufferedBytes:   10 * 1024 * 1024, // 10 MB

		// Timeouts (optional - 0 means no timeout)
		RequestTimeout:  30 * time.Second,
		CleanupTimeout:  5 * time.Second,
		DeliveryTimeout: 2 * time.Minute,

		// Durability and batching
		Acks:          kpipeline.AcksAll,
		Compression:   kpipeline.CompressionSnappy,
		Linger:        10 * time.Millisecond,
		BatchMaxBytes: 1024 * 1024,

		// Prefix routing for keys without an explicit partition
		Router: kpipeline.RegionRouter(),

		// Built-in interceptors, in chain order
		InterceptorOrder: []kpipeline.InterceptorID{
			kpipeline.InterceptorTimestamp,
			kpipeline.InterceptorTraceID,
			kpipeline.InterceptorLogging,
			kpipeline.InterceptorMetrics,
		},
	}

	if err := producer.Start(); err != nil {
		log.Fatal(err)
	}
	defer producer.Stop(context.Background())
}

// ExampleRouter demonstrates prefix routing.
func ExampleRouter() {
	router := kpipeline.RegionRouter()

	for _, key := range []string{"US-123", "EU-456", "APAC-789", "OTHER-000", ""} {
		fmt.Printf("%q -> %d\n", key, router.Route("orders", []byte(key), 4))
	}

	// Output:
	// "US-123" -> 0
	// "EU-456" -> 1
	// "APAC-789" -> 2
	// "OTHER-000" -> 3
	// "" -> 3
}

// ExampleChain demonstrates the order in which a chain runs its interceptors.
func ExampleChain() {
	trace := func(name string) *kpipeline.InterceptorFuncs {
		return &kpipeline.InterceptorFuncs{
			ID: name,
			Send: func(r *kpipeline.Record) (*kpipeline.Record, error) {
				fmt.Println("onSend", name)
				return r, nil
			},
			Ack: func(kpipeline.DeliveryOutcome) error {
				fmt.Println("onAcknowledge", name)
				return nil
			},
			Release: func() error {
				fmt.Println("close", name)
				return nil
			},
		}
	}

	chain := kpipeline.NewChain(nil, trace("A"), trace("B"))

	chain.OnSend(&kpipeline.Record{Topic: "orders"})
	chain.OnAcknowledge(kpipeline.DeliveryOutcome{Topic: "orders"})
	_ = chain.Close()

	// Output:
	// onSend A
	// onSend B
	// onAcknowledge B
	// onAcknowledge A
	// close B
	// close A
}

// Example_async demonstrates asynchronous sends with a completion callback.
func Example_async() {
	producer := &kpipeline.Producer{Brokers: []string{"localhost:9092"}}
	if err := producer.Start(); err != nil {
		log.Fatal(err)
	}
	defer producer.Stop(context.Background())

	for i := 0; i < 10; i++ {
		producer.Produce(context.Background(), &kpipeline.Record{
			Topic: "user-events",
			Key:   []byte(fmt.Sprintf("user-%d", i)),
		}, func(out kpipeline.DeliveryOutcome) {
			// Called exactly once, from a transport goroutine
			if out.Err != nil {
				log.Printf("failed: %v", out.Err)
			}
		})
	}

	if err := producer.Flush(context.Background()); err != nil {
		log.Printf("flush: %v", err)
	}
}

// Example_transaction demonstrates an all-or-nothing batch of records.
func Example_transaction() {
	producer := &kpipeline.Producer{
		Brokers:         []string{"localhost:9092"},
		TransactionalID: "orders-tx",
	}
	if err := producer.Start(); err != nil {
		log.Fatal(err)
	}
	defer producer.Stop(context.Background())

	decision, err := producer.Transact(context.Background(), func(tx *kpipeline.Tx) kpipeline.TxDecision {
		tx.Produce(&kpipeline.Record{Topic: "orders", Value: []byte("order-1")}, nil)
		tx.Produce(&kpipeline.Record{Topic: "payments", Value: []byte("payment-1")}, nil)
		return kpipeline.Commit
	})
	if err != nil {
		log.Printf("transaction ended with %s: %v", decision, err)
	}
}

// Example_errorHandling demonstrates classifying failed outcomes.
func Example_errorHandling() {
	producer := &kpipeline.Producer{Brokers: []string{"localhost:9092"}}
	if err := producer.Start(); err != nil {
		log.Fatal(err)
	}
	defer producer.Stop(context.Background())

	producer.AddInterceptorFailureListener(func(f *kpipeline.InterceptorFailure) {
		log.Printf("interceptor %s failed in %s: %v", f.Interceptor, f.Stage, f.Err)
	})

	out := producer.ProduceSync(context.Background(), &kpipeline.Record{Topic: "orders"})
	switch {
	case out.Err == nil:
		return
	case errors.Is(out.Err, kpipeline.ErrNotStarted):
		log.Print("producer was stopped")
	default:
		log.Printf("send failed (%s): %v", out.ErrorType(), out.Err)
	}
}

// Example_metrics demonstrates reading the aggregator.
func Example_metrics() {
	var m kpipeline.Metrics

	m.RecordSent(&kpipeline.Record{Topic: "orders", Value: []byte("abc")})
	m.RecordAcknowledged(kpipeline.DeliveryOutcome{Topic: "orders", Latency: 3 * time.Millisecond})

	s := m.Snapshot()
	fmt.Println(s.Sent, s.Succeeded, s.Failed, s.Bytes, s.AverageLatency())

	_ = s.WriteReport(os.Stdout)
}
