// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package kpipeline provides an extensible Kafka producer: an ordered chain of
// interceptors that observe and transform records before they are sent and
// observe delivery outcomes afterward, a concurrent metrics aggregator fed by
// that chain, and a deterministic prefix-based partition router.
//
// # Quick Start
//
// Create a Producer by setting fields directly:
//
//	producer := &kpipeline.Producer{
//	    Brokers: []string{"localhost:9092"},
//	    InterceptorOrder: []kpipeline.InterceptorID{
//	        kpipeline.InterceptorTimestamp,
//	        kpipeline.InterceptorTraceID,
//	        kpipeline.InterceptorMetrics,
//	    },
//	    Router: kpipeline.RegionRouter(),
//	}
//	defer producer.Stop(context.Background())
//
//	if err := producer.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
//	out := producer.ProduceSync(context.Background(), &kpipeline.Record{
//	    Topic: "orders",
//	    Key:   []byte("US-order-001"),
//	    Value: []byte(`{"status":"created"}`),
//	})
//	if out.Err != nil {
//	    log.Printf("send failed: %v", out.Err)
//	}
//
// # Send Pipeline
//
// Every record handed to the producer flows one way:
//
//	application -> Router (when no explicit partition) -> OnSend chain
//	            -> transport -> OnAcknowledge chain (reverse order) -> caller
//
// Exactly one DeliveryOutcome is produced for every record handed to the
// pipeline. A failed outcome always carries an offset and timestamp of -1.
//
// # Interceptors
//
// Interceptors are grouped by capability: a SendInterceptor may replace the key,
// value or headers of a record (never its topic), an AckInterceptor observes
// outcomes, and an interceptor implementing io.Closer is closed with the chain.
// OnSend runs in configured order, OnAcknowledge and Close run in reverse order.
// A failing interceptor never aborts the chain or the send; its changes are
// discarded and the failure is logged and dispatched to failure listeners.
//
// # Thread Safety
//
// Producer, Chain, Router and Metrics are safe for concurrent use. The Router
// and the Chain are immutable after construction; the Metrics aggregator is the
// only state shared by concurrent sends.
package kpipeline
