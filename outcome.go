// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// unknown is the sentinel used for offsets, timestamps and partitions that were
// never assigned.
const unknown = -1

// Status summarizes a DeliveryOutcome.
type Status int

const (
	// Delivered indicates the record reached its durability target.
	Delivered Status = iota

	// Failed indicates the record was not delivered.
	Failed
)

// String returns the string representation of the Status.
func (s Status) String() string {
	switch s {
	case Delivered:
		return "Delivered"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// DeliveryOutcome is the single result produced for every record handed to
// the pipeline, after the transport completes (success or failure).
type DeliveryOutcome struct {
	// Topic is the topic the record was sent (or attempted to be sent) to.
	Topic string

	// Partition is the partition the record landed on, or -1 if unknown.
	Partition int32

	// Offset is the offset assigned by the broker, or -1 on failure.
	Offset int64

	// Timestamp is the record timestamp in Unix milliseconds, or -1 on failure.
	Timestamp int64

	// Latency is the time between handing the record to the transport and the
	// transport reporting completion, measured on the monotonic clock.
	Latency time.Duration

	// Err is the transport or pipeline error; nil on success. Transport errors
	// are carried verbatim.
	Err error
}

// Status reports whether the outcome is a delivery or a failure.
func (o DeliveryOutcome) Status() Status {
	if o.Err != nil {
		return Failed
	}
	return Delivered
}

// ErrorType returns the classification label of the outcome's error, or an
// empty string for deliveries.
func (o DeliveryOutcome) ErrorType() string {
	return errorType(o.Err)
}

// failedOutcome builds an outcome for a record that never reached the broker.
func failedOutcome(topic string, err error) DeliveryOutcome {
	return DeliveryOutcome{
		Topic:     topic,
		Partition: unknown,
		Offset:    unknown,
		Timestamp: unknown,
		Err:       err,
	}
}

// outcomeFromKgo builds the outcome reported by a franz-go promise.
func outcomeFromKgo(r *kgo.Record, err error, latency time.Duration) DeliveryOutcome {
	out := DeliveryOutcome{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Latency:   max(latency, 0),
		Err:       err,
	}

	if err != nil {
		out.Partition = unknown
		out.Offset = unknown
		out.Timestamp = unknown
		return out
	}

	if r.Timestamp.IsZero() {
		out.Timestamp = unknown
	} else {
		out.Timestamp = r.Timestamp.UnixMilli()
	}
	return out
}
