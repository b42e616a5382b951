// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"context"
	"errors"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	// ErrValidation indicates configuration validation failed.
	ErrValidation = &metricError{
		metric:  "validation_error",
		message: "validation error",
	}

	// ErrNotStarted indicates the producer has not been started.
	ErrNotStarted = &metricError{
		metric:  "not_started",
		message: "producer not started",
	}

	// ErrAlreadyStarted indicates the producer has already been started.
	ErrAlreadyStarted = &metricError{
		metric:  "already_started",
		message: "producer already started",
	}

	// ErrBufferFull is the classification of kgo.ErrMaxBuffered, reported by
	// DeliveryOutcome.ErrorType as "buffer_full". Outcomes carry the transport
	// error itself, so match it with errors.Is(err, kgo.ErrMaxBuffered).
	ErrBufferFull = &metricError{
		metric:  "buffer_full",
		message: "buffer full",
	}

	// ErrBroker is the classification of *kerr.Error values, reported by
	// DeliveryOutcome.ErrorType as "broker_error". Outcomes carry the kerr
	// error itself.
	ErrBroker = &metricError{
		metric:  "broker_error",
		message: "broker error",
	}

	// ErrTimeout is the classification of kgo.ErrRecordTimeout and
	// context.DeadlineExceeded, reported by DeliveryOutcome.ErrorType as
	// "timeout". Outcomes carry the underlying error itself.
	ErrTimeout = &metricError{
		metric:  "timeout",
		message: "timeout",
	}

	// ErrClientClosed is the classification of kgo.ErrClientClosed, reported by
	// DeliveryOutcome.ErrorType as "client_closed". Outcomes carry the
	// transport error itself.
	ErrClientClosed = &metricError{
		metric:  "client_closed",
		message: "client closed",
	}

	// ErrInterceptor indicates an interceptor returned an error or panicked.
	ErrInterceptor = &metricError{
		metric:  "interceptor_error",
		message: "interceptor failed",
	}

	// ErrTopicChanged indicates an interceptor tried to change a record's topic.
	ErrTopicChanged = &metricError{
		metric:  "topic_changed",
		message: "interceptor changed record topic",
	}

	// ErrNotTransactional indicates a transaction was requested from a producer
	// without a TransactionalID.
	ErrNotTransactional = &metricError{
		metric:  "not_transactional",
		message: "producer is not transactional",
	}

	// ErrPartitionLookup indicates the partition count of a topic could not be
	// determined.
	ErrPartitionLookup = &metricError{
		metric:  "partition_lookup_error",
		message: "partition lookup failed",
	}
)

// metricError is an internal error type that carries a classification label
// for metrics and listeners.
type metricError struct {
	metric  string // Label used when grouping errors (e.g., "buffer_full")
	message string // Human-readable message
}

// Error implements the error interface.
func (e *metricError) Error() string {
	return e.message
}

func (e *metricError) Metric() string {
	return e.metric
}

func (e *metricError) Is(target error) bool {
	if t, ok := target.(*metricError); ok {
		return e.message == t.message
	}
	return false
}

// errorType returns the classification label of err.
//
// Labels of this package's sentinels win; transport errors from franz-go are
// mapped onto the same label set so outcomes from both sources group together.
func errorType(err error) string {
	if err == nil {
		return ""
	}

	var me *metricError
	if errors.As(err, &me) {
		return me.Metric()
	}

	switch {
	case errors.Is(err, kgo.ErrMaxBuffered):
		return ErrBufferFull.metric
	case errors.Is(err, kgo.ErrRecordTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout.metric
	case errors.Is(err, kgo.ErrClientClosed):
		return ErrClientClosed.metric
	}

	var ke *kerr.Error
	if errors.As(err, &ke) {
		return ErrBroker.metric
	}

	return "unknown"
}
