// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// InterceptorID names a built-in interceptor. A list of ids configures the
// order of the producer's chain (see Producer.InterceptorOrder).
type InterceptorID string

const (
	// InterceptorTimestamp selects TimestampInterceptor.
	InterceptorTimestamp InterceptorID = "timestamp"

	// InterceptorTraceID selects TraceIDInterceptor.
	InterceptorTraceID InterceptorID = "trace-id"

	// InterceptorLogging selects LoggingInterceptor, logging to the producer's
	// logger.
	InterceptorLogging InterceptorID = "logging"

	// InterceptorMetrics selects MetricsInterceptor, feeding the producer's
	// aggregator.
	InterceptorMetrics InterceptorID = "metrics"
)

var interceptorIDs map[InterceptorID]struct{}
var interceptorIDList []string

func init() {
	list := []InterceptorID{
		InterceptorTimestamp,
		InterceptorTraceID,
		InterceptorLogging,
		InterceptorMetrics,
	}

	interceptorIDs = make(map[InterceptorID]struct{})
	for _, id := range list {
		interceptorIDs[id] = struct{}{}
		interceptorIDList = append(interceptorIDList, string(id))
	}
}

// validateInterceptorID validates the InterceptorID enum value.
func validateInterceptorID(id InterceptorID) error {
	if _, ok := interceptorIDs[id]; ok {
		return nil
	}

	list := strings.Join(interceptorIDList, "', '")
	list = "'" + list + "'"
	return errors.Join(ErrValidation,
		fmt.Errorf("interceptor '%s' is invalid: must be %s", id, list))
}

// newInterceptor builds the built-in interceptor for id.
func newInterceptor(id InterceptorID, logger kgo.Logger, metrics *Metrics) (Interceptor, error) {
	switch id {
	case InterceptorTimestamp:
		return &TimestampInterceptor{}, nil
	case InterceptorTraceID:
		return &TraceIDInterceptor{}, nil
	case InterceptorLogging:
		return &LoggingInterceptor{Logger: logger}, nil
	case InterceptorMetrics:
		return &MetricsInterceptor{Metrics: metrics}, nil
	}
	return nil, validateInterceptorID(id)
}
