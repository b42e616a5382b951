// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HeaderTimestamp is the header added by TimestampInterceptor.
	HeaderTimestamp = "X-Timestamp"

	// HeaderTraceID is the header added by TraceIDInterceptor.
	HeaderTraceID = "X-Trace-Id"
)

// TimestampInterceptor appends the send time as an RFC 3339 UTC header.
type TimestampInterceptor struct {
	// Header is the header key. Default: HeaderTimestamp.
	Header string

	// now is for internal use only (testing hook).
	now func() time.Time
}

var _ SendInterceptor = (*TimestampInterceptor)(nil)

// Name implements Interceptor.
func (*TimestampInterceptor) Name() string { return string(InterceptorTimestamp) }

// OnSend implements SendInterceptor.
func (t *TimestampInterceptor) OnSend(r *Record) (*Record, error) {
	now := time.Now
	if t.now != nil {
		now = t.now
	}

	r.AddHeader(headerOr(t.Header, HeaderTimestamp),
		[]byte(now().UTC().Format(time.RFC3339Nano)))
	return r, nil
}

// TraceIDInterceptor appends a trace id header.
//
// When the record context carries a valid OpenTelemetry span, its trace id is
// used so the record joins the caller's trace. Otherwise a new id of 16 hex
// characters is derived from a random UUID.
type TraceIDInterceptor struct {
	// Header is the header key. Default: HeaderTraceID.
	Header string
}

var _ SendInterceptor = (*TraceIDInterceptor)(nil)

// Name implements Interceptor.
func (*TraceIDInterceptor) Name() string { return string(InterceptorTraceID) }

// OnSend implements SendInterceptor.
func (t *TraceIDInterceptor) OnSend(r *Record) (*Record, error) {
	id, err := traceID(r.Context)
	if err != nil {
		return nil, err
	}

	r.AddHeader(headerOr(t.Header, HeaderTraceID), []byte(id))
	return r, nil
}

func traceID(ctx context.Context) (string, error) {
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			return sc.TraceID().String(), nil
		}
	}

	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(u.String(), "-", "")[:16], nil
}

// LoggingInterceptor logs every record before it is sent and every outcome.
type LoggingInterceptor struct {
	// Logger receives the log lines. Required.
	Logger kgo.Logger

	// Level is the level of the onSend and delivered lines. Failures are always
	// logged at LogLevelError. Default: kgo.LogLevelInfo.
	Level kgo.LogLevel
}

var (
	_ SendInterceptor = (*LoggingInterceptor)(nil)
	_ AckInterceptor  = (*LoggingInterceptor)(nil)
)

// Name implements Interceptor.
func (*LoggingInterceptor) Name() string { return string(InterceptorLogging) }

func (l *LoggingInterceptor) level() kgo.LogLevel {
	if l.Level == kgo.LogLevelNone {
		return kgo.LogLevelInfo
	}
	return l.Level
}

// OnSend implements SendInterceptor. The record is passed on unchanged.
func (l *LoggingInterceptor) OnSend(r *Record) (*Record, error) {
	if l.Logger == nil {
		return nil, errors.New("logging interceptor has no logger")
	}

	l.Logger.Log(l.level(), "onSend",
		"topic", r.Topic,
		"key", string(r.Key),
		"headers", formatHeaders(r.Headers),
	)
	return r, nil
}

// OnAcknowledge implements AckInterceptor.
func (l *LoggingInterceptor) OnAcknowledge(out DeliveryOutcome) error {
	if l.Logger == nil {
		return errors.New("logging interceptor has no logger")
	}

	if out.Err != nil {
		l.Logger.Log(kgo.LogLevelError, "onAcknowledge failed",
			"topic", out.Topic,
			"error", out.Err.Error(),
			"error_type", out.ErrorType(),
		)
		return nil
	}

	l.Logger.Log(l.level(), "onAcknowledge",
		"topic", out.Topic,
		"partition", out.Partition,
		"offset", out.Offset,
		"timestamp", out.Timestamp,
		"latency", out.Latency,
	)
	return nil
}

// Close implements io.Closer.
func (l *LoggingInterceptor) Close() error {
	if l.Logger != nil {
		l.Logger.Log(l.level(), "logging interceptor closing")
	}
	return nil
}

// MetricsInterceptor feeds a Metrics aggregator: records are counted before
// they are sent and outcomes when they are acknowledged.
type MetricsInterceptor struct {
	// Metrics is the aggregator to update. Required.
	Metrics *Metrics
}

var (
	_ SendInterceptor = (*MetricsInterceptor)(nil)
	_ AckInterceptor  = (*MetricsInterceptor)(nil)
)

// Name implements Interceptor.
func (*MetricsInterceptor) Name() string { return string(InterceptorMetrics) }

// OnSend implements SendInterceptor. The record is passed on unchanged.
func (m *MetricsInterceptor) OnSend(r *Record) (*Record, error) {
	if m.Metrics == nil {
		return nil, errors.New("metrics interceptor has no aggregator")
	}
	m.Metrics.RecordSent(r)
	return r, nil
}

// OnAcknowledge implements AckInterceptor.
func (m *MetricsInterceptor) OnAcknowledge(out DeliveryOutcome) error {
	if m.Metrics == nil {
		return errors.New("metrics interceptor has no aggregator")
	}
	m.Metrics.RecordAcknowledged(out)
	return nil
}

func headerOr(key, def string) string {
	if key == "" {
		return def
	}
	return key
}

func formatHeaders(headers []Header) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, h := range headers {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(h.Key)
		b.WriteByte('=')
		b.Write(h.Value)
	}
	b.WriteByte(']')
	return b.String()
}
