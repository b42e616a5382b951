// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

// Interceptor is the base interface of every interceptor. An interceptor
// takes part in the stages for which it implements the matching capability
// interface: SendInterceptor, AckInterceptor and io.Closer.
type Interceptor interface {
	// Name identifies the interceptor in logs and failure events.
	Name() string
}

// SendInterceptor observes and transforms records before they are sent.
//
// OnSend receives its own copy of the record and returns the record to pass on.
// It may replace the key, value or headers but not the topic. Returning an
// error (or panicking) discards the interceptor's changes; the chain and the
// send continue.
//
// OnSend runs on the caller's send path and must be fast and non-blocking.
type SendInterceptor interface {
	Interceptor
	OnSend(*Record) (*Record, error)
}

// AckInterceptor observes delivery outcomes.
//
// OnAcknowledge runs on the transport's completion goroutine, not the
// goroutine that sent the record. All AckInterceptors in a chain receive the
// same outcome.
type AckInterceptor interface {
	Interceptor
	OnAcknowledge(DeliveryOutcome) error
}

// InterceptorFuncs adapts plain functions to the interceptor interfaces.
// Nil functions are no-ops.
type InterceptorFuncs struct {
	ID      string
	Send    func(*Record) (*Record, error)
	Ack     func(DeliveryOutcome) error
	Release func() error
}

var (
	_ SendInterceptor = (*InterceptorFuncs)(nil)
	_ AckInterceptor  = (*InterceptorFuncs)(nil)
)

// Name implements Interceptor.
func (f *InterceptorFuncs) Name() string {
	return f.ID
}

// OnSend implements SendInterceptor.
func (f *InterceptorFuncs) OnSend(r *Record) (*Record, error) {
	if f.Send == nil {
		return r, nil
	}
	return f.Send(r)
}

// OnAcknowledge implements AckInterceptor.
func (f *InterceptorFuncs) OnAcknowledge(out DeliveryOutcome) error {
	if f.Ack == nil {
		return nil
	}
	return f.Ack(out)
}

// Close implements io.Closer.
func (f *InterceptorFuncs) Close() error {
	if f.Release == nil {
		return nil
	}
	return f.Release()
}

// InterceptorFailure describes an interceptor that failed in one of the chain
// stages.
type InterceptorFailure struct {
	// Interceptor is the Name of the failing interceptor.
	Interceptor string

	// Stage is the stage that failed: "on_send", "on_acknowledge" or "close".
	Stage string

	// Topic is the record or outcome topic; empty for the close stage.
	Topic string

	// Err is the failure, always wrapping ErrInterceptor or ErrTopicChanged.
	Err error

	// ErrorType is the error classification of Err.
	ErrorType string
}

const (
	stageSend  = "on_send"
	stageAck   = "on_acknowledge"
	stageClose = "close"
)
