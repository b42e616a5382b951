// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/xmidt-org/eventor"
)

// Chain runs an ordered list of interceptors around the send and acknowledge
// lifecycle of a producer.
//
// The interceptor order is fixed by NewChain. OnSend visits the interceptors in
// that order, OnAcknowledge and Close visit them in reverse order. Failures are
// isolated per interceptor: they are logged, dispatched to failure listeners,
// and never stop the remaining interceptors.
//
// Chain is safe for concurrent use.
type Chain struct {
	interceptors []Interceptor
	senders      []SendInterceptor
	ackers       []AckInterceptor // reverse configured order
	closers      []namedCloser    // reverse configured order

	logger   kgo.Logger
	failures eventor.Eventor[func(*InterceptorFailure)]
}

type namedCloser struct {
	name string
	io.Closer
}

// NewChain builds a chain from interceptors, in the given order. Nil entries
// are skipped. A nil logger discards log output.
func NewChain(logger kgo.Logger, interceptors ...Interceptor) *Chain {
	c := Chain{
		logger: loggerOr(logger),
	}

	for _, i := range interceptors {
		if i == nil {
			continue
		}
		c.interceptors = append(c.interceptors, i)
		if s, ok := i.(SendInterceptor); ok {
			c.senders = append(c.senders, s)
		}
		if a, ok := i.(AckInterceptor); ok {
			c.ackers = append(c.ackers, a)
		}
		if cl, ok := i.(io.Closer); ok {
			c.closers = append(c.closers, namedCloser{name: i.Name(), Closer: cl})
		}
	}

	slices.Reverse(c.ackers)
	slices.Reverse(c.closers)

	return &c
}

// Names returns the interceptor names in configured order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.interceptors))
	for _, i := range c.interceptors {
		names = append(names, i.Name())
	}
	return names
}

// Len returns the number of interceptors in the chain.
func (c *Chain) Len() int {
	return len(c.interceptors)
}

// AddFailureListener adds a listener called for every interceptor failure.
// The returned function removes the listener.
//
// Listeners run on the goroutine of the failing stage and must be thread-safe.
func (c *Chain) AddFailureListener(fn func(*InterceptorFailure)) func() {
	return c.failures.Add(fn)
}

// OnSend passes the record through every SendInterceptor in configured order,
// each receiving the previous interceptor's output, and returns the result.
//
// Each interceptor works on a copy. When an interceptor fails, returns nil, or
// changes the topic, its copy is dropped and the previous record is passed on.
func (c *Chain) OnSend(r *Record) *Record {
	current := r
	for _, s := range c.senders {
		next, err := c.send(s, current)
		if err != nil {
			c.fail(s.Name(), stageSend, current.Topic, err)
			continue
		}
		if next != nil {
			current = next
		}
	}
	return current
}

func (c *Chain) send(s SendInterceptor, r *Record) (next *Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			next = nil
			err = errors.Join(ErrInterceptor, fmt.Errorf("panic: %v", p))
		}
	}()

	next, err = s.OnSend(r.clone())
	if err != nil {
		return nil, errors.Join(ErrInterceptor, err)
	}
	if next != nil && next.Topic != r.Topic {
		return nil, errors.Join(ErrTopicChanged,
			fmt.Errorf("topic changed from '%s' to '%s'", r.Topic, next.Topic))
	}
	return next, nil
}

// OnAcknowledge broadcasts the outcome to every AckInterceptor in reverse
// configured order.
func (c *Chain) OnAcknowledge(out DeliveryOutcome) {
	for _, a := range c.ackers {
		if err := c.ack(a, out); err != nil {
			c.fail(a.Name(), stageAck, out.Topic, err)
		}
	}
}

func (c *Chain) ack(a AckInterceptor, out DeliveryOutcome) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Join(ErrInterceptor, fmt.Errorf("panic: %v", p))
		}
	}()

	if err := a.OnAcknowledge(out); err != nil {
		return errors.Join(ErrInterceptor, err)
	}
	return nil
}

// Close closes every interceptor implementing io.Closer in reverse configured
// order. All interceptors are closed even when some fail; the failures are
// joined into the returned error.
//
// Records still in flight must have completed or been abandoned before Close.
func (c *Chain) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := c.close(cl); err != nil {
			c.fail(cl.name, stageClose, "", err)
			errs = append(errs, fmt.Errorf("%s: %w", cl.name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Chain) close(cl namedCloser) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Join(ErrInterceptor, fmt.Errorf("panic: %v", p))
		}
	}()

	if err := cl.Close(); err != nil {
		return errors.Join(ErrInterceptor, err)
	}
	return nil
}

func (c *Chain) fail(name, stage, topic string, err error) {
	c.logger.Log(kgo.LogLevelWarn, "interceptor failed",
		"interceptor", name,
		"stage", stage,
		"topic", topic,
		"error", err.Error(),
	)

	failure := InterceptorFailure{
		Interceptor: name,
		Stage:       stage,
		Topic:       topic,
		Err:         err,
		ErrorType:   errorType(err),
	}
	c.failures.Visit(func(listener func(*InterceptorFailure)) {
		listener(&failure)
	})
}
