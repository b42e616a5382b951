// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/xmidt-org/kpipeline"
	"go.uber.org/zap"
)

type errorHandling struct{}

func (errorHandling) Number() int   { return 5 }
func (errorHandling) Title() string { return "Error Handling" }
func (errorHandling) Description() string {
	return "Classifying failures, retrying what can be retried and parking the rest in a dead-letter topic."
}

// Dead-letter headers describe why a record was parked.
const (
	HeaderDLTError      = "dlt-error"
	HeaderDLTErrorType  = "dlt-error-type"
	HeaderDLTTopic      = "dlt-original-topic"
	HeaderDLTFailedAt   = "dlt-failed-at"
	HeaderDLTRetriable  = "dlt-retriable"
	oversizedValueBytes = 2 << 20
)

// Classification is how a send failure should be handled.
type Classification int

const (
	// Retriable failures may succeed when sent again.
	Retriable Classification = iota

	// Fatal failures fail again no matter how often they are retried.
	Fatal

	// Overloaded failures mean the producer is sending faster than it drains.
	Overloaded
)

func (c Classification) String() string {
	switch c {
	case Retriable:
		return "retriable"
	case Fatal:
		return "fatal"
	case Overloaded:
		return "overloaded"
	}
	return "unknown"
}

// Classify decides how a send failure should be handled.
func Classify(err error) Classification {
	switch {
	case errors.Is(err, kgo.ErrMaxBuffered):
		return Overloaded
	case errors.Is(err, kgo.ErrRecordTimeout), errors.Is(err, kgo.ErrRecordRetries):
		return Retriable
	case errors.Is(err, context.Canceled), errors.Is(err, kgo.ErrClientClosed):
		return Fatal
	case errors.Is(err, kpipeline.ErrValidation), errors.Is(err, kpipeline.ErrNotStarted):
		return Fatal
	}

	var ke *kerr.Error
	if errors.As(err, &ke) && !kerr.IsRetriable(err) {
		return Fatal
	}
	return Retriable
}

// RetryBackoff returns an exponential delay for retry number tries, without
// jitter so the schedule can be printed.
func RetryBackoff(initial, maxDelay time.Duration) func(tries int) time.Duration {
	return func(tries int) time.Duration {
		b := newBackOff(initial, maxDelay)
		d := b.NextBackOff()
		for range tries - 1 {
			d = b.NextBackOff()
		}
		return d
	}
}

func newBackOff(initial, maxDelay time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// sendWithRetry sends r until it is delivered, it fails fatally, or attempts
// run out. Every failed attempt is reported to onFailure.
func sendWithRetry(ctx context.Context, p *kpipeline.Producer, r *kpipeline.Record, attempts uint64,
	onFailure func(kpipeline.DeliveryOutcome)) (kpipeline.DeliveryOutcome, error) {
	var last kpipeline.DeliveryOutcome

	op := func() error {
		last = p.ProduceSync(ctx, r)
		if last.Err == nil {
			return nil
		}
		if onFailure != nil {
			onFailure(last)
		}
		if Classify(last.Err) == Fatal {
			return backoff.Permanent(last.Err)
		}
		return last.Err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(50*time.Millisecond, time.Second), attempts), ctx)
	err := backoff.Retry(op, b)
	return last, err
}

// deadLetter returns the dead-letter record of a record that failed with err.
func deadLetter(dlt string, r *kpipeline.Record, res kpipeline.DeliveryOutcome) *kpipeline.Record {
	value := r.Value
	if len(value) > 1024 {
		value = append(bytes.Clone(value[:1024]), "..."...)
	}
	d := &kpipeline.Record{
		Topic:   dlt,
		Key:     r.Key,
		Value:   value,
		Headers: append([]kpipeline.Header(nil), r.Headers...),
	}
	d.AddHeader(HeaderDLTError, []byte(res.Err.Error()))
	d.AddHeader(HeaderDLTErrorType, []byte(res.ErrorType()))
	d.AddHeader(HeaderDLTTopic, []byte(r.Topic))
	d.AddHeader(HeaderDLTFailedAt, []byte(time.Now().UTC().Format(time.RFC3339Nano)))
	d.AddHeader(HeaderDLTRetriable, []byte(fmt.Sprint(Classify(res.Err) == Retriable)))
	return d
}

func (errorHandling) Run(ctx context.Context, env *Env) error {
	topic := env.Topic("lesson05-errors")
	dlt := env.Topic("lesson05-errors-dlt")
	out := env.Out
	log := env.log()

	out.Step("classifying errors")
	for _, err := range []error{
		kerr.NotLeaderForPartition,
		kerr.RequestTimedOut,
		kerr.MessageTooLarge,
		kerr.TopicAuthorizationFailed,
		kgo.ErrRecordTimeout,
		kgo.ErrMaxBuffered,
		kgo.ErrClientClosed,
	} {
		out.Result("%-40s %s", err, Classify(err))
	}

	out.Step("retry schedule")
	schedule := RetryBackoff(100*time.Millisecond, 2*time.Second)
	for tries := 1; tries <= 6; tries++ {
		out.Result("retry %d after %s", tries, schedule(tries))
	}

	p, err := env.NewProducer(func(p *kpipeline.Producer) {
		p.RetryBackoff = schedule
		p.DeliveryTimeout = 10 * time.Second
		p.BatchMaxBytes = 1 << 20
	})
	if err != nil {
		return err
	}
	defer stop(p)

	out.Step("a record the broker rejects")
	out.Explain("a value larger than the batch limit fails without ever reaching a broker")
	big := &kpipeline.Record{
		Topic: topic,
		Key:   []byte("oversized"),
		Value: bytes.Repeat([]byte("x"), oversizedValueBytes),
	}
	attempt := 0
	res, err := sendWithRetry(ctx, p, big, 3, func(res kpipeline.DeliveryOutcome) {
		attempt++
		out.Fail("attempt %d: %v (%s)", attempt, res.Err, Classify(res.Err))
	})
	if err == nil {
		return errors.New("oversized record was unexpectedly accepted")
	}
	out.Result("gave up after %d attempt(s), offset %d, timestamp %d", attempt, res.Offset, res.Timestamp)

	out.Step("parking the failure in %s", dlt)
	d := deadLetter(dlt, big, res)
	parked := p.ProduceSync(ctx, d)
	if parked.Err != nil {
		return fmt.Errorf("dead letter: %w", parked.Err)
	}
	log.Warn("record sent to dead-letter topic",
		zap.String("topic", topic),
		zap.String("dlt", dlt),
		zap.Int64("offset", parked.Offset),
		zap.Error(res.Err),
	)
	out.Outcome(parked)

	out.Step("a record that succeeds")
	ok, err := sendWithRetry(ctx, p, &kpipeline.Record{Topic: topic, Value: []byte("fine")}, 3, nil)
	if err != nil {
		return err
	}
	out.Outcome(ok)

	out.Tip("retry only what is retriable; everything else belongs in a dead-letter topic with its cause")
	return nil
}
