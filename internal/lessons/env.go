// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/xmidt-org/kpipeline"
	"github.com/xmidt-org/kpipeline/internal/config"
	"github.com/xmidt-org/kpipeline/internal/logging"
	"go.uber.org/zap"
)

// Env is what a lesson runs against.
type Env struct {
	Config *config.Config
	Logger *zap.Logger
	Out    *Printer

	// Hooks, when set, returns the hooks installed on each new producer,
	// e.g. a kprom plugin registered for that producer.
	Hooks func() []kgo.Hook

	// Metrics, when set, is fed by every producer a lesson creates.
	Metrics *kpipeline.Metrics
}

func (e *Env) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger.Named("lessons")
}

func (e *Env) timeout() time.Duration {
	if e.Config == nil {
		return 0
	}
	return e.Config.Lessons.Timeout
}

// Topic returns the topic name used for name.
func (e *Env) Topic(name string) string {
	return e.Config.Topic(name)
}

// NewProducer starts a producer from the configured defaults. configure, if
// not nil, adjusts the producer before it starts.
func (e *Env) NewProducer(configure func(*kpipeline.Producer)) (*kpipeline.Producer, error) {
	p := &kpipeline.Producer{}
	e.Config.Apply(p)

	if e.Logger != nil {
		p.Logger = logging.Kafka(e.Logger)
	}
	if e.Hooks != nil {
		p.Hooks = append(p.Hooks, e.Hooks()...)
	}
	if e.Metrics != nil {
		p.Interceptors = append(p.Interceptors, &kpipeline.MetricsInterceptor{Metrics: e.Metrics})
	}
	p.InitialFailureListeners = append(p.InitialFailureListeners, func(f *kpipeline.InterceptorFailure) {
		e.Out.Fail("interceptor %s failed during %s: %v", f.Interceptor, f.Stage, f.Err)
	})

	if configure != nil {
		configure(p)
	}

	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("start producer: %w", err)
	}
	return p, nil
}

// stop stops p, waiting for buffered records.
func stop(p *kpipeline.Producer) {
	p.Stop(context.Background())
}

func (e *Env) clientOpts(extra ...kgo.Opt) []kgo.Opt {
	opts := []kgo.Opt{kgo.SeedBrokers(e.Config.Brokers...)}
	if m := e.Config.SASLMechanism(); m != nil {
		opts = append(opts, kgo.SASL(m))
	}
	if e.Logger != nil {
		opts = append(opts, kgo.WithLogger(logging.Kafka(e.Logger)))
	}
	return append(opts, extra...)
}

// EnsureTopic creates topic with the given number of partitions, growing an
// existing topic that has fewer.
func (e *Env) EnsureTopic(ctx context.Context, topic string, partitions int32) error {
	cl, err := kgo.NewClient(e.clientOpts()...)
	if err != nil {
		return err
	}
	defer cl.Close()

	adm := kadm.NewClient(cl)

	resp, err := adm.CreateTopic(ctx, partitions, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err == nil {
		e.Out.Result("created topic %s with %d partitions", topic, partitions)
		return nil
	}
	if !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}

	details, err := adm.ListTopics(ctx, topic)
	if err != nil {
		return fmt.Errorf("describe topic %s: %w", topic, err)
	}
	have := int32(len(details[topic].Partitions))
	if have >= partitions {
		return nil
	}

	grown, err := adm.UpdatePartitions(ctx, int(partitions), topic)
	if err != nil {
		return fmt.Errorf("add partitions to %s: %w", topic, err)
	}
	for _, r := range grown {
		if r.Err != nil {
			return fmt.Errorf("add partitions to %s: %w", topic, r.Err)
		}
	}
	e.Out.Result("grew topic %s from %d to %d partitions", topic, have, partitions)
	return nil
}

// consumeWait bounds how long Consume waits for records.
const consumeWait = 5 * time.Second

// Consume reads up to n records of topic from the start. It returns what it
// has after consumeWait or when ctx is done.
func (e *Env) Consume(ctx context.Context, topic string, n int, opts ...kgo.Opt) ([]*kgo.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, consumeWait)
	defer cancel()

	cl, err := kgo.NewClient(e.clientOpts(append([]kgo.Opt{
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}, opts...)...)...)
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	var records []*kgo.Record
	for len(records) < n {
		fetches := cl.PollFetches(ctx)
		if ctx.Err() != nil || fetches.IsClientClosed() {
			break
		}
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	return records, nil
}
