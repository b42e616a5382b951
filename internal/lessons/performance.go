// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/xmidt-org/kpipeline"
	"golang.org/x/sync/errgroup"
)

type performance struct{}

func (performance) Number() int   { return 10 }
func (performance) Title() string { return "Performance Tuning" }
func (performance) Description() string {
	return "Durability against speed, back-pressure from a full buffer, and parallel producers."
}

func (performance) Run(ctx context.Context, env *Env) error {
	topic := env.Topic("lesson10-performance")
	out := env.Out
	payload := samplePayload(256)

	out.Step("acks")
	out.Explain("every level of durability costs a bit of latency")
	for _, acks := range []kpipeline.Acks{kpipeline.AcksNone, kpipeline.AcksLeader, kpipeline.AcksAll} {
		t, err := runWith(ctx, env, topic, 1000, payload, func(p *kpipeline.Producer) {
			p.Acks = acks
			p.Linger = 5 * time.Millisecond
		})
		if err != nil {
			return err
		}
		out.Result("acks=%-6s %8.0f records/s", acks, t.perSecond())
	}

	out.Step("a full buffer")
	out.Explain("TryProduce fails at once when the buffer is full instead of blocking")
	full, err := bufferFull(ctx, env, topic, payload)
	if err != nil {
		return err
	}
	out.Result("%d of 5000 records rejected with %v", full, kgo.ErrMaxBuffered)

	out.Step("parallel producers")
	const (
		producers = 4
		each      = 2500
	)
	var sent atomic.Int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(producers)
	for range producers {
		g.Go(func() error {
			t, err := runWith(gctx, env, topic, each, payload, func(p *kpipeline.Producer) {
				p.Linger = 5 * time.Millisecond
				p.Compression = kpipeline.CompressionLz4
			})
			sent.Add(int64(t.Records - t.Failed))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)
	out.Result("%d producers sent %d records in %s (%.0f records/s)",
		producers, sent.Load(), elapsed.Round(time.Millisecond), float64(sent.Load())/elapsed.Seconds())

	out.Tip("one producer per process is usually enough; add partitions before adding producers")
	return nil
}

// bufferFull floods a producer with a tiny buffer and counts the records
// rejected because the buffer was full.
func bufferFull(ctx context.Context, env *Env, topic string, payload []byte) (int64, error) {
	p, err := env.NewProducer(func(p *kpipeline.Producer) {
		p.MaxBufferedRecords = 100
		p.Linger = 50 * time.Millisecond
	})
	if err != nil {
		return 0, err
	}
	defer stop(p)

	var full, other atomic.Int64
	for i := range 5000 {
		p.TryProduce(ctx, &kpipeline.Record{
			Topic: topic,
			Key:   fmt.Appendf(nil, "flood-%d", i),
			Value: payload,
		}, func(res kpipeline.DeliveryOutcome) {
			switch {
			case res.Err == nil:
			case errors.Is(res.Err, kgo.ErrMaxBuffered):
				full.Add(1)
			default:
				other.Add(1)
			}
		})
	}
	if err := p.Flush(ctx); err != nil {
		return 0, err
	}
	if n := other.Load(); n > 0 {
		return full.Load(), fmt.Errorf("%d records failed for reasons other than a full buffer", n)
	}
	return full.Load(), nil
}
