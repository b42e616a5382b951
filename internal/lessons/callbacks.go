// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xmidt-org/kpipeline"
	"golang.org/x/sync/errgroup"
)

type callbacks struct{}

func (callbacks) Number() int   { return 4 }
func (callbacks) Title() string { return "Callbacks and Concurrency" }
func (callbacks) Description() string {
	return "Handling outcomes asynchronously and producing from many goroutines."
}

func (callbacks) Run(ctx context.Context, env *Env) error {
	topic := env.Topic("lesson04-callbacks")
	out := env.Out

	p, err := env.NewProducer(nil)
	if err != nil {
		return err
	}
	defer stop(p)

	out.Step("one callback per record")
	out.Explain("callbacks run on the transport goroutine once the broker answers")
	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		p.Produce(ctx, &kpipeline.Record{
			Topic: topic,
			Key:   fmt.Appendf(nil, "order-%d", i),
			Value: fmt.Appendf(nil, "callback %d", i),
		}, func(res kpipeline.DeliveryOutcome) {
			defer wg.Done()
			out.Outcome(res)
		})
	}
	wg.Wait()

	out.Step("collecting outcomes through a channel")
	const n = 50
	outcomes := make(chan kpipeline.DeliveryOutcome, n)
	for i := range n {
		p.Produce(ctx, &kpipeline.Record{Topic: topic, Value: fmt.Appendf(nil, "channel %d", i)},
			func(res kpipeline.DeliveryOutcome) {
				outcomes <- res
			})
	}
	var delivered, failed int
	var slowest time.Duration
	for range n {
		res := <-outcomes
		if res.Err != nil {
			failed++
			continue
		}
		delivered++
		slowest = max(slowest, res.Latency)
	}
	out.Result("%d delivered, %d failed, slowest %s", delivered, failed, slowest.Round(time.Microsecond))

	out.Step("producing from several goroutines")
	out.Explain("a single producer is safe for concurrent use; share it")
	const (
		workers   = 4
		perWorker = 25
	)
	var ok, bad atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			var wg sync.WaitGroup
			for i := range perWorker {
				wg.Add(1)
				p.Produce(gctx, &kpipeline.Record{
					Topic: topic,
					Key:   fmt.Appendf(nil, "worker-%d", w),
					Value: fmt.Appendf(nil, "worker %d record %d", w, i),
				}, func(res kpipeline.DeliveryOutcome) {
					defer wg.Done()
					if res.Err != nil {
						bad.Add(1)
						return
					}
					ok.Add(1)
				})
			}
			wg.Wait()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	out.Result("%d workers: %d delivered, %d failed", workers, ok.Load(), bad.Load())
	if bad.Load() > 0 {
		return fmt.Errorf("%d concurrent records failed", bad.Load())
	}

	out.Tip("keep callbacks short; slow callbacks delay every other outcome of the partition")
	return nil
}
