// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"context"
	"fmt"
	"sync"

	"github.com/xmidt-org/kpipeline"
)

type basics struct{}

func (basics) Number() int   { return 1 }
func (basics) Title() string { return "Producer Basics" }
func (basics) Description() string {
	return "The ways a record can be sent and what the producer reports back."
}

func (basics) Run(ctx context.Context, env *Env) error {
	topic := env.Topic("lesson01-basics")
	out := env.Out

	out.Step("fire and forget")
	out.Explain("acks=none: the broker never answers, so the outcome only says the record left the buffer")
	ff, err := env.NewProducer(func(p *kpipeline.Producer) {
		p.Acks = kpipeline.AcksNone
	})
	if err != nil {
		return err
	}
	ff.TryProduce(ctx, &kpipeline.Record{Topic: topic, Value: []byte("fire and forget")}, nil)
	if err := ff.Flush(ctx); err != nil {
		stop(ff)
		return err
	}
	stop(ff)
	out.Success("record handed off without waiting for the broker")

	p, err := env.NewProducer(nil)
	if err != nil {
		return err
	}
	defer stop(p)

	out.Step("synchronous send")
	res := p.ProduceSync(ctx, &kpipeline.Record{Topic: topic, Value: []byte("hello, kafka")})
	if res.Err != nil {
		return res.Err
	}
	out.Outcome(res)

	out.Step("send with a key")
	out.Explain("records with the same key land on the same partition")
	for range 3 {
		res := p.ProduceSync(ctx, &kpipeline.Record{
			Topic: topic,
			Key:   []byte("user-42"),
			Value: []byte("keyed"),
		})
		if res.Err != nil {
			return res.Err
		}
		out.Outcome(res)
	}

	out.Step("asynchronous send")
	var wg sync.WaitGroup
	wg.Add(1)
	p.Produce(ctx, &kpipeline.Record{Topic: topic, Value: []byte("async")}, func(res kpipeline.DeliveryOutcome) {
		defer wg.Done()
		out.Outcome(res)
	})
	out.Result("Produce returned before the broker answered")
	wg.Wait()

	out.Step("batch of 10 then flush")
	var (
		mu     sync.Mutex
		failed int
	)
	for i := range 10 {
		p.Produce(ctx, &kpipeline.Record{
			Topic: topic,
			Key:   fmt.Appendf(nil, "batch-%d", i),
			Value: fmt.Appendf(nil, "message %d", i),
		}, func(res kpipeline.DeliveryOutcome) {
			if res.Err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		})
	}
	if err := p.Flush(ctx); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if failed > 0 {
		return fmt.Errorf("%d of 10 batched records failed", failed)
	}
	out.Success("10 records delivered")

	out.Tip("ProduceSync is simple but slow; Produce with a callback keeps the pipeline full")
	return nil
}
