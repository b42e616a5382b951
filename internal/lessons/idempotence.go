// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"context"
	"fmt"
	"sync"

	"github.com/xmidt-org/kpipeline"
)

type idempotence struct{}

func (idempotence) Number() int   { return 7 }
func (idempotence) Title() string { return "Idempotent Producer" }
func (idempotence) Description() string {
	return "Retries without duplicates, and why the per-partition order survives them."
}

func (idempotence) Run(ctx context.Context, env *Env) error {
	topic := env.Topic("lesson07-idempotent")
	out := env.Out

	if err := env.EnsureTopic(ctx, topic, 1); err != nil {
		return err
	}

	out.Step("idempotent writes")
	out.Explain("the broker drops a batch it has already written, keyed by producer id and sequence")
	p, err := env.NewProducer(func(p *kpipeline.Producer) {
		p.Acks = kpipeline.AcksAll
		p.DisableIdempotence = false
		p.MaxRetries = 10
	})
	if err != nil {
		return err
	}
	defer stop(p)

	const n = 100
	offsets, err := sendSequence(ctx, p, topic, n)
	if err != nil {
		return err
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] != offsets[i-1]+1 {
			return fmt.Errorf("sequence %d at offset %d follows offset %d", i, offsets[i], offsets[i-1])
		}
	}
	out.Success("%d records at consecutive offsets %d..%d", n, offsets[0], offsets[n-1])

	out.Step("what turning it off changes")
	out.Explain("acks weaker than all disable idempotence; a retried batch may then be written twice")
	loose, err := env.NewProducer(func(p *kpipeline.Producer) {
		p.Acks = kpipeline.AcksLeader
	})
	if err != nil {
		return err
	}
	defer stop(loose)
	res := loose.ProduceSync(ctx, &kpipeline.Record{Topic: topic, Value: []byte("leader ack")})
	if res.Err != nil {
		return res.Err
	}
	out.Outcome(res)

	out.Tip("idempotence is on by default with acks=all; keep it unless throughput demands otherwise")
	return nil
}

// sendSequence sends n numbered records to a single partition and returns
// their offsets in send order.
func sendSequence(ctx context.Context, p *kpipeline.Producer, topic string, n int) ([]int64, error) {
	offsets := make([]int64, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		p.Produce(ctx, &kpipeline.Record{
			Topic:     topic,
			Key:       []byte("sequence"),
			Value:     fmt.Appendf(nil, "%d", i),
			Partition: kpipeline.PartitionOf(0),
		}, func(res kpipeline.DeliveryOutcome) {
			defer wg.Done()
			offsets[i] = res.Offset
			errs[i] = res.Err
		})
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return offsets, nil
}
