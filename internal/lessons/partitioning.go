// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/xmidt-org/kpipeline"
)

type partitioning struct{}

func (partitioning) Number() int   { return 3 }
func (partitioning) Title() string { return "Partitioning" }
func (partitioning) Description() string {
	return "How records are spread across partitions: no key, keys, explicit partitions and a custom router."
}

const partitioningPartitions = 6

func (partitioning) Run(ctx context.Context, env *Env) error {
	topic := env.Topic("lesson03-partitioning")
	out := env.Out

	if err := env.EnsureTopic(ctx, topic, partitioningPartitions); err != nil {
		return err
	}

	p, err := env.NewProducer(nil)
	if err != nil {
		return err
	}
	defer stop(p)

	out.Step("records without a key")
	out.Explain("the sticky partitioner fills one batch at a time, then moves on")
	dist, err := distribution(ctx, p, 20, func(i int) *kpipeline.Record {
		return &kpipeline.Record{Topic: topic, Value: fmt.Appendf(nil, "unkeyed %d", i)}
	})
	if err != nil {
		return err
	}
	printDistribution(out, dist)

	out.Step("records with keys")
	out.Explain("the key hash picks the partition, so a key always lands in the same place")
	dist, err = distribution(ctx, p, 20, func(i int) *kpipeline.Record {
		return &kpipeline.Record{
			Topic: topic,
			Key:   fmt.Appendf(nil, "customer-%d", i%4),
			Value: fmt.Appendf(nil, "keyed %d", i),
		}
	})
	if err != nil {
		return err
	}
	printDistribution(out, dist)

	out.Step("explicit partition")
	res := p.ProduceSync(ctx, &kpipeline.Record{
		Topic:     topic,
		Key:       []byte("anything"),
		Value:     []byte("pinned"),
		Partition: kpipeline.PartitionOf(5),
	})
	if res.Err != nil {
		return res.Err
	}
	out.Outcome(res)

	out.Step("region router")
	router := env.Config.Router()
	if router == nil {
		router = kpipeline.RegionRouter()
	}
	for _, rule := range router.Rules {
		out.Explain("keys starting with %q go to partition %d", rule.Prefix, rule.Partition)
	}
	out.Explain("everything else goes to partition %d", router.Fallback)

	routed, err := env.NewProducer(func(p *kpipeline.Producer) {
		p.Router = router
	})
	if err != nil {
		return err
	}
	defer stop(routed)

	for _, key := range []string{"US-1001", "EU-2002", "APAC-3003", "LATAM-4004", "us-5005", ""} {
		r := &kpipeline.Record{Topic: topic, Value: []byte("region order")}
		if key != "" {
			r.Key = []byte(key)
		}
		res := routed.ProduceSync(ctx, r)
		if res.Err != nil {
			return res.Err
		}
		out.Result("key %-12q -> partition %d", key, res.Partition)
	}

	out.Tip("ordering is only guaranteed within a partition; pick keys that group what must stay ordered")
	return nil
}

// distribution sends n records built by build and counts them per partition.
func distribution(ctx context.Context, p *kpipeline.Producer, n int, build func(int) *kpipeline.Record) (map[int32]int, error) {
	var (
		mu     sync.Mutex
		counts = make(map[int32]int)
		first  error
	)
	for i := range n {
		p.Produce(ctx, build(i), func(res kpipeline.DeliveryOutcome) {
			mu.Lock()
			defer mu.Unlock()
			if res.Err != nil {
				if first == nil {
					first = res.Err
				}
				return
			}
			counts[res.Partition]++
		})
	}
	if err := p.Flush(ctx); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return counts, first
}

func printDistribution(out *Printer, counts map[int32]int) {
	for _, partition := range slices.Sorted(maps.Keys(counts)) {
		out.Result("partition %d: %d records", partition, counts[partition])
	}
}
