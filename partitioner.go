// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
)

// pinnedKey marks, in kgo.Record.Context, records whose partition was chosen
// by the pipeline (explicitly or by the Router).
type pinnedKey struct{}

func pin(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, pinnedKey{}, true)
}

func isPinned(r *kgo.Record) bool {
	if r.Context == nil {
		return false
	}
	pinned, _ := r.Context.Value(pinnedKey{}).(bool)
	return pinned
}

// pinnedPartitioner keeps the partition of pinned records and hands every
// other record to the fallback partitioner.
type pinnedPartitioner struct {
	fallback kgo.Partitioner
}

var _ kgo.Partitioner = (*pinnedPartitioner)(nil)

func newPinnedPartitioner() *pinnedPartitioner {
	return &pinnedPartitioner{
		fallback: kgo.StickyKeyPartitioner(nil),
	}
}

func (p *pinnedPartitioner) ForTopic(topic string) kgo.TopicPartitioner {
	return &pinnedTopicPartitioner{
		fallback: p.fallback.ForTopic(topic),
	}
}

type pinnedTopicPartitioner struct {
	fallback kgo.TopicPartitioner
}

var _ kgo.TopicPartitionerOnNewBatch = (*pinnedTopicPartitioner)(nil)

func (tp *pinnedTopicPartitioner) RequiresConsistency(r *kgo.Record) bool {
	return isPinned(r) || tp.fallback.RequiresConsistency(r)
}

// Partition reduces pinned partitions modulo n, in case the topic shrank or
// the count used for routing was stale.
func (tp *pinnedTopicPartitioner) Partition(r *kgo.Record, n int) int {
	if isPinned(r) {
		if n <= 1 {
			return 0
		}
		return reduce(int(r.Partition), n)
	}
	return tp.fallback.Partition(r, n)
}

// OnNewBatch forwards new-batch notifications so the sticky fallback can move
// keyless records to a new partition.
func (tp *pinnedTopicPartitioner) OnNewBatch() {
	if nb, ok := tp.fallback.(kgo.TopicPartitionerOnNewBatch); ok {
		nb.OnNewBatch()
	}
}
