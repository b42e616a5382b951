// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
)

// DefaultPartitionCacheTTL is how long a looked up partition count is reused.
const DefaultPartitionCacheTTL = 30 * time.Second

// PartitionCounter looks up the number of partitions of a topic. The Router is
// evaluated against the count it returns.
type PartitionCounter interface {
	PartitionCount(ctx context.Context, topic string) (int, error)
}

// PartitionCounterFunc adapts a function to PartitionCounter.
type PartitionCounterFunc func(ctx context.Context, topic string) (int, error)

// PartitionCount implements PartitionCounter.
func (f PartitionCounterFunc) PartitionCount(ctx context.Context, topic string) (int, error) {
	return f(ctx, topic)
}

// topicLister is the subset of *kadm.Client used for partition lookups.
type topicLister interface {
	ListTopics(ctx context.Context, topics ...string) (kadm.TopicDetails, error)
}

var _ topicLister = (*kadm.Client)(nil)

// metadataPartitionCounter looks up partition counts from broker metadata and
// caches them for ttl.
type metadataPartitionCounter struct {
	admin topicLister
	ttl   time.Duration
	now   func() time.Time

	mu     sync.Mutex
	counts map[string]cachedCount
}

type cachedCount struct {
	n       int
	expires time.Time
}

func newMetadataPartitionCounter(admin topicLister, ttl time.Duration) *metadataPartitionCounter {
	if ttl <= 0 {
		ttl = DefaultPartitionCacheTTL
	}
	return &metadataPartitionCounter{
		admin:  admin,
		ttl:    ttl,
		now:    time.Now,
		counts: make(map[string]cachedCount),
	}
}

// PartitionCount implements PartitionCounter.
func (m *metadataPartitionCounter) PartitionCount(ctx context.Context, topic string) (int, error) {
	now := m.now()

	m.mu.Lock()
	c, ok := m.counts[topic]
	m.mu.Unlock()
	if ok && now.Before(c.expires) {
		return c.n, nil
	}

	details, err := m.admin.ListTopics(ctx, topic)
	if err != nil {
		return 0, errors.Join(ErrPartitionLookup, err)
	}

	detail, ok := details[topic]
	if !ok {
		return 0, errors.Join(ErrPartitionLookup, fmt.Errorf("topic '%s' not in metadata", topic))
	}
	if detail.Err != nil {
		return 0, errors.Join(ErrPartitionLookup, detail.Err)
	}

	n := len(detail.Partitions)
	if n == 0 {
		return 0, errors.Join(ErrPartitionLookup, fmt.Errorf("topic '%s' has no partitions", topic))
	}

	m.mu.Lock()
	m.counts[topic] = cachedCount{n: n, expires: now.Add(m.ttl)}
	m.mu.Unlock()

	return n, nil
}
