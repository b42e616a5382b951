// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
)

// fakeTopicLister serves topic metadata from a map and counts lookups.
type fakeTopicLister struct {
	mu     sync.Mutex
	topics map[string]kadm.TopicDetail
	err    error
	calls  int
}

func (f *fakeTopicLister) ListTopics(_ context.Context, topics ...string) (kadm.TopicDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(kadm.TopicDetails)
	for _, topic := range topics {
		if d, ok := f.topics[topic]; ok {
			out[topic] = d
		}
	}
	return out, nil
}

func topicWithPartitions(topic string, n int) kadm.TopicDetail {
	d := kadm.TopicDetail{Topic: topic, Partitions: make(kadm.PartitionDetails)}
	for i := 0; i < n; i++ {
		d.Partitions[int32(i)] = kadm.PartitionDetail{Topic: topic, Partition: int32(i)}
	}
	return d
}

func TestMetadataPartitionCounter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		lister  *fakeTopicLister
		topic   string
		want    int
		wantErr error
	}{
		{
			name: "partition count",
			lister: &fakeTopicLister{topics: map[string]kadm.TopicDetail{
				"orders": topicWithPartitions("orders", 6),
			}},
			topic: "orders",
			want:  6,
		},
		{
			name:    "missing topic",
			lister:  &fakeTopicLister{},
			topic:   "orders",
			wantErr: ErrPartitionLookup,
		},
		{
			name: "topic error",
			lister: &fakeTopicLister{topics: map[string]kadm.TopicDetail{
				"orders": {Topic: "orders", Err: kerr.UnknownTopicOrPartition},
			}},
			topic:   "orders",
			wantErr: kerr.UnknownTopicOrPartition,
		},
		{
			name: "no partitions",
			lister: &fakeTopicLister{topics: map[string]kadm.TopicDetail{
				"orders": topicWithPartitions("orders", 0),
			}},
			topic:   "orders",
			wantErr: ErrPartitionLookup,
		},
		{
			name:    "request error",
			lister:  &fakeTopicLister{err: context.DeadlineExceeded},
			topic:   "orders",
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newMetadataPartitionCounter(tt.lister, 0)

			n, err := c.PartitionCount(context.Background(), tt.topic)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.True(t, errors.Is(err, ErrPartitionLookup))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestMetadataPartitionCounter_Cache(t *testing.T) {
	t.Parallel()

	lister := &fakeTopicLister{topics: map[string]kadm.TopicDetail{
		"orders": topicWithPartitions("orders", 3),
	}}

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newMetadataPartitionCounter(lister, time.Minute)
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		n, err := c.PartitionCount(context.Background(), "orders")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
	assert.Equal(t, 1, lister.calls)

	// The topic grows; the cached count is served until it expires.
	lister.topics["orders"] = topicWithPartitions("orders", 8)
	now = now.Add(30 * time.Second)
	n, _ := c.PartitionCount(context.Background(), "orders")
	assert.Equal(t, 3, n)

	now = now.Add(time.Minute)
	n, _ = c.PartitionCount(context.Background(), "orders")
	assert.Equal(t, 8, n)
	assert.Equal(t, 2, lister.calls)
}

func TestMetadataPartitionCounter_FailuresNotCached(t *testing.T) {
	t.Parallel()

	lister := &fakeTopicLister{err: errors.New("connection refused")}
	c := newMetadataPartitionCounter(lister, time.Minute)

	_, err := c.PartitionCount(context.Background(), "orders")
	require.Error(t, err)

	lister.err = nil
	lister.topics = map[string]kadm.TopicDetail{"orders": topicWithPartitions("orders", 2)}

	n, err := c.PartitionCount(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewMetadataPartitionCounter_DefaultTTL(t *testing.T) {
	t.Parallel()

	c := newMetadataPartitionCounter(&fakeTopicLister{}, -time.Second)
	assert.Equal(t, DefaultPartitionCacheTTL, c.ttl)
}
