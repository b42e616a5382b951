// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/xmidt-org/kpipeline"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Classification
	}{
		{name: "not leader", err: kerr.NotLeaderForPartition, want: Retriable},
		{name: "request timed out", err: kerr.RequestTimedOut, want: Retriable},
		{name: "wrapped retriable", err: fmt.Errorf("send: %w", kerr.LeaderNotAvailable), want: Retriable},
		{name: "message too large", err: kerr.MessageTooLarge, want: Fatal},
		{name: "authorization", err: kerr.TopicAuthorizationFailed, want: Fatal},
		{name: "record timeout", err: kgo.ErrRecordTimeout, want: Retriable},
		{name: "record retries", err: kgo.ErrRecordRetries, want: Retriable},
		{name: "buffer full", err: kgo.ErrMaxBuffered, want: Overloaded},
		{name: "client closed", err: kgo.ErrClientClosed, want: Fatal},
		{name: "canceled", err: context.Canceled, want: Fatal},
		{name: "validation", err: errors.Join(kpipeline.ErrValidation, errors.New("no topic")), want: Fatal},
		{name: "not started", err: kpipeline.ErrNotStarted, want: Fatal},
		{name: "unknown", err: errors.New("network blip"), want: Retriable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassification_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "retriable", Retriable.String())
	assert.Equal(t, "fatal", Fatal.String())
	assert.Equal(t, "overloaded", Overloaded.String())
	assert.Equal(t, "unknown", Classification(9).String())
}

func TestRetryBackoff(t *testing.T) {
	t.Parallel()

	schedule := RetryBackoff(100*time.Millisecond, time.Second)
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, d := range want {
		assert.Equal(t, d, schedule(i+1), "retry %d", i+1)
	}
}

func TestDeadLetter(t *testing.T) {
	t.Parallel()

	r := &kpipeline.Record{
		Topic: "orders",
		Key:   []byte("order-1"),
		Value: bytes.Repeat([]byte("v"), 2048),
		Headers: []kpipeline.Header{
			{Key: "trace", Value: []byte("abc")},
		},
	}
	res := kpipeline.DeliveryOutcome{
		Topic:     "orders",
		Partition: -1,
		Offset:    -1,
		Timestamp: -1,
		Err:       kerr.MessageTooLarge,
	}

	d := deadLetter("orders-dlt", r, res)

	assert.Equal(t, "orders-dlt", d.Topic)
	assert.Equal(t, r.Key, d.Key)
	assert.Len(t, d.Value, 1024+len("..."))
	assert.Len(t, r.Value, 2048, "the original record must not change")
	assert.Len(t, r.Headers, 1, "the original headers must not change")

	header := func(key string) string {
		v, ok := d.Header(key)
		require.True(t, ok, "missing header %s", key)
		return string(v)
	}
	assert.Equal(t, "abc", header("trace"))
	assert.Equal(t, kerr.MessageTooLarge.Error(), header(HeaderDLTError))
	assert.Equal(t, "broker_error", header(HeaderDLTErrorType))
	assert.Equal(t, "orders", header(HeaderDLTTopic))
	assert.Equal(t, "false", header(HeaderDLTRetriable))

	_, err := time.Parse(time.RFC3339Nano, header(HeaderDLTFailedAt))
	assert.NoError(t, err)
}
