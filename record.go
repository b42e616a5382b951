// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"bytes"
	"context"
	"slices"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Header is a single record header. Headers are kept as an ordered list, so
// duplicate keys are allowed and insertion order is preserved end to end.
type Header struct {
	Key   string
	Value []byte
}

// Record is one application-level message destined for a topic.
//
// A record may be changed by interceptors while it passes through the OnSend
// stage; after that it is treated as immutable.
type Record struct {
	// Topic is the destination topic. Required. Interceptors may not change it.
	Topic string

	// Key is the routing key. A nil or empty key is treated as absent.
	Key []byte

	// Value is the record payload.
	Value []byte

	// Headers are the record headers in insertion order.
	Headers []Header

	// Partition, when set, pins the record to an explicit partition and
	// bypasses the Router.
	Partition *int32

	// Context is the context of the send call. It is set by the producer
	// before the OnSend stage and may be read by interceptors (for example to
	// find the active trace).
	Context context.Context
}

// PartitionOf returns a pointer to p for use as Record.Partition.
func PartitionOf(p int32) *int32 {
	return &p
}

// Header returns the value of the first header with the given key.
func (r *Record) Header(key string) ([]byte, bool) {
	for _, h := range r.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return nil, false
}

// AddHeader appends a header, keeping any existing headers with the same key.
func (r *Record) AddHeader(key string, value []byte) {
	r.Headers = append(r.Headers, Header{Key: key, Value: value})
}

// Size is the number of payload bytes counted for the record: key plus value.
func (r *Record) Size() int {
	return len(r.Key) + len(r.Value)
}

// clone returns a copy that can be changed without affecting r.
func (r *Record) clone() *Record {
	c := *r
	c.Key = bytes.Clone(r.Key)
	c.Value = bytes.Clone(r.Value)
	c.Headers = slices.Clone(r.Headers)
	for i := range c.Headers {
		c.Headers[i].Value = bytes.Clone(c.Headers[i].Value)
	}
	if r.Partition != nil {
		c.Partition = PartitionOf(*r.Partition)
	}
	return &c
}

// toKgo converts the record to a franz-go record.
func (r *Record) toKgo() *kgo.Record {
	kr := &kgo.Record{
		Topic:   r.Topic,
		Key:     r.Key,
		Value:   r.Value,
		Context: r.Context,
	}
	if len(r.Headers) > 0 {
		kr.Headers = make([]kgo.RecordHeader, 0, len(r.Headers))
		for _, h := range r.Headers {
			kr.Headers = append(kr.Headers, kgo.RecordHeader{Key: h.Key, Value: h.Value})
		}
	}
	return kr
}
