// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics aggregates send statistics for one producer. The zero value is ready
// to use.
//
// Every counter is updated atomically, so RecordSent and RecordAcknowledged may
// race freely across records. Reset is serialized against updates: it waits for
// updates in progress and blocks new ones until the counters are zeroed.
type Metrics struct {
	// mu is held shared by updates and exclusively by Reset.
	mu sync.RWMutex

	sent      atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	bytes     atomic.Int64

	// Latencies are stored in nanoseconds. A min of 0 means no sample yet;
	// samples are clamped to at least 1ns so 0 is never a real minimum.
	latencySum atomic.Int64
	latencyMin atomic.Int64
	latencyMax atomic.Int64

	// topics maps topic name to *atomic.Int64.
	topics sync.Map
}

// MetricsState is a point-in-time view of a Metrics aggregator. Each field is
// read atomically; the view is not atomic across fields.
type MetricsState struct {
	Sent      int64
	Succeeded int64
	Failed    int64

	// Bytes is the sum of key and value lengths of every sent record.
	Bytes int64

	// Topics is the number of records sent per topic.
	Topics map[string]int64

	// LatencySum, LatencyMin and LatencyMax cover successful deliveries only.
	// LatencyMin is zero until the first sample.
	LatencySum time.Duration
	LatencyMin time.Duration
	LatencyMax time.Duration
}

// RecordSent counts a record that is about to be handed to the transport.
func (m *Metrics) RecordSent(r *Record) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.sent.Add(1)
	m.bytes.Add(int64(r.Size()))

	counter, ok := m.topics.Load(r.Topic)
	if !ok {
		counter, _ = m.topics.LoadOrStore(r.Topic, new(atomic.Int64))
	}
	counter.(*atomic.Int64).Add(1)
}

// RecordAcknowledged counts a delivery outcome. Successful outcomes contribute
// their latency to the latency accumulator.
func (m *Metrics) RecordAcknowledged(out DeliveryOutcome) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if out.Err != nil {
		m.failed.Add(1)
		return
	}

	m.succeeded.Add(1)

	sample := max(int64(out.Latency), 1)
	m.latencySum.Add(sample)

	for {
		cur := m.latencyMin.Load()
		if cur != 0 && cur <= sample {
			break
		}
		if m.latencyMin.CompareAndSwap(cur, sample) {
			break
		}
	}

	for {
		cur := m.latencyMax.Load()
		if cur >= sample {
			break
		}
		if m.latencyMax.CompareAndSwap(cur, sample) {
			break
		}
	}
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() MetricsState {
	state := MetricsState{
		Sent:       m.sent.Load(),
		Succeeded:  m.succeeded.Load(),
		Failed:     m.failed.Load(),
		Bytes:      m.bytes.Load(),
		Topics:     make(map[string]int64),
		LatencySum: time.Duration(m.latencySum.Load()),
		LatencyMin: time.Duration(m.latencyMin.Load()),
		LatencyMax: time.Duration(m.latencyMax.Load()),
	}

	m.topics.Range(func(k, v any) bool {
		state.Topics[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})

	return state
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent.Store(0)
	m.succeeded.Store(0)
	m.failed.Store(0)
	m.bytes.Store(0)
	m.latencySum.Store(0)
	m.latencyMin.Store(0)
	m.latencyMax.Store(0)
	m.topics.Clear()
}

// SuccessRate returns the percentage of sent records that were delivered.
func (s MetricsState) SuccessRate() float64 {
	if s.Sent == 0 {
		return 0
	}
	return 100 * float64(s.Succeeded) / float64(s.Sent)
}

// AverageLatency returns the mean latency of successful deliveries.
func (s MetricsState) AverageLatency() time.Duration {
	if s.Succeeded == 0 {
		return 0
	}
	return s.LatencySum / time.Duration(s.Succeeded)
}

// WriteReport writes a human-readable summary of the state to w.
func (s MetricsState) WriteReport(w io.Writer) error {
	ew := errWriter{w: w}

	ew.printf("messages_sent_total:     %8d\n", s.Sent)
	ew.printf("messages_success_total:  %8d\n", s.Succeeded)
	ew.printf("messages_failed_total:   %8d\n", s.Failed)
	ew.printf("total_bytes_sent:        %8d\n", s.Bytes)
	ew.printf("success_rate:            %7.1f%%\n", s.SuccessRate())

	if s.Succeeded > 0 {
		ew.printf("avg_latency:             %8s\n", s.AverageLatency().Round(time.Microsecond))
		ew.printf("min_latency:             %8s\n", s.LatencyMin.Round(time.Microsecond))
		ew.printf("max_latency:             %8s\n", s.LatencyMax.Round(time.Microsecond))
	}

	if len(s.Topics) > 0 {
		ew.printf("messages per topic:\n")
		for _, topic := range slices.Sorted(maps.Keys(s.Topics)) {
			ew.printf("  %s: %d\n", topic, s.Topics[topic])
		}
	}

	return ew.err
}

// errWriter stops writing after the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
