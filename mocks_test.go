// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/twmb/franz-go/pkg/kgo"
)

// mockKafkaClient is a mock implementation of kafkaClient for testing.
type mockKafkaClient struct {
	mock.Mock
}

func (m *mockKafkaClient) Produce(ctx context.Context, r *kgo.Record, cb func(*kgo.Record, error)) {
	m.Called(ctx, r, cb)
}

func (m *mockKafkaClient) TryProduce(ctx context.Context, r *kgo.Record, cb func(*kgo.Record, error)) {
	m.Called(ctx, r, cb)
}

func (m *mockKafkaClient) Flush(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockKafkaClient) Close() {
	m.Called()
}

func (m *mockKafkaClient) BufferedProduceRecords() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

func (m *mockKafkaClient) BufferedProduceBytes() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

func (m *mockKafkaClient) BeginTransaction() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockKafkaClient) EndTransaction(ctx context.Context, commit kgo.TransactionEndTry) error {
	args := m.Called(ctx, commit)
	return args.Error(0)
}

func (m *mockKafkaClient) AbortBufferedRecords(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ackWith returns a mock Run function that completes the produced record
// immediately, assigning partition/offset on success.
func ackWith(err error) func(mock.Arguments) {
	var mu sync.Mutex
	var offset int64
	return func(args mock.Arguments) {
		r := args.Get(1).(*kgo.Record)
		cb := args.Get(2).(func(*kgo.Record, error))
		if err == nil {
			mu.Lock()
			r.Offset = offset
			offset++
			mu.Unlock()
		}
		cb(r, err)
	}
}

// recordingLogger captures log lines.
type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

type logLine struct {
	level   kgo.LogLevel
	msg     string
	keyvals []any
}

func (l *recordingLogger) Level() kgo.LogLevel { return kgo.LogLevelDebug }

func (l *recordingLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: msg, keyvals: keyvals})
}

func (l *recordingLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.lines))
	for _, line := range l.lines {
		out = append(out, line.msg)
	}
	return out
}

// value returns the value logged for key on the first line with msg.
func (l *recordingLogger) value(msg, key string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if line.msg != msg {
			continue
		}
		for i := 0; i+1 < len(line.keyvals); i += 2 {
			if line.keyvals[i] == key {
				return line.keyvals[i+1], true
			}
		}
	}
	return nil, false
}

// newTestProducer returns a started producer backed by client.
func newTestProducer(client kafkaClient, configure func(*Producer)) *Producer {
	p := &Producer{
		Brokers: []string{"localhost:9092"},
	}
	if configure != nil {
		configure(p)
	}
	p.clientFactory = func(opts ...kgo.Opt) (kafkaClient, error) {
		return client, nil
	}
	if err := p.Start(); err != nil {
		panic(err)
	}
	return p
}
