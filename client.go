// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
)

// kafkaClient is the subset of the franz-go client used by the pipeline. It
// allows the client to be mocked in tests while *kgo.Client is used in
// production.
type kafkaClient interface {
	// TryProduce produces a record without blocking; if the buffer is full the
	// promise is called immediately with kgo.ErrMaxBuffered.
	TryProduce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))

	// Produce produces a record asynchronously, blocking while the buffer is full.
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))

	// Flush waits for every buffered record to complete.
	Flush(ctx context.Context) error

	// Close closes the client; buffered records fail with kgo.ErrClientClosed.
	Close()

	// BufferedProduceRecords returns the current number of buffered records.
	BufferedProduceRecords() int64

	// BufferedProduceBytes returns the current number of buffered bytes.
	BufferedProduceBytes() int64

	// BeginTransaction starts a transaction (transactional clients only).
	BeginTransaction() error

	// EndTransaction commits or aborts the current transaction.
	EndTransaction(ctx context.Context, commit kgo.TransactionEndTry) error

	// AbortBufferedRecords fails every buffered record, used before aborting.
	AbortBufferedRecords(ctx context.Context) error
}

// Verify that *kgo.Client implements kafkaClient interface at compile time.
var _ kafkaClient = (*kgo.Client)(nil)
