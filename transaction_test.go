// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

func newTxClient(produce func(mock.Arguments)) *mockKafkaClient {
	client := &mockKafkaClient{}
	client.On("BeginTransaction").Return(nil)
	client.On("Produce", mock.Anything, mock.Anything, mock.Anything).Run(produce)
	client.On("Flush", mock.Anything).Return(nil)
	client.On("AbortBufferedRecords", mock.Anything).Return(nil)
	client.On("EndTransaction", mock.Anything, mock.Anything).Return(nil)
	return client
}

func TestTransact_Commit(t *testing.T) {
	t.Parallel()

	client := newTxClient(ackWith(nil))
	p := newTestProducer(client, func(p *Producer) {
		p.TransactionalID = "tx-1"
	})

	var outcomes []DeliveryOutcome
	decision, err := p.Transact(context.Background(), func(tx *Tx) TxDecision {
		for _, v := range []string{"a", "b", "c"} {
			tx.Produce(&Record{Topic: "orders", Value: []byte(v)}, func(o DeliveryOutcome) {
				outcomes = append(outcomes, o)
			})
		}
		return Commit
	})

	require.NoError(t, err)
	assert.Equal(t, Commit, decision)
	assert.Len(t, outcomes, 3)
	client.AssertCalled(t, "EndTransaction", mock.Anything, kgo.TryCommit)
	client.AssertNotCalled(t, "AbortBufferedRecords", mock.Anything)
}

func TestTransact_UserAbort(t *testing.T) {
	t.Parallel()

	client := newTxClient(ackWith(nil))
	p := newTestProducer(client, func(p *Producer) {
		p.TransactionalID = "tx-1"
	})

	decision, err := p.Transact(context.Background(), func(tx *Tx) TxDecision {
		tx.Produce(&Record{Topic: "orders", Value: []byte("a")}, nil)
		return Abort
	})

	require.NoError(t, err, "an abort chosen by the caller is not an error")
	assert.Equal(t, Abort, decision)
	client.AssertCalled(t, "AbortBufferedRecords", mock.Anything)
	client.AssertCalled(t, "EndTransaction", mock.Anything, kgo.TryAbort)
	client.AssertNotCalled(t, "Flush", mock.Anything)
}

func TestTransact_RecordFailureAborts(t *testing.T) {
	t.Parallel()

	client := newTxClient(ackWith(kerr.InvalidProducerEpoch))
	p := newTestProducer(client, func(p *Producer) {
		p.TransactionalID = "tx-1"
	})

	decision, err := p.Transact(context.Background(), func(tx *Tx) TxDecision {
		tx.Produce(&Record{Topic: "orders", Value: []byte("a")}, nil)
		return Commit
	})

	assert.Equal(t, Abort, decision)
	assert.ErrorIs(t, err, kerr.InvalidProducerEpoch)
	client.AssertCalled(t, "EndTransaction", mock.Anything, kgo.TryAbort)
}

func TestTransact_FlushFailureAborts(t *testing.T) {
	t.Parallel()

	client := &mockKafkaClient{}
	client.On("BeginTransaction").Return(nil)
	client.On("Flush", mock.Anything).Return(context.DeadlineExceeded)
	client.On("AbortBufferedRecords", mock.Anything).Return(nil)
	client.On("EndTransaction", mock.Anything, kgo.TryAbort).Return(nil)

	p := newTestProducer(client, func(p *Producer) {
		p.TransactionalID = "tx-1"
	})

	decision, err := p.Transact(context.Background(), func(*Tx) TxDecision { return Commit })

	assert.Equal(t, Abort, decision)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "flush transaction")
}

func TestTransact_Errors(t *testing.T) {
	t.Parallel()

	t.Run("not transactional", func(t *testing.T) {
		t.Parallel()
		p := newTestProducer(&mockKafkaClient{}, nil)

		decision, err := p.Transact(context.Background(), func(*Tx) TxDecision { return Commit })
		assert.Equal(t, Abort, decision)
		assert.ErrorIs(t, err, ErrNotTransactional)
	})

	t.Run("not started", func(t *testing.T) {
		t.Parallel()
		p := &Producer{TransactionalID: "tx-1"}

		_, err := p.Transact(context.Background(), func(*Tx) TxDecision { return Commit })
		assert.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("begin fails", func(t *testing.T) {
		t.Parallel()
		client := &mockKafkaClient{}
		client.On("BeginTransaction").Return(errors.New("already in a transaction"))
		p := newTestProducer(client, func(p *Producer) {
			p.TransactionalID = "tx-1"
		})

		called := false
		_, err := p.Transact(context.Background(), func(*Tx) TxDecision {
			called = true
			return Commit
		})
		assert.EqualError(t, err, "begin transaction: already in a transaction")
		assert.False(t, called)
	})

	t.Run("end fails", func(t *testing.T) {
		t.Parallel()
		client := &mockKafkaClient{}
		client.On("BeginTransaction").Return(nil)
		client.On("Flush", mock.Anything).Return(nil)
		client.On("EndTransaction", mock.Anything, kgo.TryCommit).Return(kerr.ConcurrentTransactions)
		p := newTestProducer(client, func(p *Producer) {
			p.TransactionalID = "tx-1"
		})

		decision, err := p.Transact(context.Background(), func(*Tx) TxDecision { return Commit })
		assert.Equal(t, Abort, decision)
		assert.ErrorIs(t, err, kerr.ConcurrentTransactions)
	})
}

func TestTxDecision_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Commit", Commit.String())
	assert.Equal(t, "Abort", Abort.String())
	assert.Equal(t, "Unknown", TxDecision(7).String())
}
