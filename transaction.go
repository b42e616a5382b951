// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
)

// TxDecision is how a transaction ends.
type TxDecision int

const (
	// Commit makes every record of the transaction visible atomically.
	Commit TxDecision = iota

	// Abort discards every record of the transaction.
	Abort
)

// String returns the string representation of the TxDecision.
func (d TxDecision) String() string {
	switch d {
	case Commit:
		return "Commit"
	case Abort:
		return "Abort"
	default:
		return "Unknown"
	}
}

// Tx produces records inside a transaction started by Producer.Transact.
type Tx struct {
	p   *Producer
	ctx context.Context

	wg sync.WaitGroup

	mu  sync.Mutex
	err error
}

// Produce sends a record as part of the transaction. fn is called with the
// record's outcome and may be nil. Records of an aborted transaction are
// reported with an error.
func (tx *Tx) Produce(r *Record, fn func(DeliveryOutcome)) {
	tx.wg.Add(1)
	tx.p.Produce(tx.ctx, r, func(out DeliveryOutcome) {
		defer tx.wg.Done()
		if out.Err != nil {
			tx.mu.Lock()
			if tx.err == nil {
				tx.err = out.Err
			}
			tx.mu.Unlock()
		}
		if fn != nil {
			fn(out)
		}
	})
}

// firstErr returns the first record failure of the transaction.
func (tx *Tx) firstErr() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.err
}

// Transact runs fn inside a transaction and ends it as fn decides.
//
// Aborting is an ordinary result: fn returns Abort and Transact returns
// (Abort, nil). A Commit decision is downgraded to Abort, with the cause
// returned as the error, when a record of the transaction fails or the commit
// itself fails. Transactions of one producer are serialized.
func (p *Producer) Transact(ctx context.Context, fn func(*Tx) TxDecision) (TxDecision, error) {
	if p.TransactionalID == "" {
		return Abort, ErrNotTransactional
	}

	p.txMu.Lock()
	defer p.txMu.Unlock()

	p.clientMu.Lock()
	client := p.client
	p.clientMu.Unlock()

	if client == nil {
		return Abort, ErrNotStarted
	}

	if err := client.BeginTransaction(); err != nil {
		return Abort, fmt.Errorf("begin transaction: %w", err)
	}

	tx := &Tx{p: p, ctx: ctx}
	decision := fn(tx)

	var cause error
	if decision == Commit {
		if err := client.Flush(ctx); err != nil {
			cause = fmt.Errorf("flush transaction: %w", err)
		} else {
			tx.wg.Wait()
			cause = tx.firstErr()
		}
		if cause != nil {
			decision = Abort
		}
	}

	try := kgo.TryCommit
	if decision == Abort {
		try = kgo.TryAbort
		if err := client.AbortBufferedRecords(ctx); err != nil {
			return Abort, errors.Join(cause, fmt.Errorf("abort buffered records: %w", err))
		}
		tx.wg.Wait()
	}

	if err := client.EndTransaction(ctx, try); err != nil {
		return Abort, errors.Join(cause, fmt.Errorf("end transaction: %w", err))
	}

	p.logger.Log(kgo.LogLevelInfo, "transaction ended", "decision", decision.String())
	return decision, cause
}
