// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/xmidt-org/kpipeline"
)

type transactions struct{}

func (transactions) Number() int   { return 6 }
func (transactions) Title() string { return "Transactions" }
func (transactions) Description() string {
	return "Writing to several topics atomically, and what readers see when a transaction aborts."
}

func (transactions) Run(ctx context.Context, env *Env) error {
	orders := env.Topic("lesson06-orders")
	inventory := env.Topic("lesson06-inventory")
	notifications := env.Topic("lesson06-notifications")
	out := env.Out

	for _, topic := range []string{orders, inventory, notifications} {
		if err := env.EnsureTopic(ctx, topic, 1); err != nil {
			return err
		}
	}

	txID := "kpipeline-lesson06-" + uuid.NewString()[:8]
	p, err := env.NewProducer(func(p *kpipeline.Producer) {
		p.TransactionalID = txID
		p.Acks = kpipeline.AcksAll
		p.DisableIdempotence = false
	})
	if err != nil {
		return err
	}
	defer stop(p)
	out.Explain("transactional id %s", txID)

	out.Step("committing a single-topic transaction")
	decision, err := p.Transact(ctx, func(tx *kpipeline.Tx) kpipeline.TxDecision {
		for i := range 3 {
			tx.Produce(orderRecord(orders, sampleOrder(i, "CREATED")), nil)
		}
		return kpipeline.Commit
	})
	if err != nil {
		return err
	}
	out.Result("transaction ended with %s", decision)

	out.Step("one order across three topics")
	out.Explain("the order, the stock reservation and the notification become visible together")
	order := sampleOrder(100, "CONFIRMED")
	decision, err = p.Transact(ctx, func(tx *kpipeline.Tx) kpipeline.TxDecision {
		tx.Produce(orderRecord(orders, order), nil)
		tx.Produce(&kpipeline.Record{
			Topic: inventory,
			Key:   []byte(order.Product),
			Value: fmt.Appendf(nil, `{"product":%q,"reserved":%d}`, order.Product, order.Quantity),
		}, nil)
		tx.Produce(&kpipeline.Record{
			Topic: notifications,
			Key:   []byte(order.CustomerID),
			Value: fmt.Appendf(nil, "order %s confirmed", order.OrderID),
		}, nil)
		return kpipeline.Commit
	})
	if err != nil {
		return err
	}
	out.Result("transaction ended with %s", decision)

	out.Step("aborting a transaction")
	decision, err = p.Transact(ctx, func(tx *kpipeline.Tx) kpipeline.TxDecision {
		bad := sampleOrder(999, "CREATED")
		bad.Quantity = -1
		tx.Produce(orderRecord(orders, bad), nil)
		if bad.Quantity <= 0 {
			out.Explain("order %s has quantity %d, aborting", bad.OrderID, bad.Quantity)
			return kpipeline.Abort
		}
		return kpipeline.Commit
	})
	if err != nil {
		return err
	}
	out.Result("transaction ended with %s", decision)

	out.Step("reading with isolation level read_committed")
	records, err := env.Consume(ctx, orders, 100, kgo.FetchIsolationLevel(kgo.ReadCommitted()))
	if err != nil {
		return err
	}
	for _, r := range records {
		var o Order
		if err := json.Unmarshal(r.Value, &o); err != nil {
			continue
		}
		if o.OrderID == "order-0999" {
			return fmt.Errorf("aborted order visible at offset %d", r.Offset)
		}
	}
	out.Success("%d committed orders visible, the aborted one is not", len(records))

	out.Tip("transactions cost a round trip per commit; batch many records into one")
	return nil
}

func orderRecord(topic string, o Order) *kpipeline.Record {
	value, _ := JSONSerializer{}.Serialize(o)
	r := &kpipeline.Record{Topic: topic, Key: []byte(o.OrderID), Value: value}
	r.AddHeader(HeaderContentType, []byte(JSONSerializer{}.ContentType()))
	return r
}
