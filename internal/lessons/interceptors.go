// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/xmidt-org/kpipeline"
)

type interceptors struct{}

func (interceptors) Number() int   { return 9 }
func (interceptors) Title() string { return "Interceptors" }
func (interceptors) Description() string {
	return "Observing and decorating every record with an interceptor chain."
}

func (interceptors) Run(ctx context.Context, env *Env) error {
	topic := env.Topic("lesson09-interceptors")
	out := env.Out

	out.Step("logging interceptor")
	out.Explain("onSend runs before the record is sent, onAcknowledge when the broker answers")
	p, err := env.NewProducer(func(p *kpipeline.Producer) {
		p.InterceptorOrder = []kpipeline.InterceptorID{kpipeline.InterceptorLogging}
	})
	if err != nil {
		return err
	}
	for i := range 3 {
		res := p.ProduceSync(ctx, &kpipeline.Record{
			Topic: topic,
			Key:   fmt.Appendf(nil, "log-%d", i),
			Value: []byte("logged"),
		})
		if res.Err != nil {
			stop(p)
			return res.Err
		}
	}
	stop(p)
	out.Result("see the kafka logger output for the onSend and onAcknowledge lines")

	out.Step("metrics interceptor")
	p, err = env.NewProducer(func(p *kpipeline.Producer) {
		p.InterceptorOrder = []kpipeline.InterceptorID{kpipeline.InterceptorMetrics}
	})
	if err != nil {
		return err
	}
	for i := range 20 {
		p.Produce(ctx, &kpipeline.Record{
			Topic: topic,
			Key:   fmt.Appendf(nil, "metric-%d", i),
			Value: fmt.Appendf(nil, "measured %d", i),
		}, nil)
	}
	if err := p.Flush(ctx); err != nil {
		stop(p)
		return err
	}
	if err := p.MetricsSnapshot().WriteReport(out.Writer()); err != nil {
		stop(p)
		return err
	}
	stop(p)

	out.Step("a chain of interceptors")
	out.Explain("timestamp, then trace-id, then logging; acknowledgements run in reverse")
	var failures atomic.Int64
	p, err = env.NewProducer(func(p *kpipeline.Producer) {
		p.InterceptorOrder = []kpipeline.InterceptorID{
			kpipeline.InterceptorTimestamp,
			kpipeline.InterceptorTraceID,
			kpipeline.InterceptorLogging,
		}
		p.Interceptors = append(p.Interceptors, &kpipeline.InterceptorFuncs{
			ID: "flaky",
			Send: func(r *kpipeline.Record) (*kpipeline.Record, error) {
				if string(r.Key) == "chain-1" {
					return nil, errors.New("refusing chain-1")
				}
				return r, nil
			},
		})
		p.InitialFailureListeners = append(p.InitialFailureListeners, func(*kpipeline.InterceptorFailure) {
			failures.Add(1)
		})
	})
	if err != nil {
		return err
	}
	defer stop(p)

	for i := range 3 {
		res := p.ProduceSync(ctx, &kpipeline.Record{
			Topic: topic,
			Key:   fmt.Appendf(nil, "chain-%d", i),
			Value: []byte("decorated"),
		})
		if res.Err != nil {
			return res.Err
		}
		out.Outcome(res)
	}
	out.Result("the flaky interceptor failed %d time(s) and every record was still sent", failures.Load())

	records, err := env.Consume(ctx, topic, 26)
	if err != nil {
		return err
	}
	if n := len(records); n > 0 {
		last := records[n-1]
		for _, h := range last.Headers {
			out.Result("header %s = %s", h.Key, h.Value)
		}
	}

	out.Tip("interceptors run on the send path; keep them fast and let them fail without taking the send down")
	return nil
}
