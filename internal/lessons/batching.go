// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package lessons

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xmidt-org/kpipeline"
)

type batching struct{}

func (batching) Number() int   { return 8 }
func (batching) Title() string { return "Batching and Compression" }
func (batching) Description() string {
	return "Trading latency for throughput with linger, batch size and compression."
}

// throughput is the result of one timed run.
type throughput struct {
	Records  int
	Failed   int
	Elapsed  time.Duration
	Bytes    int
	Compress kpipeline.Compression
}

func (t throughput) perSecond() float64 {
	if t.Elapsed <= 0 {
		return 0
	}
	return float64(t.Records) / t.Elapsed.Seconds()
}

// timedRun sends n records of payload through p and waits for all outcomes.
func timedRun(ctx context.Context, p *kpipeline.Producer, topic string, n int, payload []byte) throughput {
	var (
		mu     sync.Mutex
		failed int
		wg     sync.WaitGroup
	)

	start := time.Now()
	for i := range n {
		wg.Add(1)
		p.Produce(ctx, &kpipeline.Record{
			Topic: topic,
			Key:   fmt.Appendf(nil, "key-%d", i%16),
			Value: payload,
		}, func(res kpipeline.DeliveryOutcome) {
			defer wg.Done()
			if res.Err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	return throughput{
		Records: n,
		Failed:  failed,
		Elapsed: time.Since(start),
		Bytes:   n * len(payload),
	}
}

// samplePayload is repetitive JSON, which compresses the way real events do.
func samplePayload(size int) []byte {
	var b strings.Builder
	for i := 0; b.Len() < size; i++ {
		fmt.Fprintf(&b, `{"event":"page_view","user":"user-%03d","path":"/products/%d"}`, i%100, i%20)
	}
	return []byte(b.String()[:size])
}

func (batching) Run(ctx context.Context, env *Env) error {
	topic := env.Topic("lesson08-batching")
	out := env.Out

	const n = 2000
	payload := samplePayload(512)

	runs := []struct {
		name      string
		configure func(*kpipeline.Producer)
	}{
		{
			name: "linger 0",
			configure: func(p *kpipeline.Producer) {
				p.Linger = 0
			},
		},
		{
			name: "linger 10ms, 64KiB batches",
			configure: func(p *kpipeline.Producer) {
				p.Linger = 10 * time.Millisecond
				p.BatchMaxBytes = 64 << 10
			},
		},
	}

	out.Step("linger and batch size")
	out.Explain("waiting a little lets the producer fill larger batches and send fewer requests")
	for _, run := range runs {
		t, err := runWith(ctx, env, topic, n, payload, run.configure)
		if err != nil {
			return err
		}
		out.Result("%-28s %8.0f records/s (%d failed)", run.name, t.perSecond(), t.Failed)
	}

	out.Step("compression codecs")
	for _, codec := range []kpipeline.Compression{
		kpipeline.CompressionNone,
		kpipeline.CompressionGzip,
		kpipeline.CompressionSnappy,
		kpipeline.CompressionLz4,
		kpipeline.CompressionZstd,
	} {
		t, err := runWith(ctx, env, topic, n, payload, func(p *kpipeline.Producer) {
			p.Linger = 10 * time.Millisecond
			p.Compression = codec
		})
		if err != nil {
			return err
		}
		out.Result("%-8s %8.0f records/s, %.1f MiB sent", codec, t.perSecond(), float64(t.Bytes)/(1<<20))
	}

	out.Tip("zstd and lz4 usually give the best ratio for the CPU spent; measure with your own payloads")
	return nil
}

func runWith(ctx context.Context, env *Env, topic string, n int, payload []byte,
	configure func(*kpipeline.Producer)) (throughput, error) {
	p, err := env.NewProducer(configure)
	if err != nil {
		return throughput{}, err
	}
	defer stop(p)

	t := timedRun(ctx, p, topic, n, payload)
	t.Compress = p.Compression
	if t.Failed == n {
		return t, fmt.Errorf("all %d records failed", n)
	}
	return t, nil
}
