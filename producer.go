// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package kpipeline

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/xmidt-org/eventor"
)

// clientFactory is a function that creates a Kafka client from options.
// This allows dependency injection for testing.
type clientFactory func(opts ...kgo.Opt) (kafkaClient, error)

// defaultClientFactory is the production client factory that uses franz-go.
func defaultClientFactory(opts ...kgo.Opt) (kafkaClient, error) {
	return kgo.NewClient(opts...)
}

// Producer sends records to Kafka through the send pipeline: Router,
// interceptor chain, transport, and the chain's acknowledge stage.
//
// Thread Safety: All methods are safe for concurrent use by multiple goroutines.
// The configuration fields must not be changed after Start.
type Producer struct {
	// --- STATIC CONFIGURATION (set before Start, immutable after) ---

	// Brokers is the list of Kafka broker addresses.
	// Required. Each address must be in "host:port" format.
	Brokers []string

	// ClientID is the client id sent to the brokers.
	// Optional. Default: the franz-go default ("kgo").
	ClientID string

	// SASL configures SASL authentication.
	// Optional. If nil, no authentication is used.
	SASL sasl.Mechanism

	// TLS configures TLS encryption.
	// Optional. If nil, plaintext connections are used.
	TLS *tls.Config

	// MaxBufferedRecords sets the maximum number of records to buffer.
	// Zero or negative values keep the client default.
	MaxBufferedRecords int

	// MaxBufferedBytes sets the maximum bytes of records to buffer.
	// Zero or negative values disable this limit.
	MaxBufferedBytes int

	// RequestTimeout is added to the timeout of every broker request.
	// Zero or negative values keep the client default.
	RequestTimeout time.Duration

	// CleanupTimeout sets the maximum time to wait for buffered records
	// to flush on shutdown. Zero or negative values mean no timeout.
	CleanupTimeout time.Duration

	// MaxRetries limits how many times a record is retried.
	// Zero or negative values keep the client default, where retries are
	// bounded only by DeliveryTimeout.
	MaxRetries int

	// DeliveryTimeout bounds the time a record may spend buffered and retried
	// before it fails with kgo.ErrRecordTimeout.
	// Zero or negative values mean no timeout.
	DeliveryTimeout time.Duration

	// RetryBackoff returns the delay before retry number tries (starting at 1).
	// Optional. Default: the client's jittered exponential backoff.
	RetryBackoff func(tries int) time.Duration

	// AllowAutoTopicCreation enables automatic topic creation when producing
	// to a topic that does not exist.
	AllowAutoTopicCreation bool

	// Acks is the acknowledgment requirement. Acks weaker than AcksAll
	// disable idempotent writes.
	// Default: AcksAll.
	Acks Acks

	// Compression is the batch compression codec.
	// Default: CompressionNone.
	Compression Compression

	// Linger is how long a partition batch waits for more records before
	// being sent. Zero sends as soon as possible.
	Linger time.Duration

	// BatchMaxBytes caps the size of a partition batch.
	// Zero keeps the client default.
	BatchMaxBytes int32

	// DisableIdempotence turns off idempotent writes, which are on by default.
	DisableIdempotence bool

	// TransactionalID makes the producer transactional; see Transact.
	// Requires idempotence and AcksAll.
	TransactionalID string

	// Router chooses the partition of records without an explicit partition.
	// Optional. If nil, such records use the client's sticky key partitioner.
	Router *Router

	// PartitionCounter supplies partition counts to the Router.
	// Optional. Default: broker metadata, cached for PartitionCacheTTL.
	PartitionCounter PartitionCounter

	// PartitionCacheTTL is how long the default PartitionCounter reuses a
	// partition count. Default: DefaultPartitionCacheTTL.
	PartitionCacheTTL time.Duration

	// InterceptorOrder lists the built-in interceptors of the chain, in order.
	// They run before the Interceptors.
	InterceptorOrder []InterceptorID

	// Interceptors are additional interceptors, run after the built-ins.
	Interceptors []Interceptor

	// Logger is the logger instance (same interface as franz-go).
	// Optional. If nil, a no-op logger will be used.
	Logger kgo.Logger

	// Hooks are franz-go hooks installed on the client, such as the kprom
	// plugin.
	Hooks []kgo.Hook

	// InitialFailureListeners are interceptor failure listeners registered
	// when Start() is called.
	InitialFailureListeners []func(*InterceptorFailure)

	// --- INTERNAL FIELDS (not for user configuration) ---

	// logger is the actively used logger instance (never nil after Start).
	logger kgo.Logger

	// clientFactory creates Kafka clients, can be overridden for mocking in tests.
	clientFactory clientFactory

	// clientMu protects client, chain and partitions during Start/Stop.
	clientMu sync.Mutex

	// client is the Kafka client, initialized in Start() and closed in Stop().
	client kafkaClient

	// chain is built in Start() and closed in Stop().
	chain *Chain

	// partitions is the partition counter in use (nil without a Router).
	partitions PartitionCounter

	// metrics is the aggregator fed by the metrics interceptor.
	metrics Metrics

	// failureListeners receives interceptor failures from the chain.
	failureListeners eventor.Eventor[func(*InterceptorFailure)]

	// registerInitialListenersOnce ensures InitialFailureListeners are
	// registered exactly once.
	registerInitialListenersOnce sync.Once

	// txMu serializes transactions.
	txMu sync.Mutex
}

// AddInterceptorFailureListener adds a listener for interceptor failures.
// The returned function removes the listener.
//
// Listeners are called from internal goroutines and must be thread-safe.
func (p *Producer) AddInterceptorFailureListener(fn func(*InterceptorFailure)) func() {
	return p.failureListeners.Add(fn)
}

// Start validates the configuration, builds the interceptor chain and creates
// the Kafka client. Must be called before producing.
//
// Returns an error if:
//   - Configuration is invalid (missing brokers, unknown interceptor, etc.)
//   - The client cannot be created
//   - Already started
func (p *Producer) Start() error {
	p.clientMu.Lock()
	defer p.clientMu.Unlock()

	if p.client != nil {
		return ErrAlreadyStarted
	}

	if p.clientFactory == nil {
		p.clientFactory = defaultClientFactory
	}

	p.logger = loggerOr(p.Logger)

	p.registerInitialListenersOnce.Do(func() {
		for _, listener := range p.InitialFailureListeners {
			p.failureListeners.Add(listener)
		}
	})

	if err := p.validate(); err != nil {
		return err
	}

	chain, err := p.buildChain()
	if err != nil {
		return err
	}

	client, err := p.clientFactory(p.toKgoOpts()...)
	if err != nil {
		p.closeChain(chain)
		return fmt.Errorf("failed to create Kafka client: %w", err)
	}

	partitions, err := p.partitionCounter(client)
	if err != nil {
		client.Close()
		p.closeChain(chain)
		return err
	}

	p.client = client
	p.chain = chain
	p.partitions = partitions
	p.logger.Log(kgo.LogLevelInfo, "Producer started successfully", "interceptors", chain.Names())

	return nil
}

// buildChain builds the interceptor chain from InterceptorOrder and
// Interceptors.
func (p *Producer) buildChain() (*Chain, error) {
	interceptors := make([]Interceptor, 0, len(p.InterceptorOrder)+len(p.Interceptors))
	for _, id := range p.InterceptorOrder {
		i, err := newInterceptor(id, p.logger, &p.metrics)
		if err != nil {
			return nil, err
		}
		interceptors = append(interceptors, i)
	}
	interceptors = append(interceptors, p.Interceptors...)

	chain := NewChain(p.logger, interceptors...)
	chain.AddFailureListener(func(f *InterceptorFailure) {
		p.failureListeners.Visit(func(listener func(*InterceptorFailure)) {
			listener(f)
		})
	})
	return chain, nil
}

// closeChain releases the interceptors of chain, logging failures.
func (p *Producer) closeChain(chain *Chain) {
	if err := chain.Close(); err != nil {
		p.logger.Log(kgo.LogLevelWarn, "interceptor close failed", "error", err.Error())
	}
}

// partitionCounter returns the counter used by the Router.
func (p *Producer) partitionCounter(client kafkaClient) (PartitionCounter, error) {
	if p.Router == nil {
		return nil, nil
	}
	if p.PartitionCounter != nil {
		return p.PartitionCounter, nil
	}
	if kc, ok := client.(*kgo.Client); ok {
		return newMetadataPartitionCounter(kadm.NewClient(kc), p.PartitionCacheTTL), nil
	}
	return nil, errors.Join(ErrValidation, fmt.Errorf("router requires a partition counter"))
}

// Stop flushes buffered records, closes the client and then closes the
// interceptor chain in reverse order. Blocks until records are sent or the
// timeout occurs; records still buffered at close fail with
// kgo.ErrClientClosed and are acknowledged through the chain before it closes.
// Safe to call multiple times (idempotent).
func (p *Producer) Stop(ctx context.Context) {
	p.clientMu.Lock()
	defer p.clientMu.Unlock()

	if p.client == nil {
		return // Already stopped or never started
	}

	p.logger.Log(kgo.LogLevelInfo, "Stopping producer, flushing buffered records")

	// Apply CleanupTimeout only if the context doesn't already have a deadline.
	if p.CleanupTimeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.CleanupTimeout)
			defer cancel()
		}
	}

	if err := p.client.Flush(ctx); err != nil {
		p.logger.Log(kgo.LogLevelWarn, "flush incomplete during shutdown", "error", err.Error())
	}

	p.client.Close()

	p.closeChain(p.chain)

	p.client = nil
	p.chain = nil
	p.partitions = nil

	p.logger.Log(kgo.LogLevelInfo, "Producer stopped successfully")
}

// Produce sends a record asynchronously. The record is routed and passed
// through the OnSend stage before this call returns; fn is called exactly once
// with the outcome, after the OnAcknowledge stage, from a transport goroutine.
//
// Produce blocks while the transport buffer is full, until ctx is done.
// The caller's record is never modified. fn may be nil.
func (p *Producer) Produce(ctx context.Context, r *Record, fn func(DeliveryOutcome)) {
	p.produce(ctx, r, false, fn)
}

// TryProduce is like Produce but never blocks: when the transport buffer is
// full the record fails immediately with kgo.ErrMaxBuffered.
func (p *Producer) TryProduce(ctx context.Context, r *Record, fn func(DeliveryOutcome)) {
	p.produce(ctx, r, true, fn)
}

// ProduceSync sends a record and waits for its outcome.
//
// Once the record is handed to the transport the wait is governed by the
// transport (DeliveryTimeout), not by ctx.
func (p *Producer) ProduceSync(ctx context.Context, r *Record) DeliveryOutcome {
	done := make(chan DeliveryOutcome, 1)
	p.produce(ctx, r, false, func(out DeliveryOutcome) {
		done <- out
	})
	return <-done
}

func (p *Producer) produce(ctx context.Context, r *Record, try bool, fn func(DeliveryOutcome)) {
	if fn == nil {
		fn = func(DeliveryOutcome) {}
	}

	if r == nil {
		fn(failedOutcome("", errors.Join(ErrValidation, fmt.Errorf("record is nil"))))
		return
	}
	if r.Topic == "" {
		fn(failedOutcome("", errors.Join(ErrValidation, fmt.Errorf("record topic is required"))))
		return
	}
	if err := ctx.Err(); err != nil {
		fn(failedOutcome(r.Topic, err))
		return
	}

	// Get client references while holding lock (brief hold)
	p.clientMu.Lock()
	client, chain, partitions := p.client, p.chain, p.partitions
	p.clientMu.Unlock()

	if client == nil {
		fn(failedOutcome(r.Topic, ErrNotStarted))
		return
	}

	rec := r.clone()
	rec.Context = ctx
	p.route(ctx, rec, partitions)

	rec = chain.OnSend(rec)

	kr := rec.toKgo()
	if rec.Partition != nil {
		kr.Partition = *rec.Partition
		kr.Context = pin(rec.Context)
	}

	start := time.Now()
	promise := func(kr *kgo.Record, err error) {
		out := outcomeFromKgo(kr, err, time.Since(start))
		chain.OnAcknowledge(out)
		fn(out)
	}

	if try {
		client.TryProduce(ctx, kr, promise)
		return
	}
	client.Produce(ctx, kr, promise)
}

// route assigns a partition from the Router to records without one. When the
// partition count is unavailable the record is left to the client's default
// partitioner.
func (p *Producer) route(ctx context.Context, r *Record, partitions PartitionCounter) {
	if r.Partition != nil || p.Router == nil || partitions == nil {
		return
	}

	n, err := partitions.PartitionCount(ctx, r.Topic)
	if err != nil {
		p.logger.Log(kgo.LogLevelWarn, "partition lookup failed, using default partitioner",
			"topic", r.Topic,
			"error", err.Error(),
		)
		return
	}

	r.Partition = PartitionOf(int32(p.Router.Route(r.Topic, r.Key, n)))
}

// Flush waits until every buffered record has completed.
func (p *Producer) Flush(ctx context.Context) error {
	p.clientMu.Lock()
	client := p.client
	p.clientMu.Unlock()

	if client == nil {
		return ErrNotStarted
	}
	return client.Flush(ctx)
}

// Metrics returns the producer's aggregator. It lives as long as the
// producer, across Stop and Start, and is only fed when the chain includes
// InterceptorMetrics.
func (p *Producer) Metrics() *Metrics {
	return &p.metrics
}

// MetricsSnapshot returns the current metrics.
func (p *Producer) MetricsSnapshot() MetricsState {
	return p.metrics.Snapshot()
}

// ResetMetrics zeroes the metrics.
func (p *Producer) ResetMetrics() {
	p.metrics.Reset()
}

// BufferedRecords returns the current and maximum buffer counts and bytes.
// Returns zeros if the producer is not started.
func (p *Producer) BufferedRecords() (currentRecords, maxRecords int, currentBytes, maxBytes int64) {
	maxRecords = p.MaxBufferedRecords
	maxBytes = int64(p.MaxBufferedBytes)

	p.clientMu.Lock()
	client := p.client
	p.clientMu.Unlock()

	if client == nil {
		return 0, 0, 0, 0
	}

	currentRecords = int(client.BufferedProduceRecords())
	currentBytes = client.BufferedProduceBytes()

	return currentRecords, maxRecords, currentBytes, maxBytes
}

// validate validates the Producer's configuration.
func (p *Producer) validate() error {
	if len(p.Brokers) == 0 {
		return errors.Join(ErrValidation, fmt.Errorf("brokers list is required"))
	}

	for i, broker := range p.Brokers {
		if broker == "" {
			return errors.Join(ErrValidation, fmt.Errorf("broker %d is empty", i))
		}
	}

	if err := validateAcks(p.Acks); err != nil {
		return err
	}

	if err := validateCompression(p.Compression); err != nil {
		return err
	}

	for _, id := range p.InterceptorOrder {
		if err := validateInterceptorID(id); err != nil {
			return err
		}
	}

	if p.Router != nil {
		if err := p.Router.validate(); err != nil {
			return err
		}
	}

	if p.TransactionalID != "" {
		if p.DisableIdempotence {
			return errors.Join(ErrValidation,
				fmt.Errorf("transactional producers require idempotence"))
		}
		if p.Acks.weakerThanAll() {
			return errors.Join(ErrValidation,
				fmt.Errorf("transactional producers require acks '%s'", AcksAll))
		}
	}

	return nil
}

// toKgoOpts converts the Producer's configuration to franz-go client options.
func (p *Producer) toKgoOpts() []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(p.Brokers...),
		kgo.RecordPartitioner(newPinnedPartitioner()),
	}

	if p.logger != nil {
		opts = append(opts, kgo.WithLogger(p.logger))
	}

	if p.ClientID != "" {
		opts = append(opts, kgo.ClientID(p.ClientID))
	}

	if p.AllowAutoTopicCreation {
		opts = append(opts, kgo.AllowAutoTopicCreation())
	}

	if p.SASL != nil {
		opts = append(opts, kgo.SASL(p.SASL))
	}

	if p.TLS != nil {
		opts = append(opts, kgo.DialTLSConfig(p.TLS))
	}

	// Both buffer limits are independent
	if p.MaxBufferedRecords > 0 {
		opts = append(opts, kgo.MaxBufferedRecords(p.MaxBufferedRecords))
	}

	if p.MaxBufferedBytes > 0 {
		opts = append(opts, kgo.MaxBufferedBytes(p.MaxBufferedBytes))
	}

	if p.RequestTimeout > 0 {
		opts = append(opts, kgo.RequestTimeoutOverhead(p.RequestTimeout))
	}

	if p.MaxRetries > 0 {
		opts = append(opts, kgo.RecordRetries(p.MaxRetries))
	}

	if p.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(p.DeliveryTimeout))
	}

	if p.RetryBackoff != nil {
		opts = append(opts, kgo.RetryBackoffFn(p.RetryBackoff))
	}

	if p.Linger > 0 {
		opts = append(opts, kgo.ProducerLinger(p.Linger))
	}

	if p.BatchMaxBytes > 0 {
		opts = append(opts, kgo.ProducerBatchMaxBytes(p.BatchMaxBytes))
	}

	if opt, ok := p.Acks.opt(); ok {
		opts = append(opts, opt)
	}

	if p.DisableIdempotence || p.Acks.weakerThanAll() {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}

	if p.Compression != "" {
		opts = append(opts, p.Compression.opt())
	}

	if p.TransactionalID != "" {
		opts = append(opts, kgo.TransactionalID(p.TransactionalID))
	}

	if len(p.Hooks) > 0 {
		opts = append(opts, kgo.WithHooks(p.Hooks...))
	}

	return opts
}
