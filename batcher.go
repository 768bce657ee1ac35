package tips

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultBatchSize is the number of queued tips that forces a flush
	DefaultBatchSize = 10

	// DefaultFlushTimeout is how long a partial batch waits for more tips
	DefaultFlushTimeout = 2500 * time.Millisecond

	// DefaultTipAmount is the decimal amount of one tip (USDC)
	DefaultTipAmount = "0.0001"
)

// BatchConfig configures viewport tip batching
type BatchConfig struct {
	BatchSize    int
	FlushTimeout time.Duration
	TipAmount    string
}

func (c BatchConfig) withDefaults() BatchConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
	if c.TipAmount == "" {
		c.TipAmount = DefaultTipAmount
	}
	return c
}

// BatchOutcome reports how a flushed batch resolved
type BatchOutcome struct {
	Items  []PendingPayment
	Result TransferResult
	Err    error
}

// Paid reports whether the batch's items were marked paid
func (o BatchOutcome) Paid() bool {
	return o.Err == nil && o.Result.Sent()
}

// ViewportBatcher accumulates one-time viewport tips and flushes them as a
// single multi-call submission when the batch is full or the flush timer
// elapses.
//
// States: idle (empty queue, no timer), accumulating (timer armed, deadline
// pushed back on every enqueue), flushing (queue handed to a submission).
// The queue is cleared on every flush whatever the outcome; only a sent
// batch marks its hashes paid. Failed or skipped batches are not re-queued.
type ViewportBatcher struct {
	mu sync.Mutex

	transferrer Transferrer
	from        string
	config      BatchConfig
	ctx         context.Context
	logger      *slog.Logger

	paid       *PaidSet
	pending    []PendingPayment
	pendingSet map[string]struct{}
	enabled    bool

	timer *time.Timer
	// generation invalidates timer callbacks that lost a race with a flush
	generation uint64

	flushHandlers []func(BatchOutcome)
	wg            sync.WaitGroup
}

// NewViewportBatcher creates an enabled batcher paying from the given account.
// Submissions run on ctx, which should outlive the batcher so that disabling
// it never cancels a batch already handed to the wallet.
func NewViewportBatcher(ctx context.Context, transferrer Transferrer, from string, config BatchConfig, logger *slog.Logger) *ViewportBatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewportBatcher{
		transferrer: transferrer,
		from:        from,
		config:      config.withDefaults(),
		ctx:         ctx,
		logger:      logger,
		paid:        NewPaidSet(),
		pendingSet:  make(map[string]struct{}),
		enabled:     true,
	}
}

// OnFlush registers a handler called after every flushed batch resolves
func (b *ViewportBatcher) OnFlush(handler func(BatchOutcome)) *ViewportBatcher {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushHandlers = append(b.flushHandlers, handler)
	return b
}

// QueuePayment queues a viewport tip for the item's author.
// It is a no-op (returns false) when the batcher is disabled, when the item
// is already paid, pending or in flight, or when the author has no address.
func (b *ViewportBatcher) QueuePayment(item ContentItem) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled {
		return false
	}
	if _, queued := b.pendingSet[item.Hash]; queued {
		return false
	}
	if b.paid.State(item.Hash) != StateUnpaid {
		return false
	}

	address, err := ResolvePaymentAddress(item.Author)
	if err != nil {
		b.logger.Debug("skipping viewport tip", "cast", item.Hash, "error", err)
		return false
	}

	b.pending = append(b.pending, PendingPayment{ContentHash: item.Hash, Address: address})
	b.pendingSet[item.Hash] = struct{}{}

	if len(b.pending) >= b.config.BatchSize {
		b.dispatchLocked(b.takeLocked())
		return true
	}

	b.armTimerLocked()
	return true
}

// Flush submits whatever is pending now, without waiting for the timer
func (b *ViewportBatcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled || len(b.pending) == 0 {
		return
	}
	b.dispatchLocked(b.takeLocked())
}

// Disable stops accepting tips, cancels the flush timer and drops the
// pending queue. A batch already in flight still completes.
func (b *ViewportBatcher) Disable() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled {
		return
	}
	b.enabled = false
	b.stopTimerLocked()

	if dropped := len(b.pending); dropped > 0 {
		b.logger.Info("dropping pending viewport tips", "count", dropped)
	}
	b.pending = nil
	b.pendingSet = make(map[string]struct{})
}

// Enabled reports whether the batcher accepts tips
func (b *ViewportBatcher) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// PendingCount returns the number of queued tips
func (b *ViewportBatcher) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Pending returns a copy of the queue
func (b *ViewportBatcher) Pending() []PendingPayment {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]PendingPayment, len(b.pending))
	copy(out, b.pending)
	return out
}

// PaidSet returns the session's paid set
func (b *ViewportBatcher) PaidSet() *PaidSet {
	return b.paid
}

// Wait blocks until every dispatched batch has resolved
func (b *ViewportBatcher) Wait() {
	b.wg.Wait()
}

// armTimerLocked (re)starts the flush timer with a fresh deadline
func (b *ViewportBatcher) armTimerLocked() {
	b.stopTimerLocked()
	gen := b.generation
	b.timer = time.AfterFunc(b.config.FlushTimeout, func() {
		b.onTimer(gen)
	})
}

func (b *ViewportBatcher) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.generation++
}

func (b *ViewportBatcher) onTimer(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation || !b.enabled || len(b.pending) == 0 {
		return
	}
	b.dispatchLocked(b.takeLocked())
}

// takeLocked empties the queue and marks its hashes in flight
func (b *ViewportBatcher) takeLocked() []PendingPayment {
	b.stopTimerLocked()

	batch := b.pending
	b.pending = nil
	b.pendingSet = make(map[string]struct{})

	b.paid.MarkInFlight(hashesOf(batch))
	return batch
}

func (b *ViewportBatcher) dispatchLocked(batch []PendingPayment) {
	if len(batch) == 0 {
		return
	}
	handlers := append([]func(BatchOutcome){}, b.flushHandlers...)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		outcome := b.submit(batch)
		for _, handler := range handlers {
			handler(outcome)
		}
	}()
}

func (b *ViewportBatcher) submit(batch []PendingPayment) BatchOutcome {
	recipients := make([]Recipient, len(batch))
	for i, p := range batch {
		recipients[i] = Recipient{Address: p.Address, Amount: b.config.TipAmount}
	}
	hashes := hashesOf(batch)

	result, err := b.transferrer.SendBatch(b.ctx, b.from, recipients)
	switch {
	case err != nil:
		b.logger.Error("batch payment failed", "count", len(batch), "error", err)
		if sent, ok := PartiallySent(err); ok && sent > 0 {
			sent = min(sent, len(hashes))
			b.paid.Complete(hashes[:sent])
			b.paid.Fail(hashes[sent:])
			break
		}
		b.paid.Fail(hashes)
	case result.Sent():
		b.paid.Complete(hashes)
	default:
		b.logger.Warn("batch payment not sent", "count", len(batch), "status", result.Status, "reason", result.Reason)
		b.paid.Fail(hashes)
	}

	return BatchOutcome{Items: batch, Result: result, Err: err}
}

func hashesOf(batch []PendingPayment) []string {
	hashes := make([]string, len(batch))
	for i, p := range batch {
		hashes[i] = p.ContentHash
	}
	return hashes
}
