package tips

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionConfig holds the static payment settings of a session
type SessionConfig struct {
	BatchSize           int
	FlushTimeout        time.Duration
	EngagementInterval  time.Duration
	ViewportTipAmount   string
	EngagementTipAmount string
}

// DefaultSessionConfig returns the production defaults
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		BatchSize:           DefaultBatchSize,
		FlushTimeout:        DefaultFlushTimeout,
		EngagementInterval:  DefaultEngagementInterval,
		ViewportTipAmount:   DefaultTipAmount,
		EngagementTipAmount: DefaultTipAmount,
	}
}

// Session is one connected account's payment state: the viewport batcher,
// the engagement scheduler and the visibility observations of the feed.
// It is created on connect and destroyed by Close.
type Session struct {
	id        string
	from      string
	createdAt time.Time
	logger    *slog.Logger

	batcher    *ViewportBatcher
	engagement *EngagementScheduler
	detector   *VisibilityDetector

	mu           sync.Mutex
	observations map[string]*VisibilitySubscription
	closed       bool
}

// SessionOption configures a session
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	id     string
	logger *slog.Logger
}

// WithSessionID fixes the session id instead of generating one
func WithSessionID(id string) SessionOption {
	return func(o *sessionOptions) {
		o.id = id
	}
}

// WithSessionLogger sets the session logger
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(o *sessionOptions) {
		o.logger = logger
	}
}

// NewSession starts a session paying from the given account.
// ctx bounds submissions and must outlive the session: closing the session
// does not cancel transfers already handed to the wallet.
func NewSession(ctx context.Context, from string, transferrer Transferrer, config SessionConfig, opts ...SessionOption) (*Session, error) {
	if from == "" {
		return nil, fmt.Errorf("payer account is required")
	}
	if transferrer == nil {
		return nil, fmt.Errorf("transferrer is required")
	}

	options := sessionOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.id == "" {
		options.id = uuid.NewString()
	}
	logger := options.logger.With("session", options.id, "from", from)

	return &Session{
		id:        options.id,
		from:      from,
		createdAt: time.Now(),
		logger:    logger,
		batcher: NewViewportBatcher(ctx, transferrer, from, BatchConfig{
			BatchSize:    config.BatchSize,
			FlushTimeout: config.FlushTimeout,
			TipAmount:    config.ViewportTipAmount,
		}, logger),
		engagement: NewEngagementScheduler(ctx, transferrer, from, EngagementConfig{
			Interval:  config.EngagementInterval,
			TipAmount: config.EngagementTipAmount,
		}, logger),
		detector:     NewVisibilityDetector(),
		observations: make(map[string]*VisibilitySubscription),
	}, nil
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// From returns the paying account
func (s *Session) From() string { return s.from }

// CreatedAt returns when the session was started
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// OnBatch registers a handler for resolved viewport batches
func (s *Session) OnBatch(handler func(BatchOutcome)) *Session {
	s.batcher.OnFlush(handler)
	return s
}

// OnTip registers a handler for resolved engagement tips
func (s *Session) OnTip(handler func(TipOutcome)) *Session {
	s.engagement.OnTip(handler)
	return s
}

// QueuePayment queues a viewport tip for the item
func (s *Session) QueuePayment(item ContentItem) bool {
	return s.batcher.QueuePayment(item)
}

// SetSelection selects item for engagement tips; nil deselects
func (s *Session) SetSelection(item *ContentItem) error {
	return s.engagement.SetSelection(item)
}

// Selected returns the selected item, if any
func (s *Session) Selected() (ContentItem, bool) {
	return s.engagement.Selected()
}

// Observe starts a one-shot visibility observation with a custom observer
func (s *Session) Observe(item ContentItem, observer Observer) *VisibilitySubscription {
	return s.detector.Observe(item, observer)
}

// ReportVisibility feeds a viewport report for a displayed item. The first
// report for a hash mounts an observation that queues the item's viewport
// tip when it becomes fully visible. It returns true when the report fired.
func (s *Session) ReportVisibility(item ContentItem, intersecting bool, ratio float64) (bool, error) {
	if err := ValidateContentItem(item); err != nil {
		return false, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrSessionClosed
	}
	sub, ok := s.observations[item.Hash]
	if !ok {
		sub = s.detector.Observe(item, func(visible ContentItem) {
			if s.batcher.QueuePayment(visible) {
				s.logger.Debug("viewport tip queued", "cast", visible.Hash)
			}
		})
		s.observations[item.Hash] = sub
	}
	s.mu.Unlock()

	return sub.Update(intersecting, ratio), nil
}

// ReleaseVisibility ends the observation of an item that left the page
func (s *Session) ReleaseVisibility(hash string) bool {
	s.mu.Lock()
	sub, ok := s.observations[hash]
	delete(s.observations, hash)
	s.mu.Unlock()

	if ok {
		sub.Close()
	}
	return ok
}

// Flush submits pending viewport tips immediately
func (s *Session) Flush() {
	s.batcher.Flush()
}

// PaidSet returns the session's paid set
func (s *Session) PaidSet() *PaidSet {
	return s.batcher.PaidSet()
}

// PendingCount returns the number of queued viewport tips
func (s *Session) PendingCount() int {
	return s.batcher.PendingCount()
}

// Pending returns a copy of the queued viewport tips
func (s *Session) Pending() []PendingPayment {
	return s.batcher.Pending()
}

// Status returns a snapshot of the session's payment state
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	status := SessionStatus{
		ID:           s.id,
		From:         s.from,
		Pending:      s.batcher.PendingCount(),
		Paid:         s.batcher.PaidSet().Hashes(),
		InFlight:     s.batcher.PaidSet().InFlight(),
		Observations: s.detector.Active(),
		CreatedAt:    s.createdAt,
		Closed:       closed,
	}
	if selected, ok := s.engagement.Selected(); ok {
		status.Selected = selected.Hash
	}
	return status
}

// Closed reports whether Close has been called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close disables both payment paths, cancels their timers, drops pending
// tips and releases every visibility observation. In-flight transfers still
// complete.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.observations = make(map[string]*VisibilitySubscription)
	s.mu.Unlock()

	s.batcher.Disable()
	s.engagement.Disable()
	s.detector.CloseAll()
	s.logger.Info("session closed")
}

// Wait blocks until in-flight batches and tips have resolved
func (s *Session) Wait() {
	s.batcher.Wait()
	s.engagement.Wait()
}
