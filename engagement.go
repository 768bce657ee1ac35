package tips

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultEngagementInterval is the pause between recurring engagement tips
const DefaultEngagementInterval = 4 * time.Second

// EngagementConfig configures recurring tips for the selected item
type EngagementConfig struct {
	Interval  time.Duration
	TipAmount string
}

func (c EngagementConfig) withDefaults() EngagementConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultEngagementInterval
	}
	if c.TipAmount == "" {
		c.TipAmount = DefaultTipAmount
	}
	return c
}

// TipOutcome reports how one engagement tip resolved
type TipOutcome struct {
	Item    ContentItem
	Address string
	Result  TransferResult
	Err     error
}

// EngagementScheduler pays the author of the selected item once on
// selection and then on a fixed interval until the selection changes.
// At most one item is selected; switching stops the previous item's timer
// before the next item's first tip. Tips reach the transferrer in the order
// they were issued. Tips already handed to the wallet are never cancelled.
type EngagementScheduler struct {
	mu sync.Mutex

	transferrer Transferrer
	from        string
	config      EngagementConfig
	ctx         context.Context
	logger      *slog.Logger

	selected *ContentItem
	stop     chan struct{}
	enabled  bool

	// closed once the most recently issued tip's transfer returned
	lastDone chan struct{}

	tipHandlers []func(TipOutcome)
	wg          sync.WaitGroup
}

// NewEngagementScheduler creates an enabled scheduler paying from the given
// account. Tips run on ctx, which should outlive the scheduler.
func NewEngagementScheduler(ctx context.Context, transferrer Transferrer, from string, config EngagementConfig, logger *slog.Logger) *EngagementScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EngagementScheduler{
		transferrer: transferrer,
		from:        from,
		config:      config.withDefaults(),
		ctx:         ctx,
		logger:      logger,
		enabled:     true,
	}
}

// OnTip registers a handler called after every engagement tip resolves
func (s *EngagementScheduler) OnTip(handler func(TipOutcome)) *EngagementScheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tipHandlers = append(s.tipHandlers, handler)
	return s
}

// SetSelection changes the selected item. nil deselects.
// Re-selecting the current item keeps its timer running.
func (s *EngagementScheduler) SetSelection(item *ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item == nil {
		s.stopLocked()
		s.selected = nil
		return nil
	}
	if !s.enabled {
		s.stopLocked()
		return ErrSessionClosed
	}
	if s.selected != nil && s.selected.Hash == item.Hash {
		return nil
	}

	s.stopLocked()
	selected := *item
	s.selected = &selected

	address, err := ResolvePaymentAddress(selected.Author)
	if err != nil {
		s.logger.Debug("skipping engagement tips", "cast", selected.Hash, "error", err)
		return nil
	}

	stop := make(chan struct{})
	s.stop = stop
	handlers := append([]func(TipOutcome){}, s.tipHandlers...)

	s.dispatchLocked(selected, address, handlers)

	s.wg.Add(1)
	go s.run(selected, address, stop, handlers)
	return nil
}

// Selected returns the selected item, if any
func (s *EngagementScheduler) Selected() (ContentItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil {
		return ContentItem{}, false
	}
	return *s.selected, true
}

// Disable deselects and refuses further selections
func (s *EngagementScheduler) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = false
	s.stopLocked()
	s.selected = nil
}

// Wait blocks until the recurring loop and every dispatched tip finished.
// Call after deselecting or disabling.
func (s *EngagementScheduler) Wait() {
	s.wg.Wait()
}

func (s *EngagementScheduler) stopLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *EngagementScheduler) run(item ContentItem, address string, stop <-chan struct{}, handlers []func(TipOutcome)) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.tick(item, address, stop, handlers) {
				return
			}
		}
	}
}

// tick issues one recurring tip unless the selection was stopped. The stop
// check and the issue happen under the lock, so a tick never lands after
// the next selection's first tip.
func (s *EngagementScheduler) tick(item ContentItem, address string, stop <-chan struct{}, handlers []func(TipOutcome)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-stop:
		return false
	default:
	}
	s.dispatchLocked(item, address, handlers)
	return true
}

// dispatchLocked sends one tip without blocking the interval. Transfers are
// chained: each waits for the previously issued one to return.
func (s *EngagementScheduler) dispatchLocked(item ContentItem, address string, handlers []func(TipOutcome)) {
	prev := s.lastDone
	done := make(chan struct{})
	s.lastDone = done

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if prev != nil {
			<-prev
		}
		result, err := s.transferrer.SendSingle(s.ctx, s.from, address, s.config.TipAmount)
		close(done)
		if err != nil {
			s.logger.Error("engagement tip failed", "cast", item.Hash, "to", address, "error", err)
		}

		outcome := TipOutcome{Item: item, Address: address, Result: result, Err: err}
		for _, handler := range handlers {
			handler(outcome)
		}
	}()
}
