package tips

import (
	"sync"
)

// FullVisibilityRatio is the intersection ratio at which an item counts as
// fully on screen
const FullVisibilityRatio = 1.0

// VisibilityDetector hands out one-shot observations of content items.
// Each subscription fires its observer the first time the item is reported
// fully visible and ignores every report after that.
type VisibilityDetector struct {
	mu     sync.Mutex
	nextID uint64
	active map[uint64]*VisibilitySubscription
}

// NewVisibilityDetector creates a detector with no observations
func NewVisibilityDetector() *VisibilityDetector {
	return &VisibilityDetector{
		active: make(map[uint64]*VisibilitySubscription),
	}
}

// VisibilitySubscription is the observation of one displayed item
type VisibilitySubscription struct {
	mu       sync.Mutex
	id       uint64
	detector *VisibilityDetector
	item     ContentItem
	observer Observer
	fired    bool
	closed   bool
}

// Observe starts observing item; observer runs at most once
func (d *VisibilityDetector) Observe(item ContentItem, observer Observer) *VisibilitySubscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	sub := &VisibilitySubscription{
		id:       d.nextID,
		detector: d,
		item:     item,
		observer: observer,
	}
	d.active[sub.id] = sub
	return sub
}

// Active returns the number of observations holding resources
func (d *VisibilityDetector) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

// CloseAll releases every observation
func (d *VisibilityDetector) CloseAll() {
	d.mu.Lock()
	subs := make([]*VisibilitySubscription, 0, len(d.active))
	for _, sub := range d.active {
		subs = append(subs, sub)
	}
	d.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (d *VisibilityDetector) release(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.active, id)
}

// Item returns the observed item
func (s *VisibilitySubscription) Item() ContentItem {
	return s.item
}

// Update reports the item's current intersection with the viewport.
// It returns true only for the report that fired the observer.
func (s *VisibilitySubscription) Update(intersecting bool, ratio float64) bool {
	s.mu.Lock()
	if s.fired || s.closed || !intersecting || ratio < FullVisibilityRatio {
		s.mu.Unlock()
		return false
	}
	s.fired = true
	s.mu.Unlock()

	// nothing left to observe once fired
	s.detector.release(s.id)

	if s.observer != nil {
		s.observer(s.item)
	}
	return true
}

// Fired reports whether the observer has run
func (s *VisibilitySubscription) Fired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// Close releases the observation. Safe to call more than once.
func (s *VisibilitySubscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.detector.release(s.id)
}
