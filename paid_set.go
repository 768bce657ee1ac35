package tips

import (
	"sync"
)

// PaidSet records which content has been compensated through the viewport
// path during a session. It also tracks hashes whose batch is in flight so
// they are not queued a second time while the wallet is still answering.
//
// The paid set only grows; nothing is ever removed from it.
type PaidSet struct {
	mu       sync.Mutex
	paid     map[string]struct{}
	order    []string
	inFlight map[string]struct{}
}

// NewPaidSet creates an empty paid set
func NewPaidSet() *PaidSet {
	return &PaidSet{
		paid:     make(map[string]struct{}),
		inFlight: make(map[string]struct{}),
	}
}

// PaymentState represents the result of checking a hash
type PaymentState int

const (
	// StateUnpaid means the hash is neither paid nor being paid
	StateUnpaid PaymentState = iota
	// StateInFlight means a batch containing the hash is being submitted
	StateInFlight
	// StatePaid means the hash was paid by a successful batch
	StatePaid
)

func (s PaymentState) String() string {
	switch s {
	case StateInFlight:
		return "in_flight"
	case StatePaid:
		return "paid"
	default:
		return "unpaid"
	}
}

// State returns the payment state of a hash
func (p *PaidSet) State(hash string) PaymentState {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.paid[hash]; ok {
		return StatePaid
	}
	if _, ok := p.inFlight[hash]; ok {
		return StateInFlight
	}
	return StateUnpaid
}

// Contains reports whether the hash has been paid
func (p *PaidSet) Contains(hash string) bool {
	return p.State(hash) == StatePaid
}

// MarkInFlight records hashes whose batch is about to be submitted
func (p *PaidSet) MarkInFlight(hashes []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range hashes {
		p.inFlight[h] = struct{}{}
	}
}

// Complete moves in-flight hashes into the paid set.
// Hashes already paid are not duplicated.
func (p *PaidSet) Complete(hashes []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range hashes {
		delete(p.inFlight, h)
		if _, ok := p.paid[h]; ok {
			continue
		}
		p.paid[h] = struct{}{}
		p.order = append(p.order, h)
	}
}

// Fail clears the in-flight marker without marking anything paid,
// making the hashes eligible for a future independent trigger.
func (p *PaidSet) Fail(hashes []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range hashes {
		delete(p.inFlight, h)
	}
}

// Len returns the number of paid hashes
func (p *PaidSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paid)
}

// InFlight returns the number of hashes currently being submitted
func (p *PaidSet) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}

// Hashes returns the paid hashes in the order they were paid
func (p *PaidSet) Hashes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}
