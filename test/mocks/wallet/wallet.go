// Package wallet provides a scripted CallSubmitter for tests.
package wallet

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/attentionrush/tips/mechanisms/evm"
)

// Submitter records every wallet_sendCalls request and answers from a script
type Submitter struct {
	mu       sync.Mutex
	requests []evm.SendCallsParams
	script   []error
	fallback error
	delay    time.Duration
	nextID   int
}

// New creates a submitter that accepts every request
func New() *Submitter {
	return &Submitter{}
}

// FailNext queues errors returned by the next requests, in order.
// A nil entry accepts that request.
func (s *Submitter) FailNext(errs ...error) *Submitter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, errs...)
	return s
}

// FailAlways makes every request after the script fail with err
func (s *Submitter) FailAlways(err error) *Submitter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = err
	return s
}

// WithDelay makes every request take d (respecting ctx)
func (s *Submitter) WithDelay(d time.Duration) *Submitter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
	return s
}

// SendCalls implements tips.CallSubmitter
func (s *Submitter) SendCalls(ctx context.Context, params evm.SendCallsParams) (string, error) {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, params)

	var err error
	if len(s.script) > 0 {
		err, s.script = s.script[0], s.script[1:]
	} else {
		err = s.fallback
	}
	if err != nil {
		return "", err
	}

	s.nextID++
	return fmt.Sprintf("0xbundle%04d", s.nextID), nil
}

// Requests returns every request received, accepted or not
func (s *Submitter) Requests() []evm.SendCallsParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]evm.SendCallsParams, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns the number of requests received
func (s *Submitter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Recipients decodes the transfer recipients of a request, lowercased
func Recipients(params evm.SendCallsParams) []string {
	out := make([]string, 0, len(params.Calls))
	for _, call := range params.Calls {
		data, err := hexutil.Decode(call.Data)
		if err != nil || len(data) < 36 {
			continue
		}
		out = append(out, strings.ToLower(common.BytesToAddress(data[16:36]).Hex()))
	}
	return out
}
