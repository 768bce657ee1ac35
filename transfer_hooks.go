package tips

import (
	"context"
	"time"

	"github.com/attentionrush/tips/mechanisms/evm"
)

// ============================================================================
// Transfer Hook Context Types
// ============================================================================

// TransferContext contains information passed to transfer hooks
type TransferContext struct {
	Ctx       context.Context
	Kind      TransferKind
	From      string
	Params    evm.SendCallsParams
	Timestamp time.Time
}

// TransferResultContext contains a submitted transfer's result and context
type TransferResultContext struct {
	TransferContext
	Result   TransferResult
	Duration time.Duration
}

// TransferFailureContext contains a failed transfer's error and context
type TransferFailureContext struct {
	TransferContext
	Error    error
	Attempts int
	Duration time.Duration
}

// TransferKind distinguishes single from batched submissions
type TransferKind string

const (
	TransferKindSingle TransferKind = "single"
	TransferKindBatch  TransferKind = "batch"
)

// ============================================================================
// Transfer Hook Result Types
// ============================================================================

// BeforeTransferHookResult represents the result of a "before" hook.
// If Abort is true, the submission is skipped with the given Reason.
type BeforeTransferHookResult struct {
	Abort  bool
	Reason string
}

// TransferFailureHookResult represents the result of a failure hook.
// If Recovered is true, Result is returned instead of the error.
type TransferFailureHookResult struct {
	Recovered bool
	Result    TransferResult
}

// ============================================================================
// Transfer Hook Function Types
// ============================================================================

// BeforeTransferHook is called once before the first submission attempt
type BeforeTransferHook func(TransferContext) (*BeforeTransferHookResult, error)

// AfterTransferHook is called after the wallet accepted a submission.
// Any error returned is logged but does not affect the result.
type AfterTransferHook func(TransferResultContext) error

// TransferSkippedHook is called when a submission is abandoned because of a
// sequencing conflict
type TransferSkippedHook func(TransferFailureContext)

// OnTransferFailureHook is called after retries are exhausted
type OnTransferFailureHook func(TransferFailureContext) (*TransferFailureHookResult, error)
