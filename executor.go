package tips

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/attentionrush/tips/mechanisms/evm"
)

const (
	// DefaultMaxRetries is the number of additional attempts after a failed submission
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the fixed pause between attempts
	DefaultRetryDelay = 500 * time.Millisecond
)

// TransferConfig describes what is paid and where
type TransferConfig struct {
	// Network is the CAIP-2 id of the chain, e.g. "eip155:84532"
	Network string
	// Token is the ERC-20 contract the tips are paid in
	Token string
	// Decimals of the token (defaults to 6, USDC)
	Decimals int
	// PaymasterURL enables fee sponsorship when set (optional)
	PaymasterURL string
}

// TransferExecutor builds token transfer calls and submits them with a
// bounded retry policy. Sequencing conflicts are never retried.
type TransferExecutor struct {
	mu sync.RWMutex

	submitter  CallSubmitter
	config     TransferConfig
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger

	// Lifecycle hooks
	beforeTransferHooks    []BeforeTransferHook
	afterTransferHooks     []AfterTransferHook
	transferSkippedHooks   []TransferSkippedHook
	onTransferFailureHooks []OnTransferFailureHook
}

// ExecutorOption configures the executor
type ExecutorOption func(*TransferExecutor)

// WithRetryPolicy overrides the retry budget and the fixed delay between attempts
func WithRetryPolicy(maxRetries int, delay time.Duration) ExecutorOption {
	return func(e *TransferExecutor) {
		if maxRetries >= 0 {
			e.maxRetries = maxRetries
		}
		if delay >= 0 {
			e.retryDelay = delay
		}
	}
}

// WithExecutorLogger sets the logger used for attempt-level logging
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *TransferExecutor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewTransferExecutor creates an executor that submits through submitter
func NewTransferExecutor(submitter CallSubmitter, config TransferConfig, opts ...ExecutorOption) (*TransferExecutor, error) {
	if submitter == nil {
		return nil, fmt.Errorf("call submitter is required")
	}
	if config.Network == "" {
		config.Network = evm.DefaultNetwork
	}
	if _, err := evm.GetEvmChainId(config.Network); err != nil {
		return nil, err
	}
	if config.Token == "" {
		if netConfig, err := evm.GetNetworkConfig(config.Network); err == nil {
			config.Token = netConfig.DefaultAsset.Address
		}
	}
	if !evm.IsValidAddress(config.Token) {
		return nil, &PaymentError{
			Code:    ErrCodeInvalidAddress,
			Message: fmt.Sprintf("invalid token address: %q", config.Token),
		}
	}
	if config.Decimals <= 0 {
		config.Decimals = evm.DefaultDecimals
	}

	e := &TransferExecutor{
		submitter:  submitter,
		config:     config,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the transfer configuration in use
func (e *TransferExecutor) Config() TransferConfig {
	return e.config
}

// ============================================================================
// Hook Registration Methods
// ============================================================================

func (e *TransferExecutor) OnBeforeTransfer(hook BeforeTransferHook) *TransferExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beforeTransferHooks = append(e.beforeTransferHooks, hook)
	return e
}

func (e *TransferExecutor) OnAfterTransfer(hook AfterTransferHook) *TransferExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.afterTransferHooks = append(e.afterTransferHooks, hook)
	return e
}

func (e *TransferExecutor) OnTransferSkipped(hook TransferSkippedHook) *TransferExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transferSkippedHooks = append(e.transferSkippedHooks, hook)
	return e
}

func (e *TransferExecutor) OnTransferFailure(hook OnTransferFailureHook) *TransferExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTransferFailureHooks = append(e.onTransferFailureHooks, hook)
	return e
}

// ============================================================================
// Transfers
// ============================================================================

// SendSingle sends one tip of amount (decimal string) from -> to
func (e *TransferExecutor) SendSingle(ctx context.Context, from, to, amount string) (TransferResult, error) {
	transfer, err := e.toTransfer(Recipient{Address: to, Amount: amount})
	if err != nil {
		return TransferResult{}, err
	}

	calls, err := evm.BuildTransferCalls(e.config.Token, []evm.Transfer{transfer})
	if err != nil {
		return TransferResult{}, fmt.Errorf("failed to build transfer call: %w", err)
	}

	e.logger.Info("sending payment", "from", from, "to", to, "amount", amount)
	return e.submit(ctx, TransferKindSingle, from, calls, transfer.Amount)
}

// SendBatch sends one tip per recipient as a single atomic call bundle
func (e *TransferExecutor) SendBatch(ctx context.Context, from string, recipients []Recipient) (TransferResult, error) {
	if len(recipients) == 0 {
		return TransferResult{}, fmt.Errorf("batch has no recipients")
	}

	transfers := make([]evm.Transfer, 0, len(recipients))
	total := new(big.Int)
	for _, r := range recipients {
		transfer, err := e.toTransfer(r)
		if err != nil {
			return TransferResult{}, err
		}
		transfers = append(transfers, transfer)
		total.Add(total, transfer.Amount)
	}

	calls, err := evm.BuildTransferCalls(e.config.Token, transfers)
	if err != nil {
		return TransferResult{}, fmt.Errorf("failed to build batch calls: %w", err)
	}

	e.logger.Info("batching payments", "from", from, "count", len(recipients))
	return e.submit(ctx, TransferKindBatch, from, calls, total)
}

func (e *TransferExecutor) toTransfer(r Recipient) (evm.Transfer, error) {
	if err := ValidateRecipient(r); err != nil {
		return evm.Transfer{}, err
	}

	amount, err := evm.ParseAmount(r.Amount, e.config.Decimals)
	if err != nil || amount.Sign() <= 0 {
		return evm.Transfer{}, &PaymentError{
			Code:    ErrCodeInvalidAmount,
			Message: fmt.Sprintf("invalid amount: %q", r.Amount),
			Err:     err,
		}
	}
	return evm.Transfer{To: r.Address, Amount: amount}, nil
}

// submit runs the retry loop around one call bundle. total is the summed
// token amount of the bundle.
func (e *TransferExecutor) submit(ctx context.Context, kind TransferKind, from string, calls []evm.Call, total *big.Int) (TransferResult, error) {
	params, err := evm.BuildSendCallsParams(e.config.Network, from, calls, e.config.PaymasterURL)
	if err != nil {
		return TransferResult{}, err
	}

	e.mu.RLock()
	beforeHooks := e.beforeTransferHooks
	afterHooks := e.afterTransferHooks
	skippedHooks := e.transferSkippedHooks
	failureHooks := e.onTransferFailureHooks
	e.mu.RUnlock()

	start := time.Now()
	hookCtx := TransferContext{
		Ctx:       ctx,
		Kind:      kind,
		From:      from,
		Params:    params,
		Timestamp: start,
	}

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return TransferResult{}, &PaymentError{Code: ErrCodeTransferAborted, Message: "before-transfer hook failed", Err: err}
		}
		if result != nil && result.Abort {
			return TransferResult{Status: TransferAborted, Calls: len(calls), Reason: result.Reason}, nil
		}
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		attempts = attempt + 1

		id, err := e.submitter.SendCalls(ctx, params)
		if err == nil {
			result := TransferResult{Status: TransferSent, CallsID: id, Attempts: attempts, Calls: len(calls)}
			e.logger.Info("payment sent", "kind", kind, "attempt", attempts, "id", id,
				"amount", evm.FormatAmount(total, e.config.Decimals))

			resultCtx := TransferResultContext{TransferContext: hookCtx, Result: result, Duration: time.Since(start)}
			for _, hook := range afterHooks {
				if hookErr := hook(resultCtx); hookErr != nil {
					e.logger.Warn("after-transfer hook failed", "error", hookErr)
				}
			}
			return result, nil
		}

		lastErr = err
		if partial, ok := evm.AsPartialSubmit(err); ok {
			e.logger.Error("payment partially broadcast", "kind", kind, "attempt", attempts,
				"sent", partial.Sent, "total", partial.Total, "error", err)
			return e.fail(hookCtx, failureHooks, ErrCodePartialSubmission,
				fmt.Sprintf("%s transfer partially broadcast (%d of %d calls)", kind, partial.Sent, partial.Total),
				err, attempts, len(calls), start)
		}
		if evm.IsSequencingConflict(err) {
			e.logger.Warn("payment skipped (nonce conflict)", "kind", kind, "error", err)
			failureCtx := TransferFailureContext{TransferContext: hookCtx, Error: err, Attempts: attempts, Duration: time.Since(start)}
			for _, hook := range skippedHooks {
				hook(failureCtx)
			}
			return TransferResult{Status: TransferSkipped, Attempts: attempts, Calls: len(calls), Reason: err.Error()}, nil
		}

		e.logger.Error("payment failed", "kind", kind, "attempt", attempts, "error", err)

		if attempt < e.maxRetries {
			if waitErr := e.wait(ctx); waitErr != nil {
				lastErr = waitErr
				break
			}
		}
	}

	return e.fail(hookCtx, failureHooks, ErrCodeTransferFailed,
		fmt.Sprintf("%s transfer failed after %d attempts", kind, attempts),
		lastErr, attempts, len(calls), start)
}

// fail runs the failure hooks and builds the final error unless a hook
// recovers
func (e *TransferExecutor) fail(hookCtx TransferContext, hooks []OnTransferFailureHook, code, message string, err error, attempts, calls int, start time.Time) (TransferResult, error) {
	failureCtx := TransferFailureContext{TransferContext: hookCtx, Error: err, Attempts: attempts, Duration: time.Since(start)}
	for _, hook := range hooks {
		result, _ := hook(failureCtx)
		if result != nil && result.Recovered {
			return result.Result, nil
		}
	}

	return TransferResult{}, &PaymentError{
		Code:    code,
		Message: message,
		Details: map[string]interface{}{
			"attempts": attempts,
			"calls":    calls,
		},
		Err: err,
	}
}

func (e *TransferExecutor) wait(ctx context.Context) error {
	if e.retryDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.retryDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
