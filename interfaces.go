package tips

import (
	"context"

	"github.com/attentionrush/tips/mechanisms/evm"
)

// ============================================================================
// External collaborators
// ============================================================================

// CallSubmitter executes a bundle of on-chain calls on behalf of an account.
// Implementations are wallets (wallet_sendCalls) or local signers.
//
// SendCalls returns an opaque bundle id. Errors must keep the wallet's
// message intact so sequencing conflicts can be recognized.
type CallSubmitter interface {
	SendCalls(ctx context.Context, params evm.SendCallsParams) (string, error)
}

// FeedSource fetches the ordered list of content items to display
type FeedSource interface {
	FetchFeed(ctx context.Context) ([]ContentItem, error)
}

// ============================================================================
// Payment paths
// ============================================================================

// Transferrer sends single and batched tips. TransferExecutor is the
// production implementation.
type Transferrer interface {
	SendSingle(ctx context.Context, from, to, amount string) (TransferResult, error)
	SendBatch(ctx context.Context, from string, recipients []Recipient) (TransferResult, error)
}

// Observer receives the one-shot "fully visible" signal for a content item
type Observer func(item ContentItem)
