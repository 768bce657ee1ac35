package tips

import (
	"time"
)

// Author is the creator of a content item (a Farcaster user)
type Author struct {
	FID            int64    `json:"fid"`
	CustodyAddress string   `json:"custody_address"`
	Username       string   `json:"username"`
	DisplayName    string   `json:"display_name"`
	PfpURL         string   `json:"pfp_url,omitempty"`
	Verifications  []string `json:"verifications"`
}

// Embed is a link attached to a content item
type Embed struct {
	URL string `json:"url,omitempty"`
}

// Reactions counts likes and recasts
type Reactions struct {
	LikesCount   int `json:"likes_count"`
	RecastsCount int `json:"recasts_count"`
}

// Replies counts replies
type Replies struct {
	Count int `json:"count"`
}

// ContentItem is one post of the feed (a Farcaster cast), identified by its hash.
// Items are immutable once fetched.
type ContentItem struct {
	Hash      string     `json:"hash"`
	Text      string     `json:"text"`
	Author    Author     `json:"author"`
	Timestamp string     `json:"timestamp"`
	Embeds    []Embed    `json:"embeds,omitempty"`
	Reactions *Reactions `json:"reactions,omitempty"`
	Replies   *Replies   `json:"replies,omitempty"`
}

// Recipient is one destination of a batched transfer
type Recipient struct {
	Address string `json:"address"`
	Amount  string `json:"amount"` // Decimal token amount, e.g. "0.0001"
}

// PendingPayment is a queued viewport tip awaiting a batch flush
type PendingPayment struct {
	ContentHash string `json:"castHash"`
	Address     string `json:"recipientAddress"`
}

// Trigger identifies which attention signal produced a payment
type Trigger string

const (
	TriggerViewport   Trigger = "viewport"
	TriggerEngagement Trigger = "engagement"
)

// TransferStatus is the outcome of a transfer execution
type TransferStatus string

const (
	// TransferSent means the wallet accepted the call bundle
	TransferSent TransferStatus = "sent"
	// TransferSkipped means the submission hit a sequencing conflict and was abandoned
	TransferSkipped TransferStatus = "skipped"
	// TransferAborted means a before-submit hook vetoed the submission
	TransferAborted TransferStatus = "aborted"
)

// TransferResult describes a completed (non-failed) transfer execution
type TransferResult struct {
	Status   TransferStatus `json:"status"`
	CallsID  string         `json:"callsId,omitempty"` // Wallet-assigned bundle id or tx hash
	Attempts int            `json:"attempts"`
	Calls    int            `json:"calls"`
	Reason   string         `json:"reason,omitempty"`
}

// Sent reports whether the transfer reached the wallet
func (r TransferResult) Sent() bool {
	return r.Status == TransferSent
}

// SessionStatus is a point-in-time view of a session's payment state
type SessionStatus struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	Pending      int       `json:"pending"`
	Paid         []string  `json:"paid"`
	InFlight     int       `json:"inFlight"`
	Selected     string    `json:"selected,omitempty"`
	Observations int       `json:"observations"`
	CreatedAt    time.Time `json:"createdAt"`
	Closed       bool      `json:"closed"`
}
