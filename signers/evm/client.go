// Package evm provides wallet adapters that submit tip calls to an EVM chain.
package evm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	tipsevm "github.com/attentionrush/tips/mechanisms/evm"
)

// RPCWallet submits calls through a wallet that speaks EIP-5792 over JSON-RPC.
// The wallet, not this process, holds the keys: it may batch the calls
// atomically and sponsor fees when a paymaster capability is attached.
type RPCWallet struct {
	client *rpc.Client
}

// Account is the result of connecting to a wallet
type Account struct {
	// Universal is the user's main account
	Universal string `json:"universal"`

	// Sub is the app-scoped account tips are sent from
	Sub string `json:"sub"`
}

// DialWallet connects to a wallet JSON-RPC endpoint
func DialWallet(ctx context.Context, url string) (*RPCWallet, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet: %w", err)
	}
	return NewRPCWallet(client), nil
}

// NewRPCWallet wraps an existing RPC client
func NewRPCWallet(client *rpc.Client) *RPCWallet {
	return &RPCWallet{client: client}
}

// Close releases the underlying connection
func (w *RPCWallet) Close() {
	w.client.Close()
}

// SendCalls submits a wallet_sendCalls request and returns the calls id.
// Wallets answer either with a bare id string or with an {id} object.
func (w *RPCWallet) SendCalls(ctx context.Context, params tipsevm.SendCallsParams) (string, error) {
	var raw json.RawMessage
	if err := w.client.CallContext(ctx, &raw, tipsevm.MethodSendCalls, params); err != nil {
		return "", err
	}

	var id string
	if err := json.Unmarshal(raw, &id); err == nil && id != "" {
		return id, nil
	}

	var result tipsevm.SendCallsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("unexpected %s result: %s", tipsevm.MethodSendCalls, string(raw))
	}
	if result.ID == "" {
		return "", fmt.Errorf("%s returned no id", tipsevm.MethodSendCalls)
	}
	return result.ID, nil
}

// Accounts lists the already-authorized accounts without prompting the user
func (w *RPCWallet) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := w.client.CallContext(ctx, &accounts, tipsevm.MethodAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// RequestAccounts asks the user to authorize the app
func (w *RPCWallet) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := w.client.CallContext(ctx, &accounts, tipsevm.MethodRequestAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// SubAccounts returns the sub accounts of account scoped to domain
func (w *RPCWallet) SubAccounts(ctx context.Context, account, domain string) ([]tipsevm.SubAccount, error) {
	var response tipsevm.SubAccountsResponse
	params := tipsevm.GetSubAccountsParams{Account: account, Domain: domain}
	if err := w.client.CallContext(ctx, &response, tipsevm.MethodGetSubAccounts, params); err != nil {
		return nil, err
	}
	return response.SubAccounts, nil
}

// AddSubAccount creates a new sub account for the app
func (w *RPCWallet) AddSubAccount(ctx context.Context) (tipsevm.SubAccount, error) {
	var sub tipsevm.SubAccount
	params := tipsevm.AddSubAccountParams{Account: tipsevm.AddSubAccountSpec{Type: "create"}}
	if err := w.client.CallContext(ctx, &sub, tipsevm.MethodAddSubAccount, params); err != nil {
		return tipsevm.SubAccount{}, err
	}
	if sub.Address == "" {
		return tipsevm.SubAccount{}, fmt.Errorf("%s returned no address", tipsevm.MethodAddSubAccount)
	}
	return sub, nil
}

// Connect resolves the universal account and its sub account for domain.
//
// With interactive set, the user is prompted and a sub account is created
// when none exists yet. Without it, only already-authorized accounts are
// considered and nothing is created; ErrNotConnected is returned when no
// sub account is available.
func (w *RPCWallet) Connect(ctx context.Context, domain string, interactive bool) (Account, error) {
	var (
		accounts []string
		err      error
	)
	if interactive {
		accounts, err = w.RequestAccounts(ctx)
	} else {
		accounts, err = w.Accounts(ctx)
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return Account{}, ErrNotConnected
	}
	universal := accounts[0]

	subs, err := w.SubAccounts(ctx, universal, domain)
	if err != nil {
		return Account{}, fmt.Errorf("failed to get sub accounts: %w", err)
	}
	if len(subs) > 0 && subs[0].Address != "" {
		return Account{Universal: universal, Sub: subs[0].Address}, nil
	}
	if !interactive {
		return Account{}, ErrNotConnected
	}

	sub, err := w.AddSubAccount(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("failed to create sub account: %w", err)
	}
	return Account{Universal: universal, Sub: sub.Address}, nil
}

// ErrNotConnected is returned by a non-interactive Connect when the wallet
// has no authorized account or sub account yet
var ErrNotConnected = errors.New("wallet not connected")

func sameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
