package evm

import (
	"math/big"
)

// Call is a single EIP-5792 call inside a wallet_sendCalls request
type Call struct {
	To    string `json:"to"`              // Contract address (hex)
	Value string `json:"value,omitempty"` // Native value as hex quantity
	Data  string `json:"data,omitempty"`  // ABI-encoded calldata (hex)
}

// PaymasterService points the wallet at a fee sponsorship endpoint
type PaymasterService struct {
	URL string `json:"url"`
}

// Capabilities are optional wallet_sendCalls features
type Capabilities struct {
	PaymasterService *PaymasterService `json:"paymasterService,omitempty"`
}

// SendCallsParams is the single parameter object of wallet_sendCalls
type SendCallsParams struct {
	Version      string        `json:"version"`
	ChainID      string        `json:"chainId"` // Hex quantity, e.g. "0x14a34"
	From         string        `json:"from"`
	Calls        []Call        `json:"calls"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
}

// SendCallsResult is the object form of a wallet_sendCalls response.
// Older wallets return a bare string id instead.
type SendCallsResult struct {
	ID string `json:"id"`
}

// SubAccount is an app-scoped account derived from a universal account
type SubAccount struct {
	Address string `json:"address"`
	Factory string `json:"factory,omitempty"`
}

// SubAccountsResponse is the result of wallet_getSubAccounts
type SubAccountsResponse struct {
	SubAccounts []SubAccount `json:"subAccounts"`
}

// GetSubAccountsParams is the parameter of wallet_getSubAccounts
type GetSubAccountsParams struct {
	Account string `json:"account"`
	Domain  string `json:"domain"`
}

// AddSubAccountParams is the parameter of wallet_addSubAccount
type AddSubAccountParams struct {
	Account AddSubAccountSpec `json:"account"`
}

// AddSubAccountSpec selects how the sub account is provisioned
type AddSubAccountSpec struct {
	Type string `json:"type"` // "create"
}

// AssetInfo contains information about an ERC20 token
type AssetInfo struct {
	Address  string
	Name     string
	Version  string
	Decimals int
}

// NetworkConfig contains network-specific configuration
type NetworkConfig struct {
	ChainID      *big.Int
	DefaultAsset AssetInfo
}
