// Package evm provides EVM chain support for attention tips.
// It encodes ERC-20 token transfers and assembles EIP-5792 wallet_sendCalls
// requests that a wallet or signer executes on our behalf.
package evm

import (
	"fmt"
	"math/big"
)

// Transfer is one token payment to a recipient, in the token's smallest unit
type Transfer struct {
	To     string
	Amount *big.Int
}

// BuildTransferCalls creates one transfer call per recipient, preserving order
func BuildTransferCalls(token string, transfers []Transfer) ([]Call, error) {
	if len(transfers) == 0 {
		return nil, fmt.Errorf("no transfers to build")
	}

	calls := make([]Call, 0, len(transfers))
	for i, transfer := range transfers {
		call, err := BuildTransferCall(token, transfer.To, transfer.Amount)
		if err != nil {
			return nil, fmt.Errorf("transfer %d: %w", i, err)
		}
		calls = append(calls, call)
	}
	return calls, nil
}
