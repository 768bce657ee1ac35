package evm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20MetadataABI = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

var (
	metadataABIOnce sync.Once
	metadataABI     abi.ABI
	metadataABIErr  error
)

// TokenInfo is the on-chain metadata of the tipping token
type TokenInfo struct {
	Address  string
	Symbol   string
	Decimals int
}

// ReadTokenInfo reads decimals and symbol of an ERC-20 token
func ReadTokenInfo(ctx context.Context, caller ethereum.ContractCaller, token string) (TokenInfo, error) {
	if !common.IsHexAddress(token) {
		return TokenInfo{}, fmt.Errorf("invalid token address: %s", token)
	}

	decimals, err := readContract(ctx, caller, token, "decimals")
	if err != nil {
		return TokenInfo{}, err
	}
	symbol, err := readContract(ctx, caller, token, "symbol")
	if err != nil {
		return TokenInfo{}, err
	}

	d, ok := decimals.(uint8)
	if !ok {
		return TokenInfo{}, fmt.Errorf("unexpected decimals type %T", decimals)
	}
	s, ok := symbol.(string)
	if !ok {
		return TokenInfo{}, fmt.Errorf("unexpected symbol type %T", symbol)
	}

	return TokenInfo{
		Address:  common.HexToAddress(token).Hex(),
		Symbol:   s,
		Decimals: int(d),
	}, nil
}

// readContract calls a view function without arguments and returns its
// single output
func readContract(ctx context.Context, caller ethereum.ContractCaller, contractAddress, functionName string) (interface{}, error) {
	metadataABIOnce.Do(func() {
		metadataABI, metadataABIErr = abi.JSON(strings.NewReader(erc20MetadataABI))
	})
	if metadataABIErr != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", metadataABIErr)
	}

	data, err := metadataABI.Pack(functionName)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method call: %w", err)
	}

	addr := common.HexToAddress(contractAddress)
	result, err := caller.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", functionName, err)
	}

	outputs, err := metadataABI.Unpack(functionName, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", functionName, err)
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("%s returned %d values", functionName, len(outputs))
	}
	return outputs[0], nil
}
