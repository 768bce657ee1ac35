package evm

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	transferABIOnce sync.Once
	transferABI     abi.ABI
	transferABIErr  error
)

func erc20TransferABI() (abi.ABI, error) {
	transferABIOnce.Do(func() {
		transferABI, transferABIErr = abi.JSON(bytes.NewReader(ERC20TransferABI))
	})
	return transferABI, transferABIErr
}

// EncodeTransfer ABI-encodes transfer(to, amount)
func EncodeTransfer(to string, amount *big.Int) ([]byte, error) {
	if !IsValidAddress(to) {
		return nil, fmt.Errorf("invalid recipient address: %s", to)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid transfer amount: %v", amount)
	}

	parsed, err := erc20TransferABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 transfer ABI: %w", err)
	}

	data, err := parsed.Pack(FunctionTransfer, common.HexToAddress(to), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer calldata: %w", err)
	}
	return data, nil
}

// BuildTransferCall creates one token transfer call against the token contract
func BuildTransferCall(token, to string, amount *big.Int) (Call, error) {
	if !IsValidAddress(token) {
		return Call{}, fmt.Errorf("invalid token address: %s", token)
	}

	data, err := EncodeTransfer(to, amount)
	if err != nil {
		return Call{}, err
	}

	return Call{
		To:    common.HexToAddress(token).Hex(),
		Value: ZeroValue,
		Data:  hexutil.Encode(data),
	}, nil
}

// BuildSendCallsParams assembles a wallet_sendCalls request.
// The paymaster capability is attached only when paymasterURL is set.
func BuildSendCallsParams(network, from string, calls []Call, paymasterURL string) (SendCallsParams, error) {
	chainID, err := ChainIDHex(network)
	if err != nil {
		return SendCallsParams{}, err
	}

	params := SendCallsParams{
		Version: SendCallsVersion,
		ChainID: chainID,
		From:    from,
		Calls:   calls,
	}
	if paymasterURL != "" {
		params.Capabilities = &Capabilities{
			PaymasterService: &PaymasterService{URL: paymasterURL},
		}
	}
	return params, nil
}
