package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	tipsevm "github.com/attentionrush/tips/mechanisms/evm"
)

// KeySigner submits calls as plain transactions signed with a local key.
//
// Each call becomes its own legacy transaction with consecutive nonces, so a
// multi-call submission is not atomic. A failure after the first broadcast
// is returned as a *tipsevm.PartialSubmitError, which callers must not
// resubmit. Paymaster capabilities are ignored; the key pays its own gas.
type KeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	ethClient  *ethclient.Client

	// serializes nonce allocation between concurrent submissions
	mu sync.Mutex
}

// NewKeySignerFromPrivateKey creates a signer from a hex-encoded private key
// (with or without "0x" prefix)
func NewKeySignerFromPrivateKey(privateKeyHex string, ethClient *ethclient.Client) (*KeySigner, error) {
	if ethClient == nil {
		return nil, fmt.Errorf("ethclient is required")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &KeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		ethClient:  ethClient,
	}, nil
}

// Address returns the account the signer pays from
func (s *KeySigner) Address() string {
	return s.address.Hex()
}

// SendCalls signs and broadcasts every call and returns the hash of the
// last transaction
func (s *KeySigner) SendCalls(ctx context.Context, params tipsevm.SendCallsParams) (string, error) {
	if params.From != "" && !sameAddress(params.From, s.address.Hex()) {
		return "", fmt.Errorf("signer %s cannot send from %s", s.address.Hex(), params.From)
	}
	if len(params.Calls) == 0 {
		return "", fmt.Errorf("no calls to send")
	}

	chainID, err := hexutil.DecodeBig(params.ChainID)
	if err != nil {
		return "", fmt.Errorf("invalid chain id %q: %w", params.ChainID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.ethClient.PendingNonceAt(ctx, s.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := s.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	signer := types.LatestSignerForChainID(chainID)
	hashes := make([]string, 0, len(params.Calls))
	for i, call := range params.Calls {
		if err := s.send(ctx, signer, call, nonce+uint64(i), gasPrice, &hashes); err != nil {
			err = fmt.Errorf("call %d: %w", i, err)
			if len(hashes) == 0 {
				return "", err
			}
			return "", &tipsevm.PartialSubmitError{
				Sent:   len(hashes),
				Total:  len(params.Calls),
				Hashes: hashes,
				Err:    err,
			}
		}
	}
	return hashes[len(hashes)-1], nil
}

func (s *KeySigner) send(ctx context.Context, signer types.Signer, call tipsevm.Call, nonce uint64, gasPrice *big.Int, hashes *[]string) error {
	tx, err := s.buildTx(ctx, call, nonce, gasPrice)
	if err != nil {
		return err
	}
	signed, err := types.SignTx(tx, signer, s.privateKey)
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}
	if err := s.ethClient.SendTransaction(ctx, signed); err != nil {
		return err
	}
	*hashes = append(*hashes, signed.Hash().Hex())
	return nil
}

func (s *KeySigner) buildTx(ctx context.Context, call tipsevm.Call, nonce uint64, gasPrice *big.Int) (*types.Transaction, error) {
	if !common.IsHexAddress(call.To) {
		return nil, fmt.Errorf("invalid call target: %s", call.To)
	}
	to := common.HexToAddress(call.To)

	value := new(big.Int)
	if call.Value != "" {
		v, err := hexutil.DecodeBig(call.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", call.Value, err)
		}
		value = v
	}

	var data []byte
	if call.Data != "" {
		d, err := hexutil.Decode(call.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid data: %w", err)
		}
		data = d
	}

	gas, err := s.ethClient.EstimateGas(ctx, ethereum.CallMsg{
		From:     s.address,
		To:       &to,
		GasPrice: gasPrice,
		Value:    value,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	}), nil
}
