package evm

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// GetNetworkConfig returns the configuration for a known network
func GetNetworkConfig(network string) (*NetworkConfig, error) {
	config, ok := NetworkConfigs[network]
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}
	return &config, nil
}

// GetEvmChainId resolves the chain id of a network.
// Accepts CAIP-2 identifiers (eip155:<id>) for any chain and legacy names
// for the configured networks.
func GetEvmChainId(network string) (*big.Int, error) {
	if config, ok := NetworkConfigs[network]; ok {
		return new(big.Int).Set(config.ChainID), nil
	}

	reference, found := strings.CutPrefix(network, "eip155:")
	if !found {
		return nil, fmt.Errorf("unsupported network format: %s", network)
	}

	id, err := strconv.ParseUint(reference, 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("invalid chain id in network %s", network)
	}
	return new(big.Int).SetUint64(id), nil
}

// ChainIDHex returns the chain id of a network as a hex quantity
func ChainIDHex(network string) (string, error) {
	chainID, err := GetEvmChainId(network)
	if err != nil {
		return "", err
	}
	return hexutil.EncodeBig(chainID), nil
}

// IsValidNetwork reports whether the network has a known configuration
func IsValidNetwork(network string) bool {
	_, ok := NetworkConfigs[network]
	return ok
}

// IsValidAddress reports whether s is a 20-byte hex address
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// ParseAmount converts a decimal amount ("0.0001") into the token's smallest
// unit. Fractional digits beyond the token precision are truncated.
func ParseAmount(amount string, decimals int) (*big.Int, error) {
	cleaned := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(amount), "$"))
	if cleaned == "" {
		return nil, fmt.Errorf("invalid amount: %q", amount)
	}
	if strings.HasPrefix(cleaned, "-") {
		return nil, fmt.Errorf("amount cannot be negative: %s", amount)
	}

	whole, frac, _ := strings.Cut(cleaned, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	value, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	return value, nil
}

// FormatAmount renders a smallest-unit amount as a decimal string
func FormatAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	s := amount.String()
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if negative {
		out = "-" + out
	}
	return out
}

// IsSequencingConflict reports whether a submission error was caused by
// account nonce ordering (a replaced or out-of-order submission)
func IsSequencingConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range SequencingConflictMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// PartialSubmitError reports a call bundle that failed after some of its
// calls were already broadcast. Sent counts the leading calls that went out;
// resubmitting the bundle would repeat them.
type PartialSubmitError struct {
	Sent   int
	Total  int
	Hashes []string
	Err    error
}

func (e *PartialSubmitError) Error() string {
	return fmt.Sprintf("bundle partially broadcast (%d of %d calls): %v", e.Sent, e.Total, e.Err)
}

func (e *PartialSubmitError) Unwrap() error {
	return e.Err
}

// AsPartialSubmit returns the partial broadcast behind err, if any
func AsPartialSubmit(err error) (*PartialSubmitError, bool) {
	var partial *PartialSubmitError
	if errors.As(err, &partial) {
		return partial, true
	}
	return nil, false
}
