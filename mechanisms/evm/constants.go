package evm

import (
	"math/big"
)

const (
	// Default token decimals for USDC
	DefaultDecimals = 6

	// ERC-20 function names
	FunctionTransfer = "transfer"

	// EIP-5792 wallet_sendCalls request version
	SendCallsVersion = "1.0"

	// Wallet JSON-RPC methods
	MethodSendCalls       = "wallet_sendCalls"
	MethodAccounts        = "eth_accounts"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodGetSubAccounts  = "wallet_getSubAccounts"
	MethodAddSubAccount   = "wallet_addSubAccount"

	// Native value attached to token transfer calls
	ZeroValue = "0x0"

	// USDC on Base Sepolia
	USDCBaseSepolia = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"

	// USDC on Base
	USDCBase = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"

	// Default network the tipping service pays on
	DefaultNetwork = "eip155:84532"
)

var (
	// Network chain IDs
	ChainIDBase        = big.NewInt(8453)
	ChainIDBaseSepolia = big.NewInt(84532)

	// Network configurations, keyed by CAIP-2 id and legacy name
	NetworkConfigs = map[string]NetworkConfig{
		// Base Mainnet
		"eip155:8453": {
			ChainID: ChainIDBase,
			DefaultAsset: AssetInfo{
				Address:  USDCBase,
				Name:     "USD Coin",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
		"base": {
			ChainID: ChainIDBase,
			DefaultAsset: AssetInfo{
				Address:  USDCBase,
				Name:     "USD Coin",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
		// Base Sepolia Testnet
		"eip155:84532": {
			ChainID: ChainIDBaseSepolia,
			DefaultAsset: AssetInfo{
				Address:  USDCBaseSepolia,
				Name:     "USDC",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
		"base-sepolia": {
			ChainID: ChainIDBaseSepolia,
			DefaultAsset: AssetInfo{
				Address:  USDCBaseSepolia,
				Name:     "USDC",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
	}

	// ERC20TransferABI is the minimal ABI for transfer(address,uint256)
	ERC20TransferABI = []byte(`[
		{
			"inputs": [
				{"name": "to", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"name": "transfer",
			"outputs": [{"name": "success", "type": "bool"}],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)

	// SequencingConflictMarkers are error substrings that identify a submission
	// rejected because of account nonce ordering. Such submissions are skipped,
	// never retried.
	SequencingConflictMarkers = []string{
		"replacement underpriced",
		"replacement transaction underpriced",
		"invalid account nonce",
		"nonce too low",
	}
)
