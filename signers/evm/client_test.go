package evm

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tipsevm "github.com/attentionrush/tips/mechanisms/evm"
)

const (
	testUniversal = "0x1111111111111111111111111111111111111111"
	testSub       = "0x2222222222222222222222222222222222222222"
	testRecipient = "0x3333333333333333333333333333333333333333"
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// fakeNode answers JSON-RPC requests from a per-method handler table
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]func(params []json.RawMessage) (interface{}, *rpcError)
	calls    []rpcRequest
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	node := &fakeNode{handlers: map[string]func([]json.RawMessage) (interface{}, *rpcError){}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		node.mu.Lock()
		node.calls = append(node.calls, req)
		handler, ok := node.handlers[req.Method]
		node.mu.Unlock()

		response := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch {
		case !ok:
			response["error"] = rpcError{Code: -32601, Message: "method not found: " + req.Method}
		default:
			result, rpcErr := handler(req.Params)
			if rpcErr != nil {
				response["error"] = rpcErr
			} else {
				response["result"] = result
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)
	return node, server
}

func (n *fakeNode) handle(method string, handler func(params []json.RawMessage) (interface{}, *rpcError)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = handler
}

func (n *fakeNode) methods() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.calls))
	for i, c := range n.calls {
		out[i] = c.Method
	}
	return out
}

func (n *fakeNode) paramsOf(method string) []json.RawMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.calls {
		if c.Method == method {
			return c.Params
		}
	}
	return nil
}

func dialTestWallet(t *testing.T, url string) *RPCWallet {
	wallet, err := DialWallet(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(wallet.Close)
	return wallet
}

func testSendCallsParams(t *testing.T, from string) tipsevm.SendCallsParams {
	call, err := tipsevm.BuildTransferCall(tipsevm.USDCBaseSepolia, testRecipient, big.NewInt(100))
	require.NoError(t, err)
	params, err := tipsevm.BuildSendCallsParams(tipsevm.DefaultNetwork, from, []tipsevm.Call{call}, "")
	require.NoError(t, err)
	return params
}

func TestRPCWalletSendCalls(t *testing.T) {
	tests := []struct {
		name   string
		result interface{}
		want   string
	}{
		{"bare id", "0xcallsid", "0xcallsid"},
		{"object id", map[string]string{"id": "0xobjectid"}, "0xobjectid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, server := newFakeNode(t)
			node.handle(tipsevm.MethodSendCalls, func([]json.RawMessage) (interface{}, *rpcError) {
				return tt.result, nil
			})
			wallet := dialTestWallet(t, server.URL)

			id, err := wallet.SendCalls(context.Background(), testSendCallsParams(t, testSub))
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)

			params := node.paramsOf(tipsevm.MethodSendCalls)
			require.Len(t, params, 1)
			var sent tipsevm.SendCallsParams
			require.NoError(t, json.Unmarshal(params[0], &sent))
			assert.Equal(t, "1.0", sent.Version)
			assert.Equal(t, "0x14a34", sent.ChainID)
			assert.Equal(t, testSub, sent.From)
			require.Len(t, sent.Calls, 1)
			assert.True(t, strings.HasPrefix(sent.Calls[0].Data, "0xa9059cbb"))
		})
	}
}

func TestRPCWalletSendCallsSurfacesWalletErrors(t *testing.T) {
	node, server := newFakeNode(t)
	node.handle(tipsevm.MethodSendCalls, func([]json.RawMessage) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "replacement transaction underpriced"}
	})
	wallet := dialTestWallet(t, server.URL)

	_, err := wallet.SendCalls(context.Background(), testSendCallsParams(t, testSub))
	require.Error(t, err)
	assert.True(t, tipsevm.IsSequencingConflict(err), "wallet message must survive for classification: %v", err)
}

func TestRPCWalletConnect(t *testing.T) {
	t.Run("existing sub account is reused", func(t *testing.T) {
		node, server := newFakeNode(t)
		node.handle(tipsevm.MethodRequestAccounts, func([]json.RawMessage) (interface{}, *rpcError) {
			return []string{testUniversal}, nil
		})
		node.handle(tipsevm.MethodGetSubAccounts, func([]json.RawMessage) (interface{}, *rpcError) {
			return tipsevm.SubAccountsResponse{SubAccounts: []tipsevm.SubAccount{{Address: testSub}}}, nil
		})
		wallet := dialTestWallet(t, server.URL)

		account, err := wallet.Connect(context.Background(), "https://attentionrush.app", true)
		require.NoError(t, err)
		assert.Equal(t, Account{Universal: testUniversal, Sub: testSub}, account)
		assert.NotContains(t, node.methods(), tipsevm.MethodAddSubAccount)

		var query tipsevm.GetSubAccountsParams
		require.NoError(t, json.Unmarshal(node.paramsOf(tipsevm.MethodGetSubAccounts)[0], &query))
		assert.Equal(t, testUniversal, query.Account)
		assert.Equal(t, "https://attentionrush.app", query.Domain)
	})

	t.Run("sub account is created when missing", func(t *testing.T) {
		node, server := newFakeNode(t)
		node.handle(tipsevm.MethodRequestAccounts, func([]json.RawMessage) (interface{}, *rpcError) {
			return []string{testUniversal}, nil
		})
		node.handle(tipsevm.MethodGetSubAccounts, func([]json.RawMessage) (interface{}, *rpcError) {
			return tipsevm.SubAccountsResponse{}, nil
		})
		node.handle(tipsevm.MethodAddSubAccount, func([]json.RawMessage) (interface{}, *rpcError) {
			return tipsevm.SubAccount{Address: testSub}, nil
		})
		wallet := dialTestWallet(t, server.URL)

		account, err := wallet.Connect(context.Background(), "https://attentionrush.app", true)
		require.NoError(t, err)
		assert.Equal(t, testSub, account.Sub)

		var add tipsevm.AddSubAccountParams
		require.NoError(t, json.Unmarshal(node.paramsOf(tipsevm.MethodAddSubAccount)[0], &add))
		assert.Equal(t, "create", add.Account.Type)
	})

	t.Run("non-interactive check never prompts or creates", func(t *testing.T) {
		node, server := newFakeNode(t)
		node.handle(tipsevm.MethodAccounts, func([]json.RawMessage) (interface{}, *rpcError) {
			return []string{testUniversal}, nil
		})
		node.handle(tipsevm.MethodGetSubAccounts, func([]json.RawMessage) (interface{}, *rpcError) {
			return tipsevm.SubAccountsResponse{}, nil
		})
		wallet := dialTestWallet(t, server.URL)

		_, err := wallet.Connect(context.Background(), "https://attentionrush.app", false)
		assert.ErrorIs(t, err, ErrNotConnected)
		assert.Equal(t, []string{tipsevm.MethodAccounts, tipsevm.MethodGetSubAccounts}, node.methods())
	})

	t.Run("no authorized accounts", func(t *testing.T) {
		node, server := newFakeNode(t)
		node.handle(tipsevm.MethodAccounts, func([]json.RawMessage) (interface{}, *rpcError) {
			return []string{}, nil
		})
		wallet := dialTestWallet(t, server.URL)

		_, err := wallet.Connect(context.Background(), "https://attentionrush.app", false)
		assert.ErrorIs(t, err, ErrNotConnected)
	})
}

func TestKeySignerSendCalls(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hexutil.Encode(crypto.FromECDSA(key))
	from := crypto.PubkeyToAddress(key.PublicKey)

	node, server := newFakeNode(t)
	node.handle("eth_getTransactionCount", func([]json.RawMessage) (interface{}, *rpcError) {
		return "0x7", nil
	})
	node.handle("eth_gasPrice", func([]json.RawMessage) (interface{}, *rpcError) {
		return "0x3b9aca00", nil
	})
	node.handle("eth_estimateGas", func([]json.RawMessage) (interface{}, *rpcError) {
		return "0xc350", nil
	})

	var mu sync.Mutex
	var raw []string
	node.handle("eth_sendRawTransaction", func(params []json.RawMessage) (interface{}, *rpcError) {
		var encoded string
		_ = json.Unmarshal(params[0], &encoded)
		mu.Lock()
		raw = append(raw, encoded)
		mu.Unlock()
		return common.Hash{}.Hex(), nil
	})

	client, err := ethclient.Dial(server.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	signer, err := NewKeySignerFromPrivateKey(keyHex, client)
	require.NoError(t, err)
	assert.Equal(t, from.Hex(), signer.Address())

	first, err := tipsevm.BuildTransferCall(tipsevm.USDCBaseSepolia, testRecipient, big.NewInt(100))
	require.NoError(t, err)
	second, err := tipsevm.BuildTransferCall(tipsevm.USDCBaseSepolia, testUniversal, big.NewInt(200))
	require.NoError(t, err)
	params, err := tipsevm.BuildSendCallsParams(tipsevm.DefaultNetwork, from.Hex(), []tipsevm.Call{first, second}, "")
	require.NoError(t, err)

	id, err := signer.SendCalls(context.Background(), params)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, raw, 2)

	chainID := big.NewInt(84532)
	for i, encoded := range raw {
		data, err := hexutil.Decode(encoded)
		require.NoError(t, err)
		tx := new(types.Transaction)
		require.NoError(t, tx.UnmarshalBinary(data))

		sender, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
		require.NoError(t, err)
		assert.Equal(t, from, sender)
		assert.Equal(t, uint64(7+i), tx.Nonce())
		assert.Equal(t, common.HexToAddress(tipsevm.USDCBaseSepolia), *tx.To())
		assert.Equal(t, uint64(50000), tx.Gas())

		if i == len(raw)-1 {
			assert.Equal(t, tx.Hash().Hex(), id)
		}
	}
}

func TestKeySignerRejectsForeignSender(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, server := newFakeNode(t)
	client, err := ethclient.Dial(server.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	signer, err := NewKeySignerFromPrivateKey(hexutil.Encode(crypto.FromECDSA(key)), client)
	require.NoError(t, err)

	_, err = signer.SendCalls(context.Background(), testSendCallsParams(t, testSub))
	assert.Error(t, err)
}

func TestNewKeySignerValidation(t *testing.T) {
	_, server := newFakeNode(t)
	client, err := ethclient.Dial(server.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	_, err = NewKeySignerFromPrivateKey("not-a-key", client)
	assert.Error(t, err)

	_, err = NewKeySignerFromPrivateKey("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318", nil)
	assert.Error(t, err)
}
