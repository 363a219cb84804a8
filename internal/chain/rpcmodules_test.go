// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chain

import (
	"fmt"
	"testing"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/rpcclient"
	"github.com/kaleido-io/ioweyou/internal/rpcserver"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (tc *testChain) startRPC(t *testing.T) rpcclient.Client {
	conf := &iouconf.RPCServerConfig{}
	conf.HTTP.Address = confutil.P("127.0.0.1")
	conf.HTTP.Port = confutil.P(0)
	conf.WS.Disabled = true
	s, err := rpcserver.NewRPCServer(tc.ctx, conf)
	require.NoError(t, err)
	for _, m := range tc.c.RPCModules() {
		s.Register(m)
	}
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)

	client, err := rpcclient.NewHTTPClient(tc.ctx, &iouconf.HTTPClientConfig{
		URL: fmt.Sprintf("http://%s", s.HTTPAddr()),
	})
	require.NoError(t, err)
	return client
}

func TestRPCEthMethods(t *testing.T) {
	tc := newTestChain(t)
	client := tc.startRPC(t)

	var chainID ethtypes.HexUint64
	require.NoError(t, client.CallRPC(tc.ctx, &chainID, "eth_chainId"))
	assert.Equal(t, ethtypes.HexUint64(iouconf.DefaultChainID), chainID)

	var netVersion string
	require.NoError(t, client.CallRPC(tc.ctx, &netVersion, "net_version"))
	assert.Equal(t, "31337", netVersion)

	var accounts []string
	require.NoError(t, client.CallRPC(tc.ctx, &accounts, "eth_accounts"))
	assert.Empty(t, accounts)

	data, err := iouabi.DeployData(tc.ctx, iouabi.KindIOweYou, map[string]any{
		"reverseRecords": "0x0000000000000000000000000000000000000000",
	})
	require.NoError(t, err)
	var hash ethtypes.HexBytes0xPrefix
	require.NoError(t, client.CallRPC(tc.ctx, &hash, "eth_sendRawTransaction", tc.sign(t, tc.alice, 0, nil, data)))

	var receipt ioutypes.TransactionReceipt
	require.NoError(t, client.CallRPC(tc.ctx, &receipt, "eth_getTransactionReceipt", hash))
	require.NotNil(t, receipt.ContractAddress)
	contractAddr := *receipt.ContractAddress

	var blockNumber ethtypes.HexUint64
	require.NoError(t, client.CallRPC(tc.ctx, &blockNumber, "eth_blockNumber"))
	assert.Equal(t, ethtypes.HexUint64(1), blockNumber)

	var nonce ethtypes.HexUint64
	require.NoError(t, client.CallRPC(tc.ctx, &nonce, "eth_getTransactionCount", tc.alice.Address, "latest"))
	assert.Equal(t, ethtypes.HexUint64(1), nonce)
	require.NoError(t, client.CallRPC(tc.ctx, &nonce, "eth_getTransactionCount", tc.alice.Address))
	assert.Equal(t, ethtypes.HexUint64(1), nonce)
	rpcErr := client.CallRPC(tc.ctx, &nonce, "eth_getTransactionCount", tc.alice.Address, "earliest")
	assert.Regexp(t, "IO010607", rpcErr)

	var code ethtypes.HexBytes0xPrefix
	require.NoError(t, client.CallRPC(tc.ctx, &code, "eth_getCode", contractAddr, "0x1"))
	assert.Equal(t, iouabi.KindIOweYou.Code(), code)

	var result ethtypes.HexBytes0xPrefix
	completeCall := &ioutypes.CallRequest{To: &contractAddr, Data: tc.callData(t, contractAddr, "complete", map[string]any{"tokenId": "7"})}
	rpcErr = client.CallRPC(tc.ctx, &result, "eth_call", completeCall, "latest")
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpcclient.RPCCodeExecutionReverted, rpcErr.RPCError().Code)
	assert.Regexp(t, "IOU does not exist", rpcErr)

	symbolCall := &ioutypes.CallRequest{To: &contractAddr, Data: tc.callData(t, contractAddr, "symbol", nil)}
	require.NoError(t, client.CallRPC(tc.ctx, &result, "eth_call", symbolCall))
	var symbol struct {
		Symbol string `json:"symbol"`
	}
	require.NoError(t, iouabi.DecodeOutputs(tc.ctx, iouabi.IOweYouABI.Functions()["symbol"], result, &symbol))
	assert.Equal(t, "IOU", symbol.Symbol)

	rpcErr = client.CallRPC(tc.ctx, &hash, "eth_sendRawTransaction", "0x00")
	assert.Regexp(t, "IO010600", rpcErr)
}

func TestRPCIOUMethods(t *testing.T) {
	tc := newTestChain(t)
	client := tc.startRPC(t)

	contractAddr := tc.deployIOweYou(t)
	for i := 0; i < 3; i++ {
		tc.send(t, tc.alice, &contractAddr, tc.callData(t, contractAddr, "create", map[string]any{
			"receiver": tc.bob.Address.String(),
			"promise":  fmt.Sprintf("promise %d", i),
		}))
	}
	tc.send(t, tc.alice, &contractAddr, tc.callData(t, contractAddr, "complete", map[string]any{"tokenId": "2"}))
	tc.send(t, tc.bob, &contractAddr, tc.callData(t, contractAddr, "complete", map[string]any{"tokenId": "2"}))

	var iou ioutypes.IOU
	require.NoError(t, client.CallRPC(tc.ctx, &iou, "iou_getIOU", contractAddr, "0x1"))
	assert.Equal(t, "promise 0", iou.Owed)
	assert.Equal(t, tc.alice.Address, iou.Creator)
	assert.Equal(t, tc.bob.Address, iou.Receiver)

	rpcErr := client.CallRPC(tc.ctx, &iou, "iou_getIOU", contractAddr, "0x9")
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpcclient.RPCCodeExecutionReverted, rpcErr.RPCError().Code)

	var uri string
	require.NoError(t, client.CallRPC(tc.ctx, &uri, "iou_tokenURI", contractAddr, "0x3"))
	assert.Equal(t, "test://3", uri)

	var n ethtypes.HexUint64
	require.NoError(t, client.CallRPC(tc.ctx, &n, "iou_balanceOf", contractAddr, tc.bob.Address))
	assert.Equal(t, ethtypes.HexUint64(2), n)
	require.NoError(t, client.CallRPC(tc.ctx, &n, "iou_createdBalanceOf", contractAddr, tc.alice.Address))
	assert.Equal(t, ethtypes.HexUint64(3), n)
	require.NoError(t, client.CallRPC(tc.ctx, &n, "iou_activeCreatedBalanceOf", contractAddr, tc.alice.Address))
	assert.Equal(t, ethtypes.HexUint64(2), n)
	require.NoError(t, client.CallRPC(tc.ctx, &n, "iou_tokenOfOwnerByIndex", contractAddr, tc.bob.Address, "0x1"))
	assert.Equal(t, ethtypes.HexUint64(3), n)
	require.NoError(t, client.CallRPC(tc.ctx, &n, "iou_tokenOfCreatorByIndex", contractAddr, tc.alice.Address, "0x1"))
	assert.Equal(t, ethtypes.HexUint64(2), n)
	rpcErr = client.CallRPC(tc.ctx, &n, "iou_tokenOfOwnerByIndex", contractAddr, tc.bob.Address, "0x2")
	assert.Regexp(t, "owner index out of bounds", rpcErr)

	var name string
	require.NoError(t, client.CallRPC(tc.ctx, &name, "iou_addrToString", contractAddr, tc.alice.Address))
	assert.Equal(t, "alice.eth", name)
	require.NoError(t, client.CallRPC(tc.ctx, &name, "iou_addrToString", contractAddr, tc.bob.Address))
	assert.Equal(t, tc.bob.Address.String(), name)

	var contract ioutypes.Contract
	require.NoError(t, client.CallRPC(tc.ctx, &contract, "iou_getContract", contractAddr))
	assert.Equal(t, string(iouabi.KindIOweYou), contract.Kind)
	assert.Equal(t, ethtypes.HexUint64(4), contract.NextTokenID)

	var contractList []*ioutypes.Contract
	require.NoError(t, client.CallRPC(tc.ctx, &contractList, "iou_listContracts"))
	assert.Len(t, contractList, 1)

	var tokens []*ioutypes.IOU
	require.NoError(t, client.CallRPC(tc.ctx, &tokens, "iou_listTokens", contractAddr))
	assert.Len(t, tokens, 2)
	require.NoError(t, client.CallRPC(tc.ctx, &tokens, "iou_listTokens", contractAddr, &ListTokensOptions{IncludeBurned: true}))
	assert.Len(t, tokens, 3)
	require.NoError(t, client.CallRPC(tc.ctx, &tokens, "iou_listTokens", contractAddr, &ListTokensOptions{IncludeBurned: true, Limit: 1}))
	assert.Len(t, tokens, 1)

	var info ioutypes.NodeInfo
	require.NoError(t, client.CallRPC(tc.ctx, &info, "iou_nodeInfo"))
	assert.Equal(t, int64(1), info.Contracts)

	nobody := ethtypes.MustNewAddress("0x2222222222222222222222222222222222222222")
	rpcErr = client.CallRPC(tc.ctx, &n, "iou_balanceOf", nobody, tc.bob.Address)
	assert.Regexp(t, "IO010502", rpcErr)
}
