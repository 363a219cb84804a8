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
	"context"
	"strconv"
	"strings"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"
	"github.com/kaleido-io/ioweyou/internal/ledger"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/internal/rpcserver"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
)

// ListTokensOptions is the optional second parameter of iou_listTokens
type ListTokensOptions struct {
	Owner         *ethtypes.Address0xHex `json:"owner,omitempty"`
	Creator       *ethtypes.Address0xHex `json:"creator,omitempty"`
	IncludeBurned bool                   `json:"includeBurned,omitempty"`
	Limit         int                    `json:"limit,omitempty"`
}

func (c *chain) RPCModules() []*rpcserver.RPCModule {
	eth := rpcserver.NewRPCModule("eth")
	c.add(eth, "eth_chainId", rpcserver.RPCMethod0(c.rpcChainID()))
	c.add(eth, "eth_blockNumber", rpcserver.RPCMethod0(c.rpcBlockNumber()))
	c.add(eth, "eth_accounts", rpcserver.RPCMethod0(c.rpcAccounts()))
	c.add(eth, "eth_getTransactionCount", rpcserver.RPCMethod2Opt(c.rpcGetTransactionCount()))
	c.add(eth, "eth_sendRawTransaction", rpcserver.RPCMethod1(c.rpcSendRawTransaction()))
	c.add(eth, "eth_getTransactionReceipt", rpcserver.RPCMethod1(c.rpcGetTransactionReceipt()))
	c.add(eth, "eth_call", rpcserver.RPCMethod2Opt(c.rpcCall()))
	c.add(eth, "eth_getCode", rpcserver.RPCMethod2Opt(c.rpcGetCode()))

	net := rpcserver.NewRPCModule("net")
	c.add(net, "net_version", rpcserver.RPCMethod0(c.rpcNetVersion()))

	iou := rpcserver.NewRPCModule("iou")
	c.add(iou, "iou_getIOU", rpcserver.RPCMethod2(c.rpcGetIOU()))
	c.add(iou, "iou_tokenURI", rpcserver.RPCMethod2(c.rpcTokenURI()))
	c.add(iou, "iou_balanceOf", rpcserver.RPCMethod2(c.rpcAddressCount(c.ledger.BalanceOf)))
	c.add(iou, "iou_createdBalanceOf", rpcserver.RPCMethod2(c.rpcAddressCount(c.ledger.CreatedBalanceOf)))
	c.add(iou, "iou_activeCreatedBalanceOf", rpcserver.RPCMethod2(c.rpcAddressCount(c.ledger.ActiveCreatedBalanceOf)))
	c.add(iou, "iou_tokenOfOwnerByIndex", rpcserver.RPCMethod3(c.rpcAddressIndex(c.ledger.TokenOfOwnerByIndex)))
	c.add(iou, "iou_tokenOfCreatorByIndex", rpcserver.RPCMethod3(c.rpcAddressIndex(c.ledger.TokenOfCreatorByIndex)))
	c.add(iou, "iou_addrToString", rpcserver.RPCMethod2(c.rpcAddrToString()))
	c.add(iou, "iou_getContract", rpcserver.RPCMethod1(c.rpcGetContract()))
	c.add(iou, "iou_listContracts", rpcserver.RPCMethod0(c.rpcListContracts()))
	c.add(iou, "iou_listTokens", rpcserver.RPCMethod2Opt(c.rpcListTokens()))
	c.add(iou, "iou_nodeInfo", rpcserver.RPCMethod0(c.NodeInfo))

	return []*rpcserver.RPCModule{eth, net, iou}
}

func (c *chain) add(m *rpcserver.RPCModule, method string, handler rpcserver.RPCHandler) {
	m.Add(method, rpcserver.HandlerFunc(func(ctx context.Context, req *rpcbackend.RPCRequest) *rpcbackend.RPCResponse {
		c.metrics.IncRpc(method)
		return handler.Handle(ctx, req)
	}))
}

// checkBlock accepts the tags and numbers that all resolve to the latest state
func checkBlock(ctx context.Context, block string) error {
	switch block {
	case "", "latest", "pending", "safe", "finalized":
		return nil
	}
	if strings.HasPrefix(block, "0x") {
		if _, err := strconv.ParseUint(block[2:], 16, 64); err == nil {
			return nil
		}
	}
	return i18n.NewError(ctx, msgs.MsgChainUnsupportedBlockID, block)
}

func (c *chain) rpcChainID() func(context.Context) (ethtypes.HexUint64, error) {
	return func(ctx context.Context) (ethtypes.HexUint64, error) {
		return ethtypes.HexUint64(c.chainID), nil
	}
}

func (c *chain) rpcNetVersion() func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return strconv.FormatUint(c.chainID, 10), nil
	}
}

func (c *chain) rpcBlockNumber() func(context.Context) (ethtypes.HexUint64, error) {
	return func(ctx context.Context) (ethtypes.HexUint64, error) {
		n, err := c.BlockNumber(ctx)
		return ethtypes.HexUint64(n), err
	}
}

// signing is always done by the client, so the node holds no accounts
func (c *chain) rpcAccounts() func(context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		return []string{}, nil
	}
}

func (c *chain) rpcGetTransactionCount() func(context.Context, ethtypes.Address0xHex, string) (ethtypes.HexUint64, error) {
	return func(ctx context.Context, addr ethtypes.Address0xHex, block string) (ethtypes.HexUint64, error) {
		if err := checkBlock(ctx, block); err != nil {
			return 0, err
		}
		n, err := c.GetTransactionCount(ctx, addr)
		return ethtypes.HexUint64(n), err
	}
}

func (c *chain) rpcSendRawTransaction() func(context.Context, ethtypes.HexBytes0xPrefix) (ethtypes.HexBytes0xPrefix, error) {
	return func(ctx context.Context, raw ethtypes.HexBytes0xPrefix) (ethtypes.HexBytes0xPrefix, error) {
		return c.SendRawTransaction(ctx, raw)
	}
}

func (c *chain) rpcGetTransactionReceipt() func(context.Context, ethtypes.HexBytes0xPrefix) (*ioutypes.TransactionReceipt, error) {
	return func(ctx context.Context, hash ethtypes.HexBytes0xPrefix) (*ioutypes.TransactionReceipt, error) {
		return c.GetTransactionReceipt(ctx, hash)
	}
}

func (c *chain) rpcCall() func(context.Context, ioutypes.CallRequest, string) (ethtypes.HexBytes0xPrefix, error) {
	return func(ctx context.Context, req ioutypes.CallRequest, block string) (ethtypes.HexBytes0xPrefix, error) {
		if err := checkBlock(ctx, block); err != nil {
			return nil, err
		}
		return c.Call(ctx, &req)
	}
}

func (c *chain) rpcGetCode() func(context.Context, ethtypes.Address0xHex, string) (ethtypes.HexBytes0xPrefix, error) {
	return func(ctx context.Context, addr ethtypes.Address0xHex, block string) (ethtypes.HexBytes0xPrefix, error) {
		if err := checkBlock(ctx, block); err != nil {
			return nil, err
		}
		return c.GetCode(ctx, addr)
	}
}

func (c *chain) ioweyou(ctx context.Context, addr ethtypes.Address0xHex) (*ioutypes.Contract, error) {
	return c.store.GetKind(ctx, c.p.NOTX(), addr, iouabi.KindIOweYou)
}

func (c *chain) rpcGetIOU() func(context.Context, ethtypes.Address0xHex, ethtypes.HexUint64) (*ioutypes.IOU, error) {
	return func(ctx context.Context, addr ethtypes.Address0xHex, tokenID ethtypes.HexUint64) (*ioutypes.IOU, error) {
		contract, err := c.ioweyou(ctx, addr)
		if err != nil {
			return nil, err
		}
		iou, err := c.ledger.GetIOU(ctx, c.p.NOTX(), contract, tokenID.Uint64())
		return iou, mapRevert(ctx, err)
	}
}

func (c *chain) rpcTokenURI() func(context.Context, ethtypes.Address0xHex, ethtypes.HexUint64) (string, error) {
	return func(ctx context.Context, addr ethtypes.Address0xHex, tokenID ethtypes.HexUint64) (string, error) {
		contract, err := c.ioweyou(ctx, addr)
		if err != nil {
			return "", err
		}
		uri, err := c.ledger.TokenURI(ctx, c.p.NOTX(), contract, tokenID.Uint64())
		return uri, mapRevert(ctx, err)
	}
}

type addressCountFn func(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, a ethtypes.Address0xHex) (uint64, error)

func (c *chain) rpcAddressCount(fn addressCountFn) func(context.Context, ethtypes.Address0xHex, ethtypes.Address0xHex) (ethtypes.HexUint64, error) {
	return func(ctx context.Context, addr ethtypes.Address0xHex, account ethtypes.Address0xHex) (ethtypes.HexUint64, error) {
		contract, err := c.ioweyou(ctx, addr)
		if err != nil {
			return 0, err
		}
		n, err := fn(ctx, c.p.NOTX(), contract, account)
		return ethtypes.HexUint64(n), mapRevert(ctx, err)
	}
}

type addressIndexFn func(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, a ethtypes.Address0xHex, index uint64) (uint64, error)

func (c *chain) rpcAddressIndex(fn addressIndexFn) func(context.Context, ethtypes.Address0xHex, ethtypes.Address0xHex, ethtypes.HexUint64) (ethtypes.HexUint64, error) {
	return func(ctx context.Context, addr ethtypes.Address0xHex, account ethtypes.Address0xHex, index ethtypes.HexUint64) (ethtypes.HexUint64, error) {
		contract, err := c.ioweyou(ctx, addr)
		if err != nil {
			return 0, err
		}
		n, err := fn(ctx, c.p.NOTX(), contract, account, index.Uint64())
		return ethtypes.HexUint64(n), mapRevert(ctx, err)
	}
}

func (c *chain) rpcAddrToString() func(context.Context, ethtypes.Address0xHex, ethtypes.Address0xHex) (string, error) {
	return func(ctx context.Context, addr ethtypes.Address0xHex, lookup ethtypes.Address0xHex) (string, error) {
		contract, err := c.ioweyou(ctx, addr)
		if err != nil {
			return "", err
		}
		return c.ledger.AddrToString(ctx, contract, lookup), nil
	}
}

func (c *chain) rpcGetContract() func(context.Context, ethtypes.Address0xHex) (*ioutypes.Contract, error) {
	return func(ctx context.Context, addr ethtypes.Address0xHex) (*ioutypes.Contract, error) {
		return c.store.Get(ctx, c.p.NOTX(), addr)
	}
}

func (c *chain) rpcListContracts() func(context.Context) ([]*ioutypes.Contract, error) {
	return func(ctx context.Context) ([]*ioutypes.Contract, error) {
		return c.store.List(ctx, c.p.NOTX(), "")
	}
}

func (c *chain) rpcListTokens() func(context.Context, ethtypes.Address0xHex, *ListTokensOptions) ([]*ioutypes.IOU, error) {
	return func(ctx context.Context, addr ethtypes.Address0xHex, opts *ListTokensOptions) ([]*ioutypes.IOU, error) {
		contract, err := c.ioweyou(ctx, addr)
		if err != nil {
			return nil, err
		}
		filter := &ledger.IOUFilter{}
		if opts != nil {
			filter.Owner = opts.Owner
			filter.Creator = opts.Creator
			filter.IncludeBurned = opts.IncludeBurned
			filter.Limit = opts.Limit
		}
		return c.ledger.ListIOUs(ctx, c.p.NOTX(), contract, filter)
	}
}
