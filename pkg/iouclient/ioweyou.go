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

package iouclient

import (
	"context"
	"strconv"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
)

// IOweYou is a binding to a deployed contract. Reads are sent from the connected
// signer when there is one, and sends require one.
type IOweYou struct {
	c       *Client
	address ethtypes.Address0xHex
	signer  *secp256k1.KeyPair
}

// IOUState is the getIOU view of an open IOU
type IOUState struct {
	Owed              string                `json:"owed"`
	Creator           ethtypes.Address0xHex `json:"creator"`
	Receiver          ethtypes.Address0xHex `json:"receiver"`
	CreatorCompleted  bool                  `json:"creatorCompleted"`
	ReceiverCompleted bool                  `json:"receiverCompleted"`
}

func (c *Client) At(addr ethtypes.Address0xHex) *IOweYou {
	return &IOweYou{c: c, address: addr}
}

// Connect returns a copy of the binding that uses the signer
func (i *IOweYou) Connect(signer *secp256k1.KeyPair) *IOweYou {
	return &IOweYou{c: i.c, address: i.address, signer: signer}
}

func (i *IOweYou) Address() ethtypes.Address0xHex {
	return i.address
}

func (i *IOweYou) send(ctx context.Context, fnName string, inputs map[string]any) (*ioutypes.TransactionReceipt, error) {
	data, err := iouabi.EncodeCall(ctx, iouabi.IOweYouABI.Functions()[fnName], inputs)
	if err != nil {
		return nil, err
	}
	return i.c.SendTransaction(ctx, i.signer, &i.address, data)
}

func (i *IOweYou) call(ctx context.Context, fnName string, inputs map[string]any, outputs any) error {
	var from *ethtypes.Address0xHex
	if i.signer != nil {
		from = &i.signer.Address
	}
	return i.c.Call(ctx, from, i.address, iouabi.IOweYouABI.Functions()[fnName], inputs, outputs)
}

func (i *IOweYou) callUint(ctx context.Context, fnName, output string, inputs map[string]any) (uint64, error) {
	var out map[string]string
	if err := i.call(ctx, fnName, inputs, &out); err != nil {
		return 0, err
	}
	return strconv.ParseUint(out[output], 10, 64)
}

func (i *IOweYou) callString(ctx context.Context, fnName, output string, inputs map[string]any) (string, error) {
	var out map[string]string
	err := i.call(ctx, fnName, inputs, &out)
	return out[output], err
}

// Create mints an IOU to the receiver, returning the token ID from the IOUCreated event
func (i *IOweYou) Create(ctx context.Context, receiver ethtypes.Address0xHex, promise string) (uint64, *ioutypes.TransactionReceipt, error) {
	receipt, err := i.send(ctx, "create", map[string]any{
		"receiver": receiver.String(),
		"promise":  promise,
	})
	if err != nil {
		return 0, receipt, err
	}
	for _, l := range receipt.Logs {
		var created struct {
			TokenID string `json:"tokenId"`
		}
		e, err := iouabi.DecodeEvent(ctx, iouabi.IOweYouABI, l.Topics, l.Data, &created)
		if err != nil {
			return 0, receipt, err
		}
		if e != nil && e.Name == iouabi.IOUCreatedEvent.Name {
			tokenID, err := strconv.ParseUint(created.TokenID, 10, 64)
			return tokenID, receipt, err
		}
	}
	return 0, receipt, nil
}

func (i *IOweYou) Complete(ctx context.Context, tokenID uint64) (*ioutypes.TransactionReceipt, error) {
	return i.send(ctx, "complete", map[string]any{"tokenId": iouabi.Uint(tokenID)})
}

func (i *IOweYou) SetTokenURIAddress(ctx context.Context, tokenURIAddress ethtypes.Address0xHex) (*ioutypes.TransactionReceipt, error) {
	return i.send(ctx, "setTokenURIAddress", map[string]any{"tokenURIAddress": tokenURIAddress.String()})
}

func (i *IOweYou) GetIOU(ctx context.Context, tokenID uint64) (*IOUState, error) {
	var iou IOUState
	if err := i.call(ctx, "getIOU", map[string]any{"tokenId": iouabi.Uint(tokenID)}, &iou); err != nil {
		return nil, err
	}
	return &iou, nil
}

func (i *IOweYou) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	return i.callString(ctx, "tokenURI", "uri", map[string]any{"tokenId": iouabi.Uint(tokenID)})
}

func (i *IOweYou) OwnerOf(ctx context.Context, tokenID uint64) (*ethtypes.Address0xHex, error) {
	owner, err := i.callString(ctx, "ownerOf", "owner", map[string]any{"tokenId": iouabi.Uint(tokenID)})
	if err != nil {
		return nil, err
	}
	return ethtypes.NewAddress(owner)
}

func (i *IOweYou) BalanceOf(ctx context.Context, owner ethtypes.Address0xHex) (uint64, error) {
	return i.callUint(ctx, "balanceOf", "balance", map[string]any{"owner": owner.String()})
}

func (i *IOweYou) TokenOfOwnerByIndex(ctx context.Context, owner ethtypes.Address0xHex, index uint64) (uint64, error) {
	return i.callUint(ctx, "tokenOfOwnerByIndex", "tokenId", map[string]any{"owner": owner.String(), "index": iouabi.Uint(index)})
}

func (i *IOweYou) TotalSupply(ctx context.Context) (uint64, error) {
	return i.callUint(ctx, "totalSupply", "supply", nil)
}

func (i *IOweYou) TokenByIndex(ctx context.Context, index uint64) (uint64, error) {
	return i.callUint(ctx, "tokenByIndex", "tokenId", map[string]any{"index": iouabi.Uint(index)})
}

func (i *IOweYou) CreatedBalanceOf(ctx context.Context, creator ethtypes.Address0xHex) (uint64, error) {
	return i.callUint(ctx, "createdBalanceOf", "balance", map[string]any{"creator": creator.String()})
}

func (i *IOweYou) ActiveCreatedBalanceOf(ctx context.Context, creator ethtypes.Address0xHex) (uint64, error) {
	return i.callUint(ctx, "activeCreatedBalanceOf", "balance", map[string]any{"creator": creator.String()})
}

func (i *IOweYou) TokenOfCreatorByIndex(ctx context.Context, creator ethtypes.Address0xHex, index uint64) (uint64, error) {
	return i.callUint(ctx, "tokenOfCreatorByIndex", "tokenId", map[string]any{"creator": creator.String(), "index": iouabi.Uint(index)})
}

func (i *IOweYou) AddrToString(ctx context.Context, addr ethtypes.Address0xHex) (string, error) {
	return i.callString(ctx, "addrToString", "name", map[string]any{"addr": addr.String()})
}

func (i *IOweYou) Name(ctx context.Context) (string, error) {
	return i.callString(ctx, "name", "name", nil)
}

func (i *IOweYou) Symbol(ctx context.Context) (string, error) {
	return i.callString(ctx, "symbol", "symbol", nil)
}

func (i *IOweYou) Owner(ctx context.Context) (*ethtypes.Address0xHex, error) {
	owner, err := i.callString(ctx, "owner", "owner", nil)
	if err != nil {
		return nil, err
	}
	return ethtypes.NewAddress(owner)
}

func (i *IOweYou) TokenURIAddress(ctx context.Context) (*ethtypes.Address0xHex, error) {
	addr, err := i.callString(ctx, "tokenURIAddress", "tokenURIAddress", nil)
	if err != nil {
		return nil, err
	}
	return ethtypes.NewAddress(addr)
}
