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

package ledger

import (
	"context"
	"math/big"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/contracts"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
)

type callArgs struct {
	Receiver        ethtypes.Address0xHex `json:"receiver"`
	Promise         string                `json:"promise"`
	TokenID         string                `json:"tokenId"`
	Owner           ethtypes.Address0xHex `json:"owner"`
	Creator         ethtypes.Address0xHex `json:"creator"`
	Index           string                `json:"index"`
	Addr            ethtypes.Address0xHex `json:"addr"`
	TokenURIAddress ethtypes.Address0xHex `json:"tokenURIAddress"`
}

func (a *callArgs) tokenID() uint64 {
	return parseUint(a.TokenID)
}

func (a *callArgs) index() uint64 {
	return parseUint(a.Index)
}

func parseUint(s string) uint64 {
	if s == "" {
		return 0
	}
	b, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return clampUint(nil)
	}
	return clampUint(b)
}

// Execute dispatches ABI encoded call data to the ledger, returning the ABI encoded outputs
func (l *ledger) Execute(ctx context.Context, dbTX persistence.DBTX, ec *contracts.ExecContext, fn *abi.Entry, callData []byte) (ethtypes.HexBytes0xPrefix, error) {
	var args callArgs
	if err := iouabi.DecodeCall(ctx, fn, callData, &args); err != nil {
		return nil, err
	}
	c := ec.Contract
	out := map[string]any{}
	var err error
	switch fn.Name {
	case "name":
		out = map[string]any{"name": TokenName}
	case "symbol":
		out = map[string]any{"symbol": TokenSymbol}
	case "owner":
		out = map[string]any{"owner": c.Owner.String()}
	case "reverseRecords":
		out = map[string]any{"reverseRecords": optAddrString(c.ReverseRegistry)}
	case "tokenURIAddress":
		out = map[string]any{"tokenURIAddress": optAddrString(c.TokenURIAddress)}
	case "create":
		var tokenID uint64
		tokenID, err = l.Create(ctx, dbTX, ec, args.Receiver, args.Promise)
		out = map[string]any{"tokenId": iouabi.Uint(tokenID)}
	case "complete":
		err = l.Complete(ctx, dbTX, ec, args.tokenID())
	case "setTokenURIAddress":
		err = l.SetTokenURIAddress(ctx, dbTX, ec, args.TokenURIAddress)
	case "getIOU":
		iou, e := l.GetIOU(ctx, dbTX, c, args.tokenID())
		if err = e; err == nil {
			out = map[string]any{
				"owed":              iou.Owed,
				"creator":           iou.Creator.String(),
				"receiver":          iou.Receiver.String(),
				"creatorCompleted":  iou.CreatorCompleted,
				"receiverCompleted": iou.ReceiverCompleted,
			}
		}
	case "tokenURI":
		var uri string
		uri, err = l.TokenURI(ctx, dbTX, c, args.tokenID())
		out = map[string]any{"uri": uri}
	case "ownerOf":
		owner, e := l.OwnerOf(ctx, dbTX, c, args.tokenID())
		if err = e; err == nil {
			out = map[string]any{"owner": owner.String()}
		}
	case "balanceOf":
		out, err = uintResult("balance")(l.BalanceOf(ctx, dbTX, c, args.Owner))
	case "tokenOfOwnerByIndex":
		out, err = uintResult("tokenId")(l.TokenOfOwnerByIndex(ctx, dbTX, c, args.Owner, args.index()))
	case "totalSupply":
		out, err = uintResult("supply")(l.TotalSupply(ctx, dbTX, c))
	case "tokenByIndex":
		out, err = uintResult("tokenId")(l.TokenByIndex(ctx, dbTX, c, args.index()))
	case "createdBalanceOf":
		out, err = uintResult("balance")(l.CreatedBalanceOf(ctx, dbTX, c, args.Creator))
	case "activeCreatedBalanceOf":
		out, err = uintResult("balance")(l.ActiveCreatedBalanceOf(ctx, dbTX, c, args.Creator))
	case "tokenOfCreatorByIndex":
		out, err = uintResult("tokenId")(l.TokenOfCreatorByIndex(ctx, dbTX, c, args.Creator, args.index()))
	case "addrToString":
		out = map[string]any{"name": l.AddrToString(ctx, c, args.Addr)}
	default:
		err = i18n.NewError(ctx, msgs.MsgContractUnknownFunction, fn.Name, iouabi.KindIOweYou)
	}
	if err != nil {
		return nil, err
	}
	return iouabi.EncodeOutputs(ctx, fn, out)
}

func uintResult(name string) func(uint64, error) (map[string]any, error) {
	return func(v uint64, err error) (map[string]any, error) {
		if err != nil {
			return nil, err
		}
		return map[string]any{name: iouabi.Uint(v)}, nil
	}
}

func optAddrString(a *ethtypes.Address0xHex) string {
	if a == nil {
		return zeroAddress()
	}
	return a.String()
}
