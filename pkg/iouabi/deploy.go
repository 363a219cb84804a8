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

package iouabi

import (
	"bytes"
	"context"
	"math/big"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/rlp"
	"github.com/kaleido-io/ioweyou/internal/msgs"
)

// DeployData builds the data of a deployment transaction: the kind code followed
// by the ABI encoded constructor arguments
func DeployData(ctx context.Context, kind ContractKind, args any) (ethtypes.HexBytes0xPrefix, error) {
	constructor := kind.ABI().Constructor()
	if constructor == nil {
		return nil, i18n.NewError(ctx, msgs.MsgContractUnknownKind, kind)
	}
	encodedArgs, err := EncodeParams(ctx, constructor.Inputs, args)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgContractEncodeFailed, "constructor", kind)
	}
	return append(kind.Code(), encodedArgs...), nil
}

// ParseDeployData resolves the kind of a deployment, and decodes its constructor arguments into the target
func ParseDeployData(ctx context.Context, data []byte, into any) (ContractKind, error) {
	if len(data) < 32 {
		return "", i18n.NewError(ctx, msgs.MsgContractDeployDataInvalid)
	}
	code := ethtypes.HexBytes0xPrefix(data[0:32])
	for _, kind := range contractKinds {
		if bytes.Equal(kind.Code(), code) {
			err := DecodeParams(ctx, kind.ABI().Constructor().Inputs, data[32:], into)
			if err != nil {
				return "", i18n.WrapError(ctx, err, msgs.MsgContractCallDataInvalid, "constructor")
			}
			return kind, nil
		}
	}
	return "", i18n.NewError(ctx, msgs.MsgContractUnknownKind, code)
}

// CreateAddress is the address of a contract deployed by the sender at the given
// nonce: the last 20 bytes of keccak256(rlp([sender, nonce]))
func CreateAddress(sender *ethtypes.Address0xHex, nonce uint64) *ethtypes.Address0xHex {
	encoded := rlp.List{
		rlp.WrapAddress(sender),
		rlp.WrapInt(new(big.Int).SetUint64(nonce)),
	}.Encode()
	var addr ethtypes.Address0xHex
	copy(addr[:], keccak256(encoded)[12:])
	return &addr
}
