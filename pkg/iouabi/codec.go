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
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/msgs"
)

// Uint formats an integer for ABI JSON encoding
func Uint(v uint64) string {
	return new(big.Int).SetUint64(v).String()
}

// Serializer produces the JSON form of decoded ABI data used throughout
func Serializer() *abi.Serializer {
	return abi.NewSerializer().
		SetFormattingMode(abi.FormatAsObjects).
		SetIntSerializer(abi.Base10StringIntSerializer).
		SetFloatSerializer(abi.Base10StringFloatSerializer).
		SetByteSerializer(abi.HexByteSerializer0xPrefix)
}

// EncodeParams ABI encodes a map/struct of named values against the parameters
func EncodeParams(ctx context.Context, params abi.ParameterArray, values any) ([]byte, error) {
	jsonValues, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return params.EncodeABIDataJSONCtx(ctx, jsonValues)
}

// DecodeParams decodes ABI data against the parameters, and unmarshals the JSON form into the target
func DecodeParams(ctx context.Context, params abi.ParameterArray, data []byte, into any) error {
	cv, err := params.DecodeABIDataCtx(ctx, data, 0)
	if err == nil {
		err = unmarshalComponent(ctx, cv, into)
	}
	return err
}

// EncodeCall builds the call data (selector + encoded inputs) for the function
func EncodeCall(ctx context.Context, fn *abi.Entry, values any) (ethtypes.HexBytes0xPrefix, error) {
	jsonValues, err := json.Marshal(values)
	if err == nil {
		var callData []byte
		callData, err = fn.EncodeCallDataJSONCtx(ctx, jsonValues)
		if err == nil {
			return callData, nil
		}
	}
	return nil, i18n.WrapError(ctx, err, msgs.MsgContractEncodeFailed, "inputs", fn.Name)
}

// FunctionForCallData returns the function on the ABI matching the selector at the front of the call data
func FunctionForCallData(ctx context.Context, a abi.ABI, kind ContractKind, callData []byte) (*abi.Entry, error) {
	if len(callData) < 4 {
		return nil, i18n.NewError(ctx, msgs.MsgContractUnknownFunction, hex.EncodeToString(callData), kind)
	}
	for _, e := range a {
		if e.Type == abi.Function && string(e.FunctionSelectorBytes()) == string(callData[0:4]) {
			return e, nil
		}
	}
	return nil, i18n.NewError(ctx, msgs.MsgContractUnknownFunction, hex.EncodeToString(callData[0:4]), kind)
}

// IsReadOnly is true for view and pure functions
func IsReadOnly(fn *abi.Entry) bool {
	return fn.StateMutability == "view" || fn.StateMutability == "pure"
}

// DecodeCall decodes the inputs of a call into the target
func DecodeCall(ctx context.Context, fn *abi.Entry, callData []byte, into any) error {
	cv, err := fn.DecodeCallDataCtx(ctx, callData)
	if err == nil {
		err = unmarshalComponent(ctx, cv, into)
	}
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgContractCallDataInvalid, fn.Name)
	}
	return nil
}

// EncodeOutputs encodes the return data of a function
func EncodeOutputs(ctx context.Context, fn *abi.Entry, values any) (ethtypes.HexBytes0xPrefix, error) {
	data, err := EncodeParams(ctx, fn.Outputs, values)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgContractEncodeFailed, "outputs", fn.Name)
	}
	return data, nil
}

// DecodeOutputs decodes the return data of a function into the target
func DecodeOutputs(ctx context.Context, fn *abi.Entry, data []byte, into any) error {
	return DecodeParams(ctx, fn.Outputs, data, into)
}

func unmarshalComponent(ctx context.Context, cv *abi.ComponentValue, into any) error {
	jsonData, err := Serializer().SerializeJSONCtx(ctx, cv)
	if err == nil {
		err = json.Unmarshal(jsonData, into)
	}
	return err
}
