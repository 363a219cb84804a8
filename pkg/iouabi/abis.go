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

// Package iouabi holds the ABIs of the IOweYou contracts, and the codec used by
// both the node and clients to build and interpret calls, deployments, events and reverts.
package iouabi

import (
	_ "embed"
	"encoding/json"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"golang.org/x/crypto/sha3"
)

//go:embed abis/IOweYou.json
var ioweyouJSON []byte

//go:embed abis/TemplateTokenURI.json
var templateTokenURIJSON []byte

//go:embed abis/ReverseRecords.json
var reverseRecordsJSON []byte

var (
	IOweYouABI          = mustParseABI(ioweyouJSON)
	TemplateTokenURIABI = mustParseABI(templateTokenURIJSON)
	// ReverseRecordsABI is the lookup function of the ENS ReverseRecords contract
	ReverseRecordsABI = mustParseABI(reverseRecordsJSON)

	// ErrorABI is the Error(string) revert encoding emitted by require() failures
	ErrorABI = &abi.Entry{
		Type: abi.Error,
		Name: "Error",
		Inputs: abi.ParameterArray{
			{Name: "reason", Type: "string"},
		},
	}
	errorSelector = ErrorABI.FunctionSelectorBytes()
)

// Names of contract kinds that can be deployed to the node
type ContractKind string

const (
	KindIOweYou          ContractKind = "IOweYou"
	KindTemplateTokenURI ContractKind = "TemplateTokenURI"
)

var contractKinds = []ContractKind{KindIOweYou, KindTemplateTokenURI}

// Code is the 32 byte identifier for the kind, that is carried at the front of
// deployment data in place of EVM bytecode, and returned by eth_getCode
func (k ContractKind) Code() ethtypes.HexBytes0xPrefix {
	return keccak256([]byte(k))
}

func (k ContractKind) ABI() abi.ABI {
	switch k {
	case KindIOweYou:
		return IOweYouABI
	case KindTemplateTokenURI:
		return TemplateTokenURIABI
	default:
		return nil
	}
}

func mustParseABI(abiJSON []byte) abi.ABI {
	var a abi.ABI
	if err := json.Unmarshal(abiJSON, &a); err != nil {
		panic(err)
	}
	return a
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Keccak256 is the Ethereum hash, used for transaction hashes
func Keccak256(data []byte) ethtypes.HexBytes0xPrefix {
	return keccak256(data)
}
