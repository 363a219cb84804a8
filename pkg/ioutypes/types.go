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

package ioutypes

import (
	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
)

// IOU is the JSON view of a token recording a promise owed by its creator to its receiver
type IOU struct {
	Contract          ethtypes.Address0xHex     `json:"contract"`
	TokenID           ethtypes.HexUint64        `json:"tokenId"`
	Owed              string                    `json:"owed"`
	Creator           ethtypes.Address0xHex     `json:"creator"`
	Receiver          ethtypes.Address0xHex     `json:"receiver"`
	CreatorCompleted  bool                      `json:"creatorCompleted"`
	ReceiverCompleted bool                      `json:"receiverCompleted"`
	Burned            bool                      `json:"burned"`
	CreateTransaction ethtypes.HexBytes0xPrefix `json:"createTransaction"`
	BurnTransaction   ethtypes.HexBytes0xPrefix `json:"burnTransaction,omitempty"`
	Created           *fftypes.FFTime           `json:"created"`
}

type Contract struct {
	Address           ethtypes.Address0xHex     `json:"address"`
	Kind              string                    `json:"kind"`
	Deployer          ethtypes.Address0xHex     `json:"deployer"`
	Owner             ethtypes.Address0xHex     `json:"owner"`
	DeployTransaction ethtypes.HexBytes0xPrefix `json:"deployTransaction"`
	ReverseRegistry   *ethtypes.Address0xHex    `json:"reverseRegistry,omitempty"`
	TokenURIAddress   *ethtypes.Address0xHex    `json:"tokenURIAddress,omitempty"`
	Template          string                    `json:"template,omitempty"`
	NextTokenID       ethtypes.HexUint64        `json:"nextTokenId"`
	Created           *fftypes.FFTime           `json:"created"`
}

type Log struct {
	Address          ethtypes.Address0xHex       `json:"address"`
	Topics           []ethtypes.HexBytes0xPrefix `json:"topics"`
	Data             ethtypes.HexBytes0xPrefix   `json:"data"`
	BlockNumber      ethtypes.HexUint64          `json:"blockNumber"`
	TransactionHash  ethtypes.HexBytes0xPrefix   `json:"transactionHash"`
	TransactionIndex ethtypes.HexUint64          `json:"transactionIndex"`
	LogIndex         ethtypes.HexUint64          `json:"logIndex"`
}

// TransactionReceipt follows the shape of eth_getTransactionReceipt.
// Each transaction is mined in its own block, so the transaction index is always zero.
type TransactionReceipt struct {
	TransactionHash  ethtypes.HexBytes0xPrefix `json:"transactionHash"`
	TransactionIndex ethtypes.HexUint64        `json:"transactionIndex"`
	BlockHash        ethtypes.HexBytes0xPrefix `json:"blockHash"`
	BlockNumber      ethtypes.HexUint64        `json:"blockNumber"`
	From             ethtypes.Address0xHex     `json:"from"`
	To               *ethtypes.Address0xHex    `json:"to"`
	Nonce            ethtypes.HexUint64        `json:"nonce"`
	ContractAddress  *ethtypes.Address0xHex    `json:"contractAddress"`
	Status           ethtypes.HexUint64        `json:"status"`
	RevertReason     ethtypes.HexBytes0xPrefix `json:"revertReason,omitempty"`
	Logs             []*Log                    `json:"logs"`
}

const (
	ReceiptStatusFailed  = 0
	ReceiptStatusSuccess = 1
)

// CallRequest is the transaction object passed to eth_call
type CallRequest struct {
	From  *ethtypes.Address0xHex    `json:"from,omitempty"`
	To    *ethtypes.Address0xHex    `json:"to"`
	Data  ethtypes.HexBytes0xPrefix `json:"data,omitempty"`
	Input ethtypes.HexBytes0xPrefix `json:"input,omitempty"`
}

// CallData returns data, falling back to input (the newer name for the same field)
func (cr *CallRequest) CallData() ethtypes.HexBytes0xPrefix {
	if len(cr.Data) > 0 {
		return cr.Data
	}
	return cr.Input
}

type NodeInfo struct {
	NodeID      string             `json:"nodeId"`
	ChainID     ethtypes.HexUint64 `json:"chainId"`
	BlockNumber ethtypes.HexUint64 `json:"blockNumber"`
	Contracts   int64              `json:"contracts"`
}

// TokenMetadata is the ERC-721 metadata JSON served for an open IOU
type TokenMetadata struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	ExternalURL string           `json:"external_url,omitempty"`
	Attributes  []TokenAttribute `json:"attributes"`
}

type TokenAttribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}
