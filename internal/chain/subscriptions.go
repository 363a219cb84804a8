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
	"bytes"
	"encoding/json"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
)

type blockHeader struct {
	Number     ethtypes.HexUint64        `json:"number"`
	Hash       ethtypes.HexBytes0xPrefix `json:"hash"`
	ParentHash ethtypes.HexBytes0xPrefix `json:"parentHash"`
	Timestamp  ethtypes.HexUint64        `json:"timestamp"`
}

// logFilter is the eth_subscribe("logs") filter. Address and each topic position
// may be a single value or a list of alternatives.
type logFilter struct {
	Address json.RawMessage   `json:"address"`
	Topics  []json.RawMessage `json:"topics"`
}

func parseAlternatives(raw json.RawMessage) ([]ethtypes.HexBytes0xPrefix, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true
	}
	var single ethtypes.HexBytes0xPrefix
	if err := json.Unmarshal(raw, &single); err == nil {
		return []ethtypes.HexBytes0xPrefix{single}, true
	}
	var list []ethtypes.HexBytes0xPrefix
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, true
	}
	return nil, false
}

func matchAny(value []byte, alternatives []ethtypes.HexBytes0xPrefix) bool {
	if alternatives == nil {
		return true
	}
	for _, a := range alternatives {
		if bytes.Equal(value, a) {
			return true
		}
	}
	return false
}

func logMatcher(l *ioutypes.Log) func(params []byte) bool {
	return func(params []byte) bool {
		if len(params) == 0 {
			return true
		}
		var filter logFilter
		if err := json.Unmarshal(params, &filter); err != nil {
			return false
		}
		addresses, ok := parseAlternatives(filter.Address)
		if !ok || !matchAny(l.Address[:], addresses) {
			return false
		}
		for i, rawTopic := range filter.Topics {
			alternatives, ok := parseAlternatives(rawTopic)
			if !ok {
				return false
			}
			if alternatives == nil {
				continue
			}
			if i >= len(l.Topics) || !matchAny(l.Topics[i], alternatives) {
				return false
			}
		}
		return true
	}
}

func (c *chain) publishReceipt(receipt *ioutypes.TransactionReceipt) {
	if c.publisher == nil {
		return
	}
	c.publisher.EthPublish("newHeads", &blockHeader{
		Number:     receipt.BlockNumber,
		Hash:       receipt.BlockHash,
		ParentHash: blockHash(uint64(receipt.BlockNumber) - 1),
		Timestamp:  ethtypes.HexUint64(time.Now().Unix()),
	}, nil)
	for _, l := range receipt.Logs {
		c.publisher.EthPublish("logs", l, logMatcher(l))
	}
}
