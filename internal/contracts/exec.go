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

package contracts

import (
	"context"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
)

// ExecContext is the environment of a single call against a contract.
// Logs emitted during a call that reverts are discarded with the DB transaction.
type ExecContext struct {
	Contract    *ioutypes.Contract
	Sender      ethtypes.Address0xHex
	TxHash      ethtypes.HexBytes0xPrefix
	BlockNumber uint64
	Logs        []*ioutypes.Log
	// set when executing outside a transaction, where only view functions are allowed
	ReadOnly bool
}

func (ec *ExecContext) Emit(ctx context.Context, event *abi.Entry, values map[string]any) error {
	topics, data, err := iouabi.EncodeEvent(ctx, event, values)
	if err != nil {
		return err
	}
	ec.Logs = append(ec.Logs, &ioutypes.Log{
		Address:         ec.Contract.Address,
		Topics:          topics,
		Data:            data,
		BlockNumber:     ethtypes.HexUint64(ec.BlockNumber),
		TransactionHash: ec.TxHash,
		LogIndex:        ethtypes.HexUint64(len(ec.Logs)),
	})
	return nil
}
