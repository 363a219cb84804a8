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
	"errors"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"
	"github.com/kaleido-io/ioweyou/internal/contracts"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/internal/rpcclient"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
)

// ExecutionRevertedError is returned to JSON/RPC callers with the standard code 3,
// and the Error(string) encoded reason as the error data
type ExecutionRevertedError struct {
	error
	Reason string
	Data   ethtypes.HexBytes0xPrefix
}

func (e *ExecutionRevertedError) RPCCode() rpcbackend.RPCCode {
	return rpcbackend.RPCCode(rpcclient.RPCCodeExecutionReverted)
}

func (e *ExecutionRevertedError) RPCErrorData() interface{} {
	return e.Data
}

func mapRevert(ctx context.Context, err error) error {
	var revert *iouabi.RevertError
	if errors.As(err, &revert) {
		return &ExecutionRevertedError{
			error:  i18n.NewError(ctx, msgs.MsgChainExecutionReverted, revert.Reason),
			Reason: revert.Reason,
			Data:   iouabi.EncodeRevert(ctx, revert.Reason),
		}
	}
	return err
}

var errSimulationComplete = errors.New("simulation complete")

// Call executes against the current state. Read-only functions run outside any
// database transaction, so upstream lookups they make hold no DB connection.
// Functions that change state are simulated in a transaction that is rolled back.
func (c *chain) Call(ctx context.Context, req *ioutypes.CallRequest) (ethtypes.HexBytes0xPrefix, error) {
	if req.To == nil {
		return ethtypes.HexBytes0xPrefix{}, nil
	}
	contract, err := c.store.Get(ctx, c.p.NOTX(), *req.To)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return ethtypes.HexBytes0xPrefix{}, nil
	}
	kind := iouabi.ContractKind(contract.Kind)
	fn, err := iouabi.FunctionForCallData(ctx, kind.ABI(), kind, req.CallData())
	if err != nil {
		return nil, err
	}

	ec := &contracts.ExecContext{ReadOnly: iouabi.IsReadOnly(fn)}
	if req.From != nil {
		ec.Sender = *req.From
	}
	if ec.ReadOnly {
		result, err := c.callAt(ctx, c.p.NOTX(), ec, req)
		return result, mapRevert(ctx, err)
	}

	var result ethtypes.HexBytes0xPrefix
	err = c.p.Transaction(ctx, func(ctx context.Context, dbTX persistence.DBTX) (err error) {
		if result, err = c.callAt(ctx, dbTX, ec, req); err != nil {
			return err
		}
		return errSimulationComplete
	})
	if err == errSimulationComplete {
		return result, nil
	}
	return nil, mapRevert(ctx, err)
}

func (c *chain) callAt(ctx context.Context, dbTX persistence.DBTX, ec *contracts.ExecContext, req *ioutypes.CallRequest) (ethtypes.HexBytes0xPrefix, error) {
	current, err := c.getBlockNumber(ctx, dbTX)
	if err != nil {
		return nil, err
	}
	ec.BlockNumber = current + 1
	return c.execute(ctx, dbTX, ec, *req.To, req.CallData())
}
