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
	"sync"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/chain/metrics"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/contracts"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/ledger"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/internal/router"
	"github.com/kaleido-io/ioweyou/internal/rpcserver"
	"github.com/kaleido-io/ioweyou/internal/tokenuri"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
)

// all nodes sharing a database mine through this named lock
const chainLockName = "chain"

// Publisher delivers notifications to eth_subscribe subscribers
type Publisher interface {
	EthPublish(eventType string, result interface{}, match func(params []byte) bool)
}

type Chain interface {
	RPCModules() []*rpcserver.RPCModule
	ChainID() uint64
	BlockNumber(ctx context.Context) (uint64, error)
	GetTransactionCount(ctx context.Context, addr ethtypes.Address0xHex) (uint64, error)
	SendRawTransaction(ctx context.Context, raw ethtypes.HexBytes0xPrefix) (ethtypes.HexBytes0xPrefix, error)
	GetTransactionReceipt(ctx context.Context, hash ethtypes.HexBytes0xPrefix) (*ioutypes.TransactionReceipt, error)
	Call(ctx context.Context, req *ioutypes.CallRequest) (ethtypes.HexBytes0xPrefix, error)
	GetCode(ctx context.Context, addr ethtypes.Address0xHex) (ethtypes.HexBytes0xPrefix, error)
	NodeInfo(ctx context.Context) (*ioutypes.NodeInfo, error)
	TokenMetadata(ctx context.Context, addr ethtypes.Address0xHex, tokenID uint64) (*ioutypes.TokenMetadata, error)
	RegisterREST(r router.Router)
}

type chain struct {
	chainID   uint64
	nodeID    string
	p         persistence.Persistence
	store     contracts.Store
	ledger    ledger.Ledger
	engines   map[iouabi.ContractKind]contracts.Engine
	publisher Publisher
	metrics   metrics.ChainMetrics
	// one transaction at a time from nonce check to receipt commit
	txLock sync.Mutex
}

func NewChain(conf *iouconf.ChainConfig, nodeID string, p persistence.Persistence, store contracts.Store, l ledger.Ledger, engines []contracts.Engine, publisher Publisher, metrics metrics.ChainMetrics) Chain {
	c := &chain{
		chainID:   confutil.Uint64(conf.ChainID, *iouconf.ChainDefaults.ChainID),
		nodeID:    nodeID,
		p:         p,
		store:     store,
		ledger:    l,
		engines:   map[iouabi.ContractKind]contracts.Engine{l.Kind(): l},
		publisher: publisher,
		metrics:   metrics,
	}
	for _, e := range engines {
		c.engines[e.Kind()] = e
	}
	return c
}

func (c *chain) ChainID() uint64 {
	return c.chainID
}

type deployArgs struct {
	ReverseRecords *ethtypes.Address0xHex `json:"reverseRecords"`
	Template       *string                `json:"template"`
}

type pendingTX struct {
	sender      ethtypes.Address0xHex
	tx          *ethsigner.Transaction
	hash        ethtypes.HexBytes0xPrefix
	raw         ethtypes.HexBytes0xPrefix
	nonce       uint64
	blockNumber uint64
}

func (c *chain) decodeRawTransaction(ctx context.Context, raw ethtypes.HexBytes0xPrefix) (*pendingTX, error) {
	sender, decoded, err := ethsigner.RecoverRawTransaction(ctx, raw, int64(c.chainID))
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgChainInvalidRawTx)
	}
	tx := decoded.Transaction
	if tx.Value != nil && tx.Value.BigInt().Sign() != 0 {
		return nil, i18n.NewError(ctx, msgs.MsgChainValueNotSupported)
	}
	ptx := &pendingTX{
		sender: *sender,
		tx:     tx,
		hash:   iouabi.Keccak256(raw),
		raw:    raw,
	}
	if tx.Nonce != nil {
		ptx.nonce = tx.Nonce.BigInt().Uint64()
	}
	return ptx, nil
}

// prepare rejects duplicate and out of order transactions, then assigns the next block
func (c *chain) prepare(ctx context.Context, dbTX persistence.DBTX, ptx *pendingTX) (*ioutypes.TransactionReceipt, error) {
	existing, err := c.getTransaction(ctx, dbTX, ptx.hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, i18n.NewError(ctx, msgs.MsgChainAlreadyKnown, ptx.hash)
	}
	expected, err := c.getNonce(ctx, dbTX, ptx.sender)
	if err != nil {
		return nil, err
	}
	if ptx.nonce < expected {
		return nil, i18n.NewError(ctx, msgs.MsgChainNonceTooLow, ptx.sender.String(), ptx.nonce, expected)
	}
	if ptx.nonce > expected {
		return nil, i18n.NewError(ctx, msgs.MsgChainNonceTooHigh, ptx.sender.String(), ptx.nonce, expected)
	}
	current, err := c.getBlockNumber(ctx, dbTX)
	if err != nil {
		return nil, err
	}
	ptx.blockNumber = current + 1
	if err := c.setNonce(ctx, dbTX, ptx.sender, ptx.nonce+1); err != nil {
		return nil, err
	}
	return &ioutypes.TransactionReceipt{
		TransactionHash: ptx.hash,
		BlockHash:       blockHash(ptx.blockNumber),
		BlockNumber:     ethtypes.HexUint64(ptx.blockNumber),
		From:            ptx.sender,
		To:              ptx.tx.To,
		Nonce:           ethtypes.HexUint64(ptx.nonce),
		Status:          ioutypes.ReceiptStatusSuccess,
		Logs:            []*ioutypes.Log{},
	}, nil
}

func (c *chain) SendRawTransaction(ctx context.Context, raw ethtypes.HexBytes0xPrefix) (ethtypes.HexBytes0xPrefix, error) {
	ptx, err := c.decodeRawTransaction(ctx, raw)
	if err != nil {
		return nil, err
	}
	ctx = log.WithLogField(ctx, "tx", ptx.hash.String())

	receipt, err := c.mine(ctx, ptx, raw)
	if err != nil {
		log.L(ctx).Errorf("Transaction from %s rejected: %s", ptx.sender.String(), err)
		return nil, err
	}

	log.L(ctx).Infof("Transaction from %s mined in block %d (status=%d)", ptx.sender.String(), receipt.BlockNumber, receipt.Status)
	c.metrics.TransactionProcessed(receipt.Status == ioutypes.ReceiptStatusSuccess)
	c.publishReceipt(receipt)
	return ptx.hash, nil
}

// mine executes and records one transaction. Transactions are serialized within
// the node by txLock, and across nodes sharing a database by the chain named lock.
func (c *chain) mine(ctx context.Context, ptx *pendingTX, raw ethtypes.HexBytes0xPrefix) (receipt *ioutypes.TransactionReceipt, err error) {
	c.txLock.Lock()
	defer c.txLock.Unlock()

	err = c.p.Transaction(ctx, func(ctx context.Context, dbTX persistence.DBTX) (err error) {
		if err = c.p.TakeNamedLock(ctx, dbTX, chainLockName); err != nil {
			return err
		}
		if receipt, err = c.prepare(ctx, dbTX, ptx); err != nil {
			return err
		}
		ec := &contracts.ExecContext{
			Sender:      ptx.sender,
			TxHash:      ptx.hash,
			BlockNumber: ptx.blockNumber,
		}
		if ptx.tx.To == nil {
			receipt.ContractAddress, err = c.deploy(ctx, dbTX, ec, ptx.nonce, ptx.tx.Data)
		} else {
			_, err = c.execute(ctx, dbTX, ec, *ptx.tx.To, ptx.tx.Data)
		}
		if err != nil {
			return err
		}
		if len(ec.Logs) > 0 {
			receipt.Logs = ec.Logs
		}
		return c.insertTransaction(ctx, dbTX, receipt, raw)
	})

	// a revert rolls back execution, but the failed receipt is still mined and the nonce spent
	var revert *iouabi.RevertError
	if errors.As(err, &revert) {
		log.L(ctx).Infof("Transaction from %s reverted: %s", ptx.sender.String(), revert.Reason)
		err = c.p.Transaction(ctx, func(ctx context.Context, dbTX persistence.DBTX) (err error) {
			if err = c.p.TakeNamedLock(ctx, dbTX, chainLockName); err != nil {
				return err
			}
			if receipt, err = c.prepare(ctx, dbTX, ptx); err != nil {
				return err
			}
			receipt.Status = ioutypes.ReceiptStatusFailed
			receipt.RevertReason = iouabi.EncodeRevert(ctx, revert.Reason)
			return c.insertTransaction(ctx, dbTX, receipt, raw)
		})
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *chain) deploy(ctx context.Context, dbTX persistence.DBTX, ec *contracts.ExecContext, nonce uint64, data []byte) (*ethtypes.Address0xHex, error) {
	var args deployArgs
	kind, err := iouabi.ParseDeployData(ctx, data, &args)
	if err != nil {
		return nil, err
	}
	contract := &ioutypes.Contract{
		Address:           *iouabi.CreateAddress(&ec.Sender, nonce),
		Kind:              string(kind),
		Deployer:          ec.Sender,
		Owner:             ec.Sender,
		DeployTransaction: ec.TxHash,
		ReverseRegistry:   args.ReverseRecords,
		NextTokenID:       1,
	}
	if kind == iouabi.KindTemplateTokenURI {
		if args.Template != nil {
			contract.Template = *args.Template
		}
		if _, err := tokenuri.ParseTemplate(ctx, contract.Address.String(), contract.Template); err != nil {
			return nil, err
		}
	}
	if err := c.store.Insert(ctx, dbTX, contract); err != nil {
		return nil, err
	}
	log.L(ctx).Infof("Deployed %s contract to %s", kind, contract.Address.String())
	return &contract.Address, nil
}

func (c *chain) execute(ctx context.Context, dbTX persistence.DBTX, ec *contracts.ExecContext, to ethtypes.Address0xHex, data []byte) (ethtypes.HexBytes0xPrefix, error) {
	contract, err := c.store.Get(ctx, dbTX, to)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, i18n.NewError(ctx, msgs.MsgContractNotFound, to.String())
	}
	kind := iouabi.ContractKind(contract.Kind)
	engine := c.engines[kind]
	if engine == nil {
		return nil, i18n.NewError(ctx, msgs.MsgContractUnknownKind, contract.Kind)
	}
	fn, err := iouabi.FunctionForCallData(ctx, kind.ABI(), kind, data)
	if err != nil {
		return nil, err
	}
	if ec.ReadOnly && !iouabi.IsReadOnly(fn) {
		return nil, i18n.NewError(ctx, msgs.MsgChainStateChangeInView, fn.Name)
	}
	ec.Contract = contract
	return engine.Execute(ctx, dbTX, ec, fn, data)
}

func (c *chain) GetCode(ctx context.Context, addr ethtypes.Address0xHex) (ethtypes.HexBytes0xPrefix, error) {
	contract, err := c.store.Get(ctx, c.p.NOTX(), addr)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return ethtypes.HexBytes0xPrefix{}, nil
	}
	return iouabi.ContractKind(contract.Kind).Code(), nil
}

func (c *chain) NodeInfo(ctx context.Context) (*ioutypes.NodeInfo, error) {
	blockNumber, err := c.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	count, err := c.store.Count(ctx, c.p.NOTX())
	if err != nil {
		return nil, err
	}
	return &ioutypes.NodeInfo{
		NodeID:      c.nodeID,
		ChainID:     ethtypes.HexUint64(c.chainID),
		BlockNumber: ethtypes.HexUint64(blockNumber),
		Contracts:   count,
	}, nil
}
