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
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
	"gorm.io/gorm/clause"
)

type dbTransaction struct {
	Hash            string  `gorm:"column:hash;primaryKey"`
	From            string  `gorm:"column:from"`
	To              *string `gorm:"column:to"`
	Nonce           int64   `gorm:"column:nonce"`
	BlockNumber     int64   `gorm:"column:block_number"`
	Status          int     `gorm:"column:status"`
	ContractAddress *string `gorm:"column:contract_address"`
	RevertData      []byte  `gorm:"column:revert_data"`
	Events          *string `gorm:"column:events"`
	Raw             []byte  `gorm:"column:raw"`
	Created         int64   `gorm:"column:created"`
}

func (dbTransaction) TableName() string {
	return "transactions"
}

type dbAccount struct {
	Address string `gorm:"column:address;primaryKey"`
	Nonce   int64  `gorm:"column:nonce"`
}

func (dbAccount) TableName() string {
	return "accounts"
}

// blockHash is a stable identifier for each single-transaction block
func blockHash(blockNumber uint64) ethtypes.HexBytes0xPrefix {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, blockNumber)
	return iouabi.Keccak256(b)
}

func (dbt *dbTransaction) toReceipt(ctx context.Context) *ioutypes.TransactionReceipt {
	r := &ioutypes.TransactionReceipt{
		TransactionHash: ethtypes.MustNewHexBytes0xPrefix(dbt.Hash),
		BlockHash:       blockHash(uint64(dbt.BlockNumber)),
		BlockNumber:     ethtypes.HexUint64(dbt.BlockNumber),
		From:            *ethtypes.MustNewAddress(dbt.From),
		Nonce:           ethtypes.HexUint64(dbt.Nonce),
		Status:          ethtypes.HexUint64(dbt.Status),
		RevertReason:    dbt.RevertData,
		Logs:            []*ioutypes.Log{},
	}
	if dbt.To != nil {
		r.To = ethtypes.MustNewAddress(*dbt.To)
	}
	if dbt.ContractAddress != nil {
		r.ContractAddress = ethtypes.MustNewAddress(*dbt.ContractAddress)
	}
	if dbt.Events != nil {
		if err := json.Unmarshal([]byte(*dbt.Events), &r.Logs); err != nil {
			log.L(ctx).Errorf("Invalid events stored for transaction %s: %s", dbt.Hash, err)
		}
	}
	return r
}

func (c *chain) getTransaction(ctx context.Context, dbTX persistence.DBTX, hash ethtypes.HexBytes0xPrefix) (*dbTransaction, error) {
	var results []*dbTransaction
	err := dbTX.DB().
		Table("transactions").
		WithContext(ctx).
		Where("hash = ?", hash.String()).
		Limit(1).
		Find(&results).
		Error
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

func (c *chain) insertTransaction(ctx context.Context, dbTX persistence.DBTX, receipt *ioutypes.TransactionReceipt, raw []byte) error {
	dbt := &dbTransaction{
		Hash:        receipt.TransactionHash.String(),
		From:        receipt.From.String(),
		Nonce:       int64(receipt.Nonce),
		BlockNumber: int64(receipt.BlockNumber),
		Status:      int(receipt.Status),
		RevertData:  receipt.RevertReason,
		Raw:         raw,
		Created:     time.Now().UnixNano(),
	}
	if receipt.To != nil {
		to := receipt.To.String()
		dbt.To = &to
	}
	if receipt.ContractAddress != nil {
		ca := receipt.ContractAddress.String()
		dbt.ContractAddress = &ca
	}
	if len(receipt.Logs) > 0 {
		events, err := json.Marshal(receipt.Logs)
		if err != nil {
			return err
		}
		eventsStr := string(events)
		dbt.Events = &eventsStr
	}
	return dbTX.DB().
		Table("transactions").
		WithContext(ctx).
		Create(dbt).
		Error
}

func (c *chain) getNonce(ctx context.Context, dbTX persistence.DBTX, addr ethtypes.Address0xHex) (uint64, error) {
	var results []*dbAccount
	err := dbTX.DB().
		Table("accounts").
		WithContext(ctx).
		Where("address = ?", addr.String()).
		Limit(1).
		Find(&results).
		Error
	if err != nil || len(results) == 0 {
		return 0, err
	}
	return uint64(results[0].Nonce), nil
}

func (c *chain) setNonce(ctx context.Context, dbTX persistence.DBTX, addr ethtypes.Address0xHex, nonce uint64) error {
	return dbTX.DB().
		Table("accounts").
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"nonce"}),
		}).
		Create(&dbAccount{
			Address: addr.String(),
			Nonce:   int64(nonce),
		}).
		Error
}

func (c *chain) getBlockNumber(ctx context.Context, dbTX persistence.DBTX) (uint64, error) {
	var blockNumber int64
	err := dbTX.DB().
		Table("transactions").
		WithContext(ctx).
		Select("COALESCE(MAX(block_number), 0)").
		Scan(&blockNumber).
		Error
	return uint64(blockNumber), err
}

func (c *chain) GetTransactionCount(ctx context.Context, addr ethtypes.Address0xHex) (uint64, error) {
	return c.getNonce(ctx, c.p.NOTX(), addr)
}

func (c *chain) BlockNumber(ctx context.Context) (uint64, error) {
	return c.getBlockNumber(ctx, c.p.NOTX())
}

func (c *chain) GetTransactionReceipt(ctx context.Context, hash ethtypes.HexBytes0xPrefix) (*ioutypes.TransactionReceipt, error) {
	dbt, err := c.getTransaction(ctx, c.p.NOTX(), hash)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgChainReceiptLoadFailed, hash)
	}
	if dbt == nil {
		return nil, nil
	}
	return dbt.toReceipt(ctx), nil
}
