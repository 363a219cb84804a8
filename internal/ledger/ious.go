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
	"time"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/contracts"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
)

type dbIOU struct {
	Contract          string  `gorm:"column:contract;primaryKey"`
	TokenID           int64   `gorm:"column:token_id;primaryKey"`
	Owed              string  `gorm:"column:owed"`
	Creator           string  `gorm:"column:creator"`
	Receiver          string  `gorm:"column:receiver"`
	CreatorCompleted  bool    `gorm:"column:creator_completed"`
	ReceiverCompleted bool    `gorm:"column:receiver_completed"`
	Burned            bool    `gorm:"column:burned"`
	CreateTX          string  `gorm:"column:create_tx"`
	BurnTX            *string `gorm:"column:burn_tx"`
	Created           int64   `gorm:"column:created"`
}

func (dbIOU) TableName() string {
	return "ious"
}

type dbOwnerToken struct {
	Contract string `gorm:"column:contract;primaryKey"`
	Owner    string `gorm:"column:owner;primaryKey"`
	Idx      int64  `gorm:"column:idx;primaryKey"`
	TokenID  int64  `gorm:"column:token_id"`
}

func (dbOwnerToken) TableName() string {
	return "owner_tokens"
}

type dbCreatorToken struct {
	Contract string `gorm:"column:contract;primaryKey"`
	Creator  string `gorm:"column:creator;primaryKey"`
	Idx      int64  `gorm:"column:idx;primaryKey"`
	TokenID  int64  `gorm:"column:token_id"`
}

func (dbCreatorToken) TableName() string {
	return "creator_tokens"
}

func (dbi *dbIOU) toAPI() *ioutypes.IOU {
	created := fftypes.FFTime(time.Unix(0, dbi.Created).UTC())
	iou := &ioutypes.IOU{
		Contract:          *ethtypes.MustNewAddress(dbi.Contract),
		TokenID:           ethtypes.HexUint64(dbi.TokenID),
		Owed:              dbi.Owed,
		Creator:           *ethtypes.MustNewAddress(dbi.Creator),
		Receiver:          *ethtypes.MustNewAddress(dbi.Receiver),
		CreatorCompleted:  dbi.CreatorCompleted,
		ReceiverCompleted: dbi.ReceiverCompleted,
		Burned:            dbi.Burned,
		CreateTransaction: ethtypes.MustNewHexBytes0xPrefix(dbi.CreateTX),
		Created:           &created,
	}
	if dbi.BurnTX != nil {
		iou.BurnTransaction = ethtypes.MustNewHexBytes0xPrefix(*dbi.BurnTX)
	}
	return iou
}

func (l *ledger) Create(ctx context.Context, dbTX persistence.DBTX, ec *contracts.ExecContext, receiver ethtypes.Address0xHex, promise string) (uint64, error) {
	if receiver == ec.Sender {
		return 0, iouabi.Revert(ReasonSelfIOU)
	}
	if contracts.IsZero(&receiver) {
		return 0, iouabi.Revert(ReasonMintZero)
	}

	contract := ec.Contract.Address.String()
	tokenID, err := l.store.AllocateTokenID(ctx, dbTX, ec.Contract.Address)
	if err != nil {
		return 0, err
	}
	ec.Contract.NextTokenID = ethtypes.HexUint64(tokenID + 1)

	err = dbTX.DB().
		Table("ious").
		WithContext(ctx).
		Create(&dbIOU{
			Contract: contract,
			TokenID:  int64(tokenID),
			Owed:     promise,
			Creator:  ec.Sender.String(),
			Receiver: receiver.String(),
			CreateTX: ec.TxHash.String(),
			Created:  time.Now().UnixNano(),
		}).
		Error
	if err == nil {
		err = l.appendOwnerToken(ctx, dbTX, contract, receiver.String(), tokenID)
	}
	if err == nil {
		err = l.appendCreatorToken(ctx, dbTX, contract, ec.Sender.String(), tokenID)
	}
	if err == nil {
		err = ec.Emit(ctx, iouabi.TransferEvent, map[string]any{
			"from":    zeroAddress(),
			"to":      receiver.String(),
			"tokenId": iouabi.Uint(tokenID),
		})
	}
	if err == nil {
		err = ec.Emit(ctx, iouabi.IOUCreatedEvent, map[string]any{
			"tokenId":  iouabi.Uint(tokenID),
			"creator":  ec.Sender.String(),
			"receiver": receiver.String(),
			"owed":     promise,
		})
	}
	if err != nil {
		return 0, err
	}

	log.L(ctx).Infof("IOU %s:%d created by %s for %s", contract, tokenID, ec.Sender.String(), receiver.String())
	dbTX.AddPostCommit(func(ctx context.Context) { l.metrics.IOUCreated() })
	return tokenID, nil
}

func (l *ledger) Complete(ctx context.Context, dbTX persistence.DBTX, ec *contracts.ExecContext, tokenID uint64) error {
	contract := ec.Contract.Address.String()
	iou, err := l.getOpenIOU(ctx, dbTX, contract, tokenID)
	if err != nil {
		return err
	}
	if iou == nil {
		return iouabi.Revert(ReasonIOUNotFound)
	}

	sender := ec.Sender.String()
	var side string
	switch sender {
	case iou.Creator:
		side = "creator"
		iou.CreatorCompleted = true
	case iou.Receiver:
		side = "receiver"
		iou.ReceiverCompleted = true
	default:
		return iouabi.Revert(ReasonNotParty)
	}
	burned := iou.CreatorCompleted && iou.ReceiverCompleted

	updates := map[string]any{
		"creator_completed":  iou.CreatorCompleted,
		"receiver_completed": iou.ReceiverCompleted,
		"burned":             burned,
	}
	if burned {
		updates["burn_tx"] = ec.TxHash.String()
	}
	err = dbTX.DB().
		Table("ious").
		WithContext(ctx).
		Where("contract = ?", contract).
		Where("token_id = ?", int64(tokenID)).
		Updates(updates).
		Error
	if err == nil && burned {
		err = l.removeOwnerToken(ctx, dbTX, contract, iou.Receiver, tokenID)
		if err == nil {
			err = ec.Emit(ctx, iouabi.TransferEvent, map[string]any{
				"from":    iou.Receiver,
				"to":      zeroAddress(),
				"tokenId": iouabi.Uint(tokenID),
			})
		}
	}
	if err == nil {
		err = ec.Emit(ctx, iouabi.IOUCompletedEvent, map[string]any{
			"tokenId": iouabi.Uint(tokenID),
			"by":      sender,
			"burned":  burned,
		})
	}
	if err != nil {
		return err
	}

	log.L(ctx).Infof("IOU %s:%d completed by %s %s (burned=%t)", contract, tokenID, side, sender, burned)
	dbTX.AddPostCommit(func(ctx context.Context) {
		l.metrics.IOUCompleted(side)
		if burned {
			l.metrics.IOUBurned()
		}
	})
	return nil
}

func (l *ledger) SetTokenURIAddress(ctx context.Context, dbTX persistence.DBTX, ec *contracts.ExecContext, tokenURIAddress ethtypes.Address0xHex) error {
	if ec.Sender != ec.Contract.Owner {
		return iouabi.Revert(ReasonNotOwner)
	}
	err := l.store.SetTokenURIAddress(ctx, dbTX, ec.Contract.Address, &tokenURIAddress)
	if err == nil {
		err = ec.Emit(ctx, iouabi.TokenURIAddressSetEvent, map[string]any{
			"tokenURIAddress": tokenURIAddress.String(),
		})
	}
	if err != nil {
		return err
	}
	if contracts.IsZero(&tokenURIAddress) {
		ec.Contract.TokenURIAddress = nil
	} else {
		ec.Contract.TokenURIAddress = &tokenURIAddress
	}
	log.L(ctx).Infof("Token URI address of %s set to %s", ec.Contract.Address.String(), tokenURIAddress.String())
	return nil
}

func (l *ledger) getOpenIOU(ctx context.Context, dbTX persistence.DBTX, contract string, tokenID uint64) (*dbIOU, error) {
	var results []*dbIOU
	err := dbTX.DB().
		Table("ious").
		WithContext(ctx).
		Where("contract = ?", contract).
		Where("token_id = ?", int64(tokenID)).
		Where("burned = ?", false).
		Limit(1).
		Find(&results).
		Error
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

func (l *ledger) GetIOU(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, tokenID uint64) (*ioutypes.IOU, error) {
	iou, err := l.getOpenIOU(ctx, dbTX, c.Address.String(), tokenID)
	if err != nil {
		return nil, err
	}
	if iou == nil {
		return nil, iouabi.Revert(ReasonIOUNotFound)
	}
	return iou.toAPI(), nil
}

func (l *ledger) TokenURI(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, tokenID uint64) (string, error) {
	iou, err := l.getOpenIOU(ctx, dbTX, c.Address.String(), tokenID)
	if err != nil {
		return "", err
	}
	if iou == nil {
		return "", iouabi.Revert(ReasonURINonexistent)
	}
	return l.tokenURIs.ResolveTokenURI(ctx, dbTX, c.TokenURIAddress, c.Address, tokenID)
}

func (l *ledger) AddrToString(ctx context.Context, c *ioutypes.Contract, addr ethtypes.Address0xHex) string {
	if c.ReverseRegistry != nil && !contracts.IsZero(c.ReverseRegistry) {
		name, err := l.names.LookupName(ctx, *c.ReverseRegistry, addr)
		if err != nil {
			log.L(ctx).Warnf("Reverse lookup of %s in %s failed: %s", addr.String(), c.ReverseRegistry, err)
		} else if name != "" {
			return name
		}
	}
	return addr.String()
}

func (l *ledger) ListIOUs(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, filter *IOUFilter) ([]*ioutypes.IOU, error) {
	q := dbTX.DB().
		Table("ious").
		WithContext(ctx).
		Where("contract = ?", c.Address.String())
	if filter == nil {
		filter = &IOUFilter{}
	}
	if filter.Owner != nil {
		q = q.Where("receiver = ?", filter.Owner.String())
	}
	if filter.Creator != nil {
		q = q.Where("creator = ?", filter.Creator.String())
	}
	if !filter.IncludeBurned {
		q = q.Where("burned = ?", false)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var results []*dbIOU
	err := q.Order("token_id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	ious := make([]*ioutypes.IOU, len(results))
	for i, dbi := range results {
		ious[i] = dbi.toAPI()
	}
	return ious, nil
}

func zeroAddress() string {
	return (&ethtypes.Address0xHex{}).String()
}
