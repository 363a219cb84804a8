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

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/contracts"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
)

func (l *ledger) countOwnerTokens(ctx context.Context, dbTX persistence.DBTX, contract, owner string) (count int64, err error) {
	q := dbTX.DB().
		Table("owner_tokens").
		WithContext(ctx).
		Where("contract = ?", contract)
	if owner != "" {
		q = q.Where("owner = ?", owner)
	}
	err = q.Count(&count).Error
	return count, err
}

func (l *ledger) countCreatorTokens(ctx context.Context, dbTX persistence.DBTX, contract, creator string) (count int64, err error) {
	err = dbTX.DB().
		Table("creator_tokens").
		WithContext(ctx).
		Where("contract = ?", contract).
		Where("creator = ?", creator).
		Count(&count).
		Error
	return count, err
}

func (l *ledger) appendOwnerToken(ctx context.Context, dbTX persistence.DBTX, contract, owner string, tokenID uint64) error {
	idx, err := l.countOwnerTokens(ctx, dbTX, contract, owner)
	if err != nil {
		return err
	}
	return dbTX.DB().
		Table("owner_tokens").
		WithContext(ctx).
		Create(&dbOwnerToken{
			Contract: contract,
			Owner:    owner,
			Idx:      idx,
			TokenID:  int64(tokenID),
		}).
		Error
}

func (l *ledger) appendCreatorToken(ctx context.Context, dbTX persistence.DBTX, contract, creator string, tokenID uint64) error {
	idx, err := l.countCreatorTokens(ctx, dbTX, contract, creator)
	if err != nil {
		return err
	}
	return dbTX.DB().
		Table("creator_tokens").
		WithContext(ctx).
		Create(&dbCreatorToken{
			Contract: contract,
			Creator:  creator,
			Idx:      idx,
			TokenID:  int64(tokenID),
		}).
		Error
}

// removeOwnerToken moves the owner's last token into the slot of the removed token
func (l *ledger) removeOwnerToken(ctx context.Context, dbTX persistence.DBTX, contract, owner string, tokenID uint64) error {
	var results []*dbOwnerToken
	err := dbTX.DB().
		Table("owner_tokens").
		WithContext(ctx).
		Where("contract = ?", contract).
		Where("token_id = ?", int64(tokenID)).
		Limit(1).
		Find(&results).
		Error
	if err != nil || len(results) == 0 {
		return err
	}
	removed := results[0]

	count, err := l.countOwnerTokens(ctx, dbTX, contract, owner)
	if err == nil {
		err = dbTX.DB().
			Table("owner_tokens").
			WithContext(ctx).
			Where("contract = ?", contract).
			Where("owner = ?", owner).
			Where("idx = ?", removed.Idx).
			Delete(&dbOwnerToken{}).
			Error
	}
	lastIdx := count - 1
	if err == nil && removed.Idx != lastIdx {
		err = dbTX.DB().
			Table("owner_tokens").
			WithContext(ctx).
			Where("contract = ?", contract).
			Where("owner = ?", owner).
			Where("idx = ?", lastIdx).
			Update("idx", removed.Idx).
			Error
	}
	return err
}

func (l *ledger) OwnerOf(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, tokenID uint64) (*ethtypes.Address0xHex, error) {
	var results []*dbOwnerToken
	err := dbTX.DB().
		Table("owner_tokens").
		WithContext(ctx).
		Where("contract = ?", c.Address.String()).
		Where("token_id = ?", int64(tokenID)).
		Limit(1).
		Find(&results).
		Error
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, iouabi.Revert(ReasonOwnerNonexistent)
	}
	return ethtypes.MustNewAddress(results[0].Owner), nil
}

func (l *ledger) BalanceOf(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, owner ethtypes.Address0xHex) (uint64, error) {
	if contracts.IsZero(&owner) {
		return 0, iouabi.Revert(ReasonBalanceZero)
	}
	count, err := l.countOwnerTokens(ctx, dbTX, c.Address.String(), owner.String())
	return uint64(count), err
}

func (l *ledger) TokenOfOwnerByIndex(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, owner ethtypes.Address0xHex, index uint64) (uint64, error) {
	var results []*dbOwnerToken
	err := dbTX.DB().
		Table("owner_tokens").
		WithContext(ctx).
		Where("contract = ?", c.Address.String()).
		Where("owner = ?", owner.String()).
		Where("idx = ?", int64(index)).
		Limit(1).
		Find(&results).
		Error
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, iouabi.Revert(ReasonOwnerIndex)
	}
	return uint64(results[0].TokenID), nil
}

func (l *ledger) TotalSupply(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract) (uint64, error) {
	count, err := l.countOwnerTokens(ctx, dbTX, c.Address.String(), "")
	return uint64(count), err
}

// TokenByIndex orders the open tokens of the contract by token ID
func (l *ledger) TokenByIndex(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, index uint64) (uint64, error) {
	var results []*dbOwnerToken
	err := dbTX.DB().
		Table("owner_tokens").
		WithContext(ctx).
		Where("contract = ?", c.Address.String()).
		Order("token_id").
		Offset(int(index)).
		Limit(1).
		Find(&results).
		Error
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, iouabi.Revert(ReasonGlobalIndex)
	}
	return uint64(results[0].TokenID), nil
}

func (l *ledger) CreatedBalanceOf(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, creator ethtypes.Address0xHex) (uint64, error) {
	count, err := l.countCreatorTokens(ctx, dbTX, c.Address.String(), creator.String())
	return uint64(count), err
}

func (l *ledger) TokenOfCreatorByIndex(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, creator ethtypes.Address0xHex, index uint64) (uint64, error) {
	var results []*dbCreatorToken
	err := dbTX.DB().
		Table("creator_tokens").
		WithContext(ctx).
		Where("contract = ?", c.Address.String()).
		Where("creator = ?", creator.String()).
		Where("idx = ?", int64(index)).
		Limit(1).
		Find(&results).
		Error
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, iouabi.Revert(ReasonCreatorIndex)
	}
	return uint64(results[0].TokenID), nil
}

func (l *ledger) ActiveCreatedBalanceOf(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, creator ethtypes.Address0xHex) (count uint64, err error) {
	var n int64
	err = dbTX.DB().
		Table("ious").
		WithContext(ctx).
		Where("contract = ?", c.Address.String()).
		Where("creator = ?", creator.String()).
		Where("burned = ?", false).
		Count(&n).
		Error
	return uint64(n), err
}
