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
	"time"

	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
	"gorm.io/gorm"
)

// Store is the registry of contract instances deployed to the node
type Store interface {
	Insert(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract) error
	Get(ctx context.Context, dbTX persistence.DBTX, addr ethtypes.Address0xHex) (*ioutypes.Contract, error)
	GetKind(ctx context.Context, dbTX persistence.DBTX, addr ethtypes.Address0xHex, kind iouabi.ContractKind) (*ioutypes.Contract, error)
	List(ctx context.Context, dbTX persistence.DBTX, kind iouabi.ContractKind) ([]*ioutypes.Contract, error)
	Count(ctx context.Context, dbTX persistence.DBTX) (int64, error)
	AllocateTokenID(ctx context.Context, dbTX persistence.DBTX, addr ethtypes.Address0xHex) (uint64, error)
	SetTokenURIAddress(ctx context.Context, dbTX persistence.DBTX, addr ethtypes.Address0xHex, tokenURIAddress *ethtypes.Address0xHex) error
}

// Engine executes the functions of one kind of contract
type Engine interface {
	Kind() iouabi.ContractKind
	Execute(ctx context.Context, dbTX persistence.DBTX, ec *ExecContext, fn *abi.Entry, callData []byte) (ethtypes.HexBytes0xPrefix, error)
}

type DBContract struct {
	Address         string  `gorm:"column:address;primaryKey"`
	Kind            string  `gorm:"column:kind"`
	Deployer        string  `gorm:"column:deployer"`
	Owner           string  `gorm:"column:owner"`
	DeployTX        string  `gorm:"column:deploy_tx"`
	ReverseRegistry *string `gorm:"column:reverse_registry"`
	TokenURIAddress *string `gorm:"column:token_uri_address"`
	Template        *string `gorm:"column:template"`
	NextTokenID     int64   `gorm:"column:next_token_id"`
	Created         int64   `gorm:"column:created"`
}

func (DBContract) TableName() string {
	return "contracts"
}

type store struct{}

func NewStore() Store {
	return &store{}
}

func optAddrString(a *ethtypes.Address0xHex) *string {
	if a == nil || IsZero(a) {
		return nil
	}
	s := a.String()
	return &s
}

func optAddr(s *string) *ethtypes.Address0xHex {
	if s == nil || *s == "" {
		return nil
	}
	return ethtypes.MustNewAddress(*s)
}

func nanosToTime(ns int64) *fftypes.FFTime {
	t := fftypes.FFTime(time.Unix(0, ns).UTC())
	return &t
}

// IsZero is true for the zero address
func IsZero(a *ethtypes.Address0xHex) bool {
	return a == nil || *a == ethtypes.Address0xHex{}
}

func (dbc *DBContract) toAPI() *ioutypes.Contract {
	c := &ioutypes.Contract{
		Address:           *ethtypes.MustNewAddress(dbc.Address),
		Kind:              dbc.Kind,
		Deployer:          *ethtypes.MustNewAddress(dbc.Deployer),
		Owner:             *ethtypes.MustNewAddress(dbc.Owner),
		DeployTransaction: ethtypes.MustNewHexBytes0xPrefix(dbc.DeployTX),
		ReverseRegistry:   optAddr(dbc.ReverseRegistry),
		TokenURIAddress:   optAddr(dbc.TokenURIAddress),
		NextTokenID:       ethtypes.HexUint64(dbc.NextTokenID),
		Created:           nanosToTime(dbc.Created),
	}
	if dbc.Template != nil {
		c.Template = *dbc.Template
	}
	return c
}

func (s *store) Insert(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract) error {
	dbc := &DBContract{
		Address:         c.Address.String(),
		Kind:            c.Kind,
		Deployer:        c.Deployer.String(),
		Owner:           c.Owner.String(),
		DeployTX:        c.DeployTransaction.String(),
		ReverseRegistry: optAddrString(c.ReverseRegistry),
		TokenURIAddress: optAddrString(c.TokenURIAddress),
		NextTokenID:     int64(c.NextTokenID),
		Created:         time.Now().UnixNano(),
	}
	if c.Template != "" {
		dbc.Template = &c.Template
	}
	return dbTX.DB().
		Table("contracts").
		WithContext(ctx).
		Create(dbc).
		Error
}

func (s *store) Get(ctx context.Context, dbTX persistence.DBTX, addr ethtypes.Address0xHex) (*ioutypes.Contract, error) {
	var results []*DBContract
	err := dbTX.DB().
		Table("contracts").
		WithContext(ctx).
		Where("address = ?", addr.String()).
		Limit(1).
		Find(&results).
		Error
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0].toAPI(), nil
}

// GetKind fails if there is no contract of the given kind at the address
func (s *store) GetKind(ctx context.Context, dbTX persistence.DBTX, addr ethtypes.Address0xHex, kind iouabi.ContractKind) (*ioutypes.Contract, error) {
	c, err := s.Get(ctx, dbTX, addr)
	if err != nil {
		return nil, err
	}
	if c == nil || c.Kind != string(kind) {
		return nil, i18n.NewError(ctx, msgs.MsgContractNotFound, addr)
	}
	return c, nil
}

func (s *store) List(ctx context.Context, dbTX persistence.DBTX, kind iouabi.ContractKind) ([]*ioutypes.Contract, error) {
	var results []*DBContract
	q := dbTX.DB().
		Table("contracts").
		WithContext(ctx)
	if kind != "" {
		q = q.Where("kind = ?", string(kind))
	}
	err := q.Order("created").Find(&results).Error
	if err != nil {
		return nil, err
	}
	contracts := make([]*ioutypes.Contract, len(results))
	for i, dbc := range results {
		contracts[i] = dbc.toAPI()
	}
	return contracts, nil
}

func (s *store) Count(ctx context.Context, dbTX persistence.DBTX) (count int64, err error) {
	err = dbTX.DB().
		Table("contracts").
		WithContext(ctx).
		Count(&count).
		Error
	return count, err
}

// AllocateTokenID returns the next token ID of the contract, and advances the counter
func (s *store) AllocateTokenID(ctx context.Context, dbTX persistence.DBTX, addr ethtypes.Address0xHex) (uint64, error) {
	var results []*DBContract
	err := dbTX.DB().
		Table("contracts").
		WithContext(ctx).
		Select("next_token_id").
		Where("address = ?", addr.String()).
		Limit(1).
		Find(&results).
		Error
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, i18n.NewError(ctx, msgs.MsgContractNotFound, addr)
	}
	tokenID := results[0].NextTokenID
	err = dbTX.DB().
		Table("contracts").
		WithContext(ctx).
		Where("address = ?", addr.String()).
		Update("next_token_id", gorm.Expr("next_token_id + 1")).
		Error
	return uint64(tokenID), err
}

func (s *store) SetTokenURIAddress(ctx context.Context, dbTX persistence.DBTX, addr ethtypes.Address0xHex, tokenURIAddress *ethtypes.Address0xHex) error {
	return dbTX.DB().
		Table("contracts").
		WithContext(ctx).
		Where("address = ?", addr.String()).
		Update("token_uri_address", optAddrString(tokenURIAddress)).
		Error
}
