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
	"math"
	"math/big"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/contracts"
	"github.com/kaleido-io/ioweyou/internal/ledger/metrics"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
)

const (
	TokenName   = "IOweYou"
	TokenSymbol = "IOU"
)

const (
	ReasonSelfIOU          = "You cannot make an IOU to yourself."
	ReasonNotParty         = "You can only complete your own IOU"
	ReasonIOUNotFound      = "IOU does not exist."
	ReasonURINonexistent   = "ERC721Metadata: URI query for nonexistent token"
	ReasonBalanceZero      = "ERC721: balance query for the zero address"
	ReasonOwnerNonexistent = "ERC721: owner query for nonexistent token"
	ReasonOwnerIndex       = "ERC721Enumerable: owner index out of bounds"
	ReasonGlobalIndex      = "ERC721Enumerable: global index out of bounds"
	ReasonCreatorIndex     = "IOweYou: creator index out of bounds"
	ReasonNotOwner         = "Ownable: caller is not the owner"
	ReasonMintZero         = "ERC721: mint to the zero address"
)

// TokenURIResolver renders the URI of a token. A nil resolver address selects the node default.
type TokenURIResolver interface {
	ResolveTokenURI(ctx context.Context, dbTX persistence.DBTX, resolver *ethtypes.Address0xHex, caller ethtypes.Address0xHex, tokenID uint64) (string, error)
}

// NameResolver looks up the reverse record of an address in a registry.
// An empty name means none is registered.
type NameResolver interface {
	LookupName(ctx context.Context, registry, addr ethtypes.Address0xHex) (string, error)
}

// IOUFilter narrows a token listing. Burned IOUs are only included on request.
type IOUFilter struct {
	Owner         *ethtypes.Address0xHex
	Creator       *ethtypes.Address0xHex
	IncludeBurned bool
	Limit         int
}

type Ledger interface {
	contracts.Engine

	Create(ctx context.Context, dbTX persistence.DBTX, ec *contracts.ExecContext, receiver ethtypes.Address0xHex, promise string) (uint64, error)
	Complete(ctx context.Context, dbTX persistence.DBTX, ec *contracts.ExecContext, tokenID uint64) error
	SetTokenURIAddress(ctx context.Context, dbTX persistence.DBTX, ec *contracts.ExecContext, tokenURIAddress ethtypes.Address0xHex) error

	GetIOU(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, tokenID uint64) (*ioutypes.IOU, error)
	TokenURI(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, tokenID uint64) (string, error)
	OwnerOf(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, tokenID uint64) (*ethtypes.Address0xHex, error)
	BalanceOf(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, owner ethtypes.Address0xHex) (uint64, error)
	TokenOfOwnerByIndex(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, owner ethtypes.Address0xHex, index uint64) (uint64, error)
	TotalSupply(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract) (uint64, error)
	TokenByIndex(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, index uint64) (uint64, error)
	CreatedBalanceOf(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, creator ethtypes.Address0xHex) (uint64, error)
	TokenOfCreatorByIndex(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, creator ethtypes.Address0xHex, index uint64) (uint64, error)
	ActiveCreatedBalanceOf(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, creator ethtypes.Address0xHex) (uint64, error)
	AddrToString(ctx context.Context, c *ioutypes.Contract, addr ethtypes.Address0xHex) string
	ListIOUs(ctx context.Context, dbTX persistence.DBTX, c *ioutypes.Contract, filter *IOUFilter) ([]*ioutypes.IOU, error)
}

type ledger struct {
	store     contracts.Store
	tokenURIs TokenURIResolver
	names     NameResolver
	metrics   metrics.LedgerMetrics
}

func NewLedger(store contracts.Store, tokenURIs TokenURIResolver, names NameResolver, metrics metrics.LedgerMetrics) Ledger {
	return &ledger{
		store:     store,
		tokenURIs: tokenURIs,
		names:     names,
		metrics:   metrics,
	}
}

func (l *ledger) Kind() iouabi.ContractKind {
	return iouabi.KindIOweYou
}

// clampUint maps uint256 values that cannot be stored to a value no token or index reaches
func clampUint(b *big.Int) uint64 {
	if b == nil || b.Sign() < 0 || !b.IsInt64() {
		return math.MaxInt64
	}
	return b.Uint64()
}
