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
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/ledger"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/router"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/kaleido-io/ioweyou/pkg/ioutypes"
)

func (c *chain) RegisterREST(r router.Router) {
	r.HandleJSON(http.MethodGet, "/healthz", c.restHealth)
	r.HandleJSON(http.MethodGet, "/ious/{contract}/{tokenId}", c.restTokenMetadata)
}

func (c *chain) restHealth(req *http.Request, _ map[string]string) (int, interface{}) {
	info, err := c.NodeInfo(req.Context())
	if err != nil {
		return http.StatusServiceUnavailable, err
	}
	return http.StatusOK, info
}

// parseTokenID accepts decimal, or hex with a 0x prefix
func parseTokenID(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

func (c *chain) restTokenMetadata(req *http.Request, vars map[string]string) (int, interface{}) {
	ctx := req.Context()
	addr, err := ethtypes.NewAddress(vars["contract"])
	if err != nil {
		return http.StatusBadRequest, err
	}
	tokenID, err := parseTokenID(vars["tokenId"])
	if err != nil {
		return http.StatusBadRequest, err
	}
	md, err := c.TokenMetadata(ctx, *addr, tokenID)
	switch {
	case err == nil:
		return http.StatusOK, md
	case isNotFound(err):
		return http.StatusNotFound, err
	default:
		return http.StatusInternalServerError, err
	}
}

func isNotFound(err error) bool {
	var reverted *ExecutionRevertedError
	if errors.As(err, &reverted) {
		return true
	}
	var ffErr i18n.FFError
	return errors.As(err, &ffErr) && ffErr.MessageKey() == msgs.MsgContractNotFound
}

// TokenMetadata builds the marketplace view of an open IOU, with parties named
// through the contract's reverse registry
func (c *chain) TokenMetadata(ctx context.Context, addr ethtypes.Address0xHex, tokenID uint64) (*ioutypes.TokenMetadata, error) {
	contract, err := c.ioweyou(ctx, addr)
	if err != nil {
		return nil, err
	}
	iou, err := c.ledger.GetIOU(ctx, c.p.NOTX(), contract, tokenID)
	if err != nil {
		return nil, mapRevert(ctx, err)
	}
	md := &ioutypes.TokenMetadata{
		Name:        fmt.Sprintf("%s #%d", ledger.TokenName, tokenID),
		Description: iou.Owed,
		Attributes: []ioutypes.TokenAttribute{
			{TraitType: "creator", Value: c.ledger.AddrToString(ctx, contract, iou.Creator)},
			{TraitType: "receiver", Value: c.ledger.AddrToString(ctx, contract, iou.Receiver)},
			{TraitType: "creatorCompleted", Value: iou.CreatorCompleted},
			{TraitType: "receiverCompleted", Value: iou.ReceiverCompleted},
		},
	}
	if uri, err := c.ledger.TokenURI(ctx, c.p.NOTX(), contract, tokenID); err == nil {
		md.ExternalURL = uri
	} else {
		var revert *iouabi.RevertError
		if !errors.As(err, &revert) {
			return nil, err
		}
		log.L(ctx).Warnf("No token URI for %s/%d: %s", addr.String(), tokenID, revert.Reason)
	}
	return md, nil
}
