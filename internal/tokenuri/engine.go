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

package tokenuri

import (
	"context"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/contracts"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
)

// templateEngine executes TemplateTokenURI contracts deployed to the node
type templateEngine struct {
	r *Resolver
}

func (r *Resolver) Engine() contracts.Engine {
	return &templateEngine{r: r}
}

func (e *templateEngine) Kind() iouabi.ContractKind {
	return iouabi.KindTemplateTokenURI
}

func (e *templateEngine) Execute(ctx context.Context, dbTX persistence.DBTX, ec *contracts.ExecContext, fn *abi.Entry, callData []byte) (ethtypes.HexBytes0xPrefix, error) {
	var args struct {
		TokenID string `json:"tokenId"`
	}
	if err := iouabi.DecodeCall(ctx, fn, callData, &args); err != nil {
		return nil, err
	}
	c := ec.Contract
	switch fn.Name {
	case "template":
		return iouabi.EncodeOutputs(ctx, fn, map[string]any{"template": c.Template})
	case "tokenURI":
		t, err := e.r.templateFor(ctx, c.Address.String(), c.Template)
		if err != nil {
			return nil, err
		}
		uri, err := Render(ctx, t, c.Address, ec.Sender, args.TokenID)
		if err != nil {
			return nil, err
		}
		return iouabi.EncodeOutputs(ctx, fn, map[string]any{"uri": uri})
	default:
		return nil, i18n.NewError(ctx, msgs.MsgContractUnknownFunction, fn.Name, iouabi.KindTemplateTokenURI)
	}
}
