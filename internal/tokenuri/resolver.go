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
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/cache"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/contracts"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/internal/upstream"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
)

const ReasonContractNotFound = "IOweYou: token URI contract not found"

// TemplateData is available to token URI templates
type TemplateData struct {
	TokenID  string
	Contract string
	Caller   string
}

type Resolver struct {
	defaultBase string
	static      map[ethtypes.Address0xHex]*template.Template
	parsed      cache.Cache[string, *template.Template]
	store       contracts.Store
	upstream    upstream.Caller
}

var templateCacheDefaults = &iouconf.CacheConfig{
	Capacity: confutil.P(100),
}

func newTemplate(name string) *template.Template {
	return template.New(name).Option("missingkey=error").Funcs(sprig.HermeticTxtFuncMap())
}

// ParseTemplate validates a token URI template. Templates may use the
// repeatable sprig functions, such as upper or trimPrefix.
func ParseTemplate(ctx context.Context, name, tpl string) (*template.Template, error) {
	t, err := newTemplate(name).Parse(tpl)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgTokenURIInvalidTemplate, tpl)
	}
	return t, nil
}

func NewResolver(ctx context.Context, conf *iouconf.TokenURIConfig, store contracts.Store, upstream upstream.Caller) (*Resolver, error) {
	r := &Resolver{
		defaultBase: confutil.StringNotEmpty(conf.DefaultBase, *iouconf.TokenURIDefaults.DefaultBase),
		static:      map[ethtypes.Address0xHex]*template.Template{},
		parsed:      cache.NewCache[string, *template.Template](&iouconf.CacheConfig{}, templateCacheDefaults),
		store:       store,
		upstream:    upstream,
	}
	for _, s := range conf.Static {
		addr, err := ethtypes.NewAddress(s.Address)
		if err != nil {
			return nil, i18n.WrapError(ctx, err, msgs.MsgConfigInvalidStaticKey, s.Address, "tokenURI")
		}
		t, err := newTemplate(addr.String()).Parse(s.Template)
		if err != nil {
			return nil, i18n.WrapError(ctx, err, msgs.MsgConfigInvalidTemplate, s.Address)
		}
		r.static[*addr] = t
	}
	return r, nil
}

// Render executes a template for a token
func Render(ctx context.Context, t *template.Template, contract, caller ethtypes.Address0xHex, tokenID string) (string, error) {
	buf := new(strings.Builder)
	err := t.Execute(buf, &TemplateData{
		TokenID:  tokenID,
		Contract: contract.String(),
		Caller:   caller.String(),
	})
	if err != nil {
		return "", i18n.WrapError(ctx, err, msgs.MsgTokenURITemplateFailed, contract.String(), tokenID)
	}
	return buf.String(), nil
}

func (r *Resolver) templateFor(ctx context.Context, c string, tpl string) (*template.Template, error) {
	key := c + ":" + tpl
	if t, ok := r.parsed.Get(key); ok {
		return t, nil
	}
	t, err := ParseTemplate(ctx, c, tpl)
	if err == nil {
		r.parsed.Set(key, t)
	}
	return t, err
}

func (r *Resolver) ResolveTokenURI(ctx context.Context, dbTX persistence.DBTX, resolver *ethtypes.Address0xHex, caller ethtypes.Address0xHex, tokenID uint64) (string, error) {
	id := fmt.Sprintf("%d", tokenID)
	if resolver == nil || contracts.IsZero(resolver) {
		return r.defaultBase + id, nil
	}

	if t := r.static[*resolver]; t != nil {
		return Render(ctx, t, *resolver, caller, id)
	}

	c, err := r.store.Get(ctx, dbTX, *resolver)
	if err != nil {
		return "", err
	}
	if c != nil && c.Kind == string(iouabi.KindTemplateTokenURI) {
		t, err := r.templateFor(ctx, c.Address.String(), c.Template)
		if err != nil {
			return "", err
		}
		return Render(ctx, t, *resolver, caller, id)
	}

	if r.upstream != nil {
		log.L(ctx).Debugf("Resolving token URI %s via upstream contract %s", id, resolver.String())
		var res struct {
			URI string `json:"uri"`
		}
		err := r.upstream.Call(ctx, *resolver, iouabi.TemplateTokenURIABI.Functions()["tokenURI"], map[string]any{"tokenId": id}, &res)
		if err != nil {
			return "", err
		}
		return res.URI, nil
	}

	return "", iouabi.Revert(ReasonContractNotFound)
}
