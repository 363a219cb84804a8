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

package reverseregistry

import (
	"context"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/cache"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/upstream"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
)

// AnyRegistry keys static names that apply whatever registry a contract was deployed with
const AnyRegistry = "*"

type Registry struct {
	static   map[string]map[ethtypes.Address0xHex]string
	names    cache.Cache[string, string]
	upstream upstream.Caller
}

func NewRegistry(ctx context.Context, conf *iouconf.ReverseRegistryConfig, up upstream.Caller) (*Registry, error) {
	r := &Registry{
		static:   map[string]map[ethtypes.Address0xHex]string{},
		names:    cache.NewCache[string, string](&conf.Cache, &iouconf.ReverseRegistryDefaults.Cache),
		upstream: up,
	}
	for registry, names := range conf.Names {
		key := AnyRegistry
		if registry != AnyRegistry {
			regAddr, err := ethtypes.NewAddress(registry)
			if err != nil {
				return nil, i18n.WrapError(ctx, err, msgs.MsgConfigInvalidStaticKey, registry, "reverseRegistry")
			}
			key = regAddr.String()
		}
		byAddr := map[ethtypes.Address0xHex]string{}
		for addr, name := range names {
			a, err := ethtypes.NewAddress(addr)
			if err != nil {
				return nil, i18n.WrapError(ctx, err, msgs.MsgConfigInvalidStaticKey, addr, "reverseRegistry")
			}
			byAddr[*a] = name
		}
		r.static[key] = byAddr
	}
	return r, nil
}

func (r *Registry) LookupName(ctx context.Context, registry, addr ethtypes.Address0xHex) (string, error) {
	if name, ok := r.static[registry.String()][addr]; ok {
		return name, nil
	}
	if name, ok := r.static[AnyRegistry][addr]; ok {
		return name, nil
	}
	if r.upstream == nil {
		return "", nil
	}

	cacheKey := registry.String() + ":" + addr.String()
	if name, ok := r.names.Get(cacheKey); ok {
		return name, nil
	}
	var res struct {
		Names []string `json:"r"`
	}
	err := r.upstream.Call(ctx, registry, iouabi.ReverseRecordsABI.Functions()["getNames"], map[string]any{
		"addresses": []string{addr.String()},
	}, &res)
	if err != nil {
		return "", err
	}
	var name string
	if len(res.Names) > 0 {
		name = res.Names[0]
	}
	log.L(ctx).Debugf("Reverse record for %s in %s: '%s'", addr.String(), registry.String(), name)
	r.names.Set(cacheKey, name)
	return name, nil
}
