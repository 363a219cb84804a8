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

package iouconf

import "github.com/kaleido-io/ioweyou/internal/confutil"

// The Hardhat development chain ID, so wallets configured for a local node work unchanged
const DefaultChainID = 31337

type ChainConfig struct {
	ChainID *uint64 `json:"chainId"`
}

var ChainDefaults = &ChainConfig{
	ChainID: confutil.P(uint64(DefaultChainID)),
}

type TokenURIConfig struct {
	// prefix of the URI returned when no token URI contract is set
	DefaultBase *string `json:"defaultBase"`
	// resolvers available at fixed addresses without deployment
	Static []StaticTokenURIConfig `json:"static"`
}

type StaticTokenURIConfig struct {
	Address  string `json:"address"`
	Template string `json:"template"` // text/template with .TokenID and .Contract
}

var TokenURIDefaults = &TokenURIConfig{
	DefaultBase: confutil.P("test://"),
}

type ReverseRegistryConfig struct {
	// registry address (or "*" for any registry) to a map of address to name
	Names map[string]map[string]string `json:"names"`
	Cache CacheConfig                  `json:"cache"`
}

var ReverseRegistryDefaults = &ReverseRegistryConfig{
	Cache: CacheConfig{
		Capacity: confutil.P(1000),
		TTL:      confutil.P("1h"),
	},
}
