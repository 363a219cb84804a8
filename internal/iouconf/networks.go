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

// The well-known development mnemonic used by Hardhat and Anvil
const DefaultMnemonic = "test test test test test test test test test test test junk"

type WalletConfig struct {
	// a BIP-39 mnemonic, from which accounts are derived along the BIP-44 Ethereum path
	Mnemonic *string `json:"mnemonic"`
	// the number of accounts to derive from the mnemonic
	Count *int `json:"count"`
	// the BIP-44 prefix, to which the account index is appended
	HDPath *string `json:"hdPath"`
	// hex private keys, used instead of the mnemonic when set
	PrivateKeys []string `json:"privateKeys"`
}

var WalletDefaults = &WalletConfig{
	Mnemonic: confutil.P(DefaultMnemonic),
	Count:    confutil.P(20),
	HDPath:   confutil.P("m/44'/60'/0'/0"),
}

type NetworkConfig struct {
	RPC             HTTPClientConfig `json:"rpc"`
	ChainID         *uint64          `json:"chainId"`
	ReverseRegistry string           `json:"reverseRegistry"`
	Accounts        WalletConfig     `json:"accounts"`
}

type NetworksConfig struct {
	Default  *string                   `json:"defaultNetwork"`
	Networks map[string]*NetworkConfig `json:"networks"`
}
