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

package networks

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sort"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/joho/godotenv"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/wallet"
)

const (
	DefaultNetwork = "default"
	EnvNetwork     = "IOU_NETWORK"
	EnvLegacy      = "HARDHAT_NETWORK"
	DefaultEnvFile = ".env"
	localNodeURL   = "http://127.0.0.1:8545"
)

// ReverseRegistries are the ENS ReverseRecords deployments. Networks without
// an entry use the default, which disables name lookup.
var ReverseRegistries = map[string]string{
	DefaultNetwork: "0x0000000000000000000000000000000000000000",
	"ropsten":      "0x72c33B247e62d0f1927E8d325d0358b8f9971C68",
	"rinkeby":      "0x196eC7109e127A353B709a20da25052617295F6f",
	"goerli":       "0x333Fc8f550043f239a2CF79aEd5e9cF4A20Eb41e",
	"mainnet":      "0x3671aE578E63FdF66ad4F3E12CC0c0d71Ac7510C",
}

// BuiltinNetworks can be overridden by name in the networks configuration
var BuiltinNetworks = map[string]*iouconf.NetworkConfig{
	DefaultNetwork: {
		RPC: iouconf.HTTPClientConfig{URL: localNodeURL},
	},
	"localhost": {
		RPC: iouconf.HTTPClientConfig{URL: localNodeURL},
	},
	"ropsten": {
		RPC:     iouconf.HTTPClientConfig{URL: "https://eth-ropsten.alchemyapi.io/v2/${ALCHEMY_ROPSTEN}"},
		ChainID: confutil.P(uint64(3)),
	},
	"rinkeby": {
		RPC:     iouconf.HTTPClientConfig{URL: "https://eth-rinkeby.alchemyapi.io/v2/${ALCHEMY_RINKEBY}"},
		ChainID: confutil.P(uint64(4)),
		Accounts: iouconf.WalletConfig{
			PrivateKeys: []string{"${RINKEBY_KEY}"},
		},
	},
}

type Network struct {
	Name            string
	RPC             iouconf.HTTPClientConfig
	ChainID         *uint64
	ReverseRegistry ethtypes.Address0xHex
	Wallet          *wallet.Wallet
}

// LoadEnv loads a dotenv file without overriding variables already set.
// A missing default file is not an error.
func LoadEnv(ctx context.Context, path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	err := godotenv.Load(path)
	if err != nil {
		if path == DefaultEnvFile && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return i18n.WrapError(ctx, err, msgs.MsgConfigEnvLoadFailed, path)
	}
	log.L(ctx).Debugf("Loaded environment from %s", path)
	return nil
}

// SelectedName is the network chosen by the environment, then the configuration
func SelectedName(conf *iouconf.NetworksConfig) string {
	for _, env := range []string{EnvNetwork, EnvLegacy} {
		if name := os.Getenv(env); name != "" {
			return name
		}
	}
	return confutil.StringNotEmpty(conf.Default, DefaultNetwork)
}

// Names lists the builtin and configured networks
func Names(conf *iouconf.NetworksConfig) []string {
	names := []string{}
	for n := range BuiltinNetworks {
		names = append(names, n)
	}
	for n := range conf.Networks {
		if BuiltinNetworks[n] == nil {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Resolve builds a network from its configuration, expanding environment variables
// in the values that commonly hold secrets
func Resolve(ctx context.Context, conf *iouconf.NetworksConfig, name string) (*Network, error) {
	nc := conf.Networks[name]
	if nc == nil {
		nc = BuiltinNetworks[name]
	}
	if nc == nil {
		return nil, i18n.NewError(ctx, msgs.MsgConfigUnknownNetwork, name)
	}

	n := &Network{
		Name:    name,
		RPC:     nc.RPC,
		ChainID: nc.ChainID,
	}
	n.RPC.URL = os.ExpandEnv(nc.RPC.URL)

	registry := nc.ReverseRegistry
	if registry == "" {
		registry = ReverseRegistries[name]
	}
	if registry == "" {
		registry = ReverseRegistries[DefaultNetwork]
	}
	regAddr, err := ethtypes.NewAddress(os.ExpandEnv(registry))
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgConfigInvalidStaticKey, registry, name)
	}
	n.ReverseRegistry = *regAddr

	accounts := nc.Accounts
	if accounts.Mnemonic != nil {
		accounts.Mnemonic = confutil.P(os.ExpandEnv(*accounts.Mnemonic))
	}
	if len(accounts.PrivateKeys) > 0 {
		accounts.PrivateKeys = make([]string, 0, len(nc.Accounts.PrivateKeys))
		for _, k := range nc.Accounts.PrivateKeys {
			if k = os.ExpandEnv(k); k != "" {
				accounts.PrivateKeys = append(accounts.PrivateKeys, k)
			}
		}
		if len(accounts.PrivateKeys) == 0 {
			return nil, i18n.NewError(ctx, msgs.MsgConfigNoAccounts, name)
		}
	}
	if n.Wallet, err = wallet.NewWallet(ctx, &accounts); err != nil {
		return nil, err
	}
	if len(n.Wallet.Accounts()) == 0 {
		return nil, i18n.NewError(ctx, msgs.MsgConfigNoAccounts, name)
	}
	return n, nil
}
