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
	"os"
	"path/filepath"
	"testing"

	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectedName(t *testing.T) {
	t.Setenv(EnvNetwork, "")
	t.Setenv(EnvLegacy, "")
	assert.Equal(t, DefaultNetwork, SelectedName(&iouconf.NetworksConfig{}))
	assert.Equal(t, "localhost", SelectedName(&iouconf.NetworksConfig{Default: confutil.P("localhost")}))

	t.Setenv(EnvLegacy, "rinkeby")
	assert.Equal(t, "rinkeby", SelectedName(&iouconf.NetworksConfig{Default: confutil.P("localhost")}))

	t.Setenv(EnvNetwork, "ropsten")
	assert.Equal(t, "ropsten", SelectedName(&iouconf.NetworksConfig{}))
}

func TestResolveBuiltin(t *testing.T) {
	ctx := context.Background()
	t.Setenv("ALCHEMY_ROPSTEN", "abc123")

	n, err := Resolve(ctx, &iouconf.NetworksConfig{}, "ropsten")
	require.NoError(t, err)
	assert.Equal(t, "https://eth-ropsten.alchemyapi.io/v2/abc123", n.RPC.URL)
	assert.Equal(t, uint64(3), *n.ChainID)
	assert.Equal(t, "0x72c33b247e62d0f1927e8d325d0358b8f9971c68", n.ReverseRegistry.String())
	assert.Len(t, n.Wallet.Accounts(), 20)

	n, err = Resolve(ctx, &iouconf.NetworksConfig{}, "localhost")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8545", n.RPC.URL)
	assert.Equal(t, "0x0000000000000000000000000000000000000000", n.ReverseRegistry.String())
}

func TestResolveRinkebyKey(t *testing.T) {
	ctx := context.Background()

	t.Setenv("RINKEBY_KEY", "")
	_, err := Resolve(ctx, &iouconf.NetworksConfig{}, "rinkeby")
	assert.Regexp(t, "IO010106", err)

	t.Setenv("RINKEBY_KEY", "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	n, err := Resolve(ctx, &iouconf.NetworksConfig{}, "rinkeby")
	require.NoError(t, err)
	require.Len(t, n.Wallet.Accounts(), 1)
	assert.Equal(t, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", n.Wallet.Account(0).Address.String())
	assert.Equal(t, "0x196ec7109e127a353b709a20da25052617295f6f", n.ReverseRegistry.String())
}

func TestResolveConfigured(t *testing.T) {
	ctx := context.Background()
	conf := &iouconf.NetworksConfig{
		Networks: map[string]*iouconf.NetworkConfig{
			"ropsten": {
				RPC: iouconf.HTTPClientConfig{URL: "http://ropsten.example.com"},
			},
			"private": {
				RPC:             iouconf.HTTPClientConfig{URL: "http://private.example.com"},
				ReverseRegistry: "0x2222222222222222222222222222222222222222",
				Accounts:        iouconf.WalletConfig{Count: confutil.P(3)},
			},
			"bad": {
				ReverseRegistry: "not an address",
			},
			"empty": {
				Accounts: iouconf.WalletConfig{Count: confutil.P(0)},
			},
		},
	}

	n, err := Resolve(ctx, conf, "ropsten")
	require.NoError(t, err)
	assert.Equal(t, "http://ropsten.example.com", n.RPC.URL)
	assert.Equal(t, "0x72c33b247e62d0f1927e8d325d0358b8f9971c68", n.ReverseRegistry.String())

	n, err = Resolve(ctx, conf, "private")
	require.NoError(t, err)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", n.ReverseRegistry.String())
	assert.Len(t, n.Wallet.Accounts(), 3)

	_, err = Resolve(ctx, conf, "bad")
	assert.Regexp(t, "IO010104", err)

	_, err = Resolve(ctx, conf, "empty")
	assert.Regexp(t, "IO010106", err)

	_, err = Resolve(ctx, conf, "nowhere")
	assert.Regexp(t, "IO010105", err)

	assert.Equal(t, []string{"bad", "default", "empty", "localhost", "private", "rinkeby", "ropsten"}, Names(conf))
}

func TestLoadEnv(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("IOU_TEST_LOAD_ENV=loaded\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("IOU_TEST_LOAD_ENV") })

	require.NoError(t, LoadEnv(ctx, envFile))
	assert.Equal(t, "loaded", os.Getenv("IOU_TEST_LOAD_ENV"))

	err := LoadEnv(ctx, filepath.Join(dir, "missing.env"))
	assert.Regexp(t, "IO010109", err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	require.NoError(t, LoadEnv(ctx, ""))
}
