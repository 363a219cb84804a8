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

package wallet

import (
	"context"
	"testing"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMnemonicAccounts(t *testing.T) {
	w, err := NewWallet(context.Background(), &iouconf.WalletConfig{})
	require.NoError(t, err)

	require.Len(t, w.Accounts(), 20)
	assert.Equal(t, *ethtypes.MustNewAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), w.Account(0).Address)
	assert.Equal(t, "m/44'/60'/0'/0/0", w.Account(0).Path)
	assert.Equal(t, *ethtypes.MustNewAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), w.Account(1).Address)
	assert.Equal(t, *ethtypes.MustNewAddress("0x8626f6940E2eb28930eFb4CeF49B2d1F2C9C1199"), w.Account(19).Address)
	assert.Nil(t, w.Account(20))
	assert.Nil(t, w.Account(-1))

	assert.Equal(t, w.Account(1), w.Lookup(w.Account(1).Address))
	assert.Nil(t, w.Lookup(*ethtypes.MustNewAddress("0x2222222222222222222222222222222222222222")))
}

func TestAccountCount(t *testing.T) {
	w, err := NewWallet(context.Background(), &iouconf.WalletConfig{
		Mnemonic: confutil.P(iouconf.DefaultMnemonic),
		Count:    confutil.P(2),
	})
	require.NoError(t, err)
	assert.Len(t, w.Accounts(), 2)
}

func TestPrivateKeys(t *testing.T) {
	w, err := NewWallet(context.Background(), &iouconf.WalletConfig{
		PrivateKeys: []string{
			"0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
			"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
		},
	})
	require.NoError(t, err)
	require.Len(t, w.Accounts(), 2)
	assert.Equal(t, *ethtypes.MustNewAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), w.Account(0).Address)
	assert.Equal(t, *ethtypes.MustNewAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), w.Account(1).Address)
	assert.Empty(t, w.Account(0).Path)
}

func TestWalletConfigErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewWallet(ctx, &iouconf.WalletConfig{PrivateKeys: []string{"not hex"}})
	assert.Regexp(t, "IO010108", err)

	_, err = NewWallet(ctx, &iouconf.WalletConfig{PrivateKeys: []string{"0x0102"}})
	assert.Regexp(t, "IO010108", err)

	_, err = NewWallet(ctx, &iouconf.WalletConfig{Mnemonic: confutil.P("test test test")})
	assert.Regexp(t, "IO010107", err)

	_, err = NewWallet(ctx, &iouconf.WalletConfig{HDPath: confutil.P("44'/60'")})
	assert.Regexp(t, "IO010110", err)

	_, err = NewWallet(ctx, &iouconf.WalletConfig{HDPath: confutil.P("m/44'/sixty")})
	assert.Regexp(t, "IO010110", err)

	_, err = NewWallet(ctx, &iouconf.WalletConfig{HDPath: confutil.P("m/2147483648")})
	assert.Regexp(t, "IO010110", err)
}
