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
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/tyler-smith/go-bip39"
)

// Account is a signing key, with the HD path it was derived from (empty for raw keys)
type Account struct {
	*secp256k1.KeyPair
	Path string
}

type Wallet struct {
	accounts []*Account
	byAddr   map[ethtypes.Address0xHex]*Account
}

// NewWallet loads the raw private keys when any are configured, otherwise derives
// accounts from the mnemonic
func NewWallet(ctx context.Context, conf *iouconf.WalletConfig) (*Wallet, error) {
	w := &Wallet{byAddr: map[ethtypes.Address0xHex]*Account{}}
	if len(conf.PrivateKeys) > 0 {
		for i, k := range conf.PrivateKeys {
			keyBytes, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(k), "0x"))
			if err != nil || len(keyBytes) != 32 {
				return nil, i18n.NewError(ctx, msgs.MsgConfigInvalidKey, i)
			}
			kp, err := secp256k1.NewSecp256k1KeyPair(keyBytes)
			if err != nil {
				return nil, i18n.WrapError(ctx, err, msgs.MsgConfigInvalidKey, i)
			}
			w.add(&Account{KeyPair: kp})
		}
		return w, nil
	}

	mnemonic := strings.TrimSpace(confutil.StringNotEmpty(conf.Mnemonic, *iouconf.WalletDefaults.Mnemonic))
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgConfigInvalidMnemonic)
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgConfigInvalidMnemonic)
	}
	prefix := strings.ReplaceAll(confutil.StringNotEmpty(conf.HDPath, *iouconf.WalletDefaults.HDPath), " ", "")
	count := confutil.IntMin(conf.Count, 0, *iouconf.WalletDefaults.Count)
	for i := 0; i < count; i++ {
		path := fmt.Sprintf("%s/%d", prefix, i)
		privateKey, err := derive(ctx, master, path)
		if err != nil {
			return nil, err
		}
		kp, err := secp256k1.NewSecp256k1KeyPair(privateKey)
		if err != nil {
			return nil, i18n.WrapError(ctx, err, msgs.MsgConfigInvalidHDPath, path)
		}
		w.add(&Account{KeyPair: kp, Path: path})
	}
	return w, nil
}

func (w *Wallet) add(a *Account) {
	w.accounts = append(w.accounts, a)
	w.byAddr[a.Address] = a
}

func derive(ctx context.Context, master *hdkeychain.ExtendedKey, path string) ([]byte, error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] != "m" {
		return nil, i18n.NewError(ctx, msgs.MsgConfigInvalidHDPath, path)
	}
	pos := master
	for _, s := range segments[1:] {
		number, isHardened := strings.CutSuffix(s, "'")
		derivation, err := strconv.ParseUint(number, 10, 32)
		if err == nil {
			if derivation >= hdkeychain.HardenedKeyStart {
				return nil, i18n.NewError(ctx, msgs.MsgConfigInvalidHDPath, path)
			}
			if isHardened {
				derivation += hdkeychain.HardenedKeyStart
			}
			pos, err = pos.Derive(uint32(derivation))
		}
		if err != nil {
			return nil, i18n.WrapError(ctx, err, msgs.MsgConfigInvalidHDPath, path)
		}
	}
	ecPrivKey, err := pos.ECPrivKey()
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgConfigInvalidHDPath, path)
	}
	pkBytes := ecPrivKey.Key.Bytes()
	return pkBytes[:], nil
}

func (w *Wallet) Accounts() []*Account {
	return w.accounts
}

// Account returns the account at the index, or nil when out of range
func (w *Wallet) Account(i int) *Account {
	if i < 0 || i >= len(w.accounts) {
		return nil
	}
	return w.accounts[i]
}

func (w *Wallet) Lookup(addr ethtypes.Address0xHex) *Account {
	return w.byAddr[addr]
}
