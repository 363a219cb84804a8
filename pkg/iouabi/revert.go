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

package iouabi

import (
	"bytes"
	"context"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/msgs"
)

// RevertError is a contract-level failure, carrying the exact reason supplied to require()
type RevertError struct {
	Reason string
}

func (r *RevertError) Error() string {
	return r.Reason
}

func Revert(reason string) error {
	return &RevertError{Reason: reason}
}

// EncodeRevert returns the Error(string) ABI encoding of the reason
func EncodeRevert(ctx context.Context, reason string) ethtypes.HexBytes0xPrefix {
	data, err := EncodeCall(ctx, ErrorABI, map[string]string{"reason": reason})
	if err != nil {
		// a string always encodes
		panic(err)
	}
	return data
}

// DecodeRevert extracts the reason from Error(string) revert data
func DecodeRevert(ctx context.Context, data []byte) (string, error) {
	if len(data) > 4 && bytes.Equal(data[0:4], errorSelector) {
		cv, err := ErrorABI.DecodeCallDataCtx(ctx, data)
		if err == nil && len(cv.Children) == 1 {
			if reason, ok := cv.Children[0].Value.(string); ok {
				return reason, nil
			}
		}
	}
	return "", i18n.NewError(ctx, msgs.MsgContractRevertDecode, ethtypes.HexBytes0xPrefix(data))
}
