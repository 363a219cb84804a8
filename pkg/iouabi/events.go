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
	"context"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/msgs"
)

var (
	TransferEvent           = IOweYouABI.Events()["Transfer"]
	IOUCreatedEvent         = IOweYouABI.Events()["IOUCreated"]
	IOUCompletedEvent       = IOweYouABI.Events()["IOUCompleted"]
	TokenURIAddressSetEvent = IOweYouABI.Events()["TokenURIAddressSet"]
)

// EncodeEvent builds the topics and data of a log for the event. Indexed
// parameters must be static types, each of which encodes to exactly one topic.
func EncodeEvent(ctx context.Context, event *abi.Entry, values map[string]any) (topics []ethtypes.HexBytes0xPrefix, data ethtypes.HexBytes0xPrefix, err error) {
	topics = []ethtypes.HexBytes0xPrefix{event.SignatureHashBytes()}
	var dataParams abi.ParameterArray
	dataValues := map[string]any{}
	for _, p := range event.Inputs {
		if p.Indexed {
			topic, err := EncodeParams(ctx, abi.ParameterArray{p}, map[string]any{p.Name: values[p.Name]})
			if err != nil {
				return nil, nil, i18n.WrapError(ctx, err, msgs.MsgContractEncodeFailed, p.Name, event.Name)
			}
			topics = append(topics, topic)
		} else {
			dataParams = append(dataParams, p)
			dataValues[p.Name] = values[p.Name]
		}
	}
	data, err = EncodeParams(ctx, dataParams, dataValues)
	if err != nil {
		return nil, nil, i18n.WrapError(ctx, err, msgs.MsgContractEncodeFailed, "data", event.Name)
	}
	return topics, data, nil
}

// DecodeEvent finds the event on the ABI matching topic zero, and decodes the log into the target
func DecodeEvent(ctx context.Context, a abi.ABI, topics []ethtypes.HexBytes0xPrefix, data ethtypes.HexBytes0xPrefix, into any) (*abi.Entry, error) {
	if len(topics) > 0 {
		for _, e := range a.Events() {
			if string(e.SignatureHashBytes()) == string(topics[0]) {
				cv, err := e.DecodeEventDataCtx(ctx, topics, data)
				if err == nil {
					err = unmarshalComponent(ctx, cv, into)
				}
				return e, err
			}
		}
	}
	return nil, nil
}
