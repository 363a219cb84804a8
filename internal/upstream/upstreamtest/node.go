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

// Package upstreamtest serves a fake Ethereum node that answers eth_call from Go functions
package upstreamtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"github.com/stretchr/testify/require"
)

// CallHandler receives the decoded inputs, and returns outputs to encode or a JSON/RPC error
type CallHandler func(to string, fn *abi.Entry, inputs map[string]any) (outputs map[string]any, errCode int64, errMsg string)

type Node struct {
	URL string
	// RawResult replaces the encoded outputs of every call when set
	RawResult ethtypes.HexBytes0xPrefix
	calls     atomic.Int32
}

func (n *Node) Calls() int {
	return int(n.calls.Load())
}

func (n *Node) Config() *iouconf.UpstreamConfig {
	return &iouconf.UpstreamConfig{
		HTTPClientConfig: iouconf.HTTPClientConfig{
			URL: n.URL,
			Retry: iouconf.RetryConfigWithMax{
				RetryConfig: iouconf.RetryConfig{InitialDelay: ptr("1ms"), MaxDelay: ptr("1ms")},
				MaxAttempts: ptr(3),
			},
		},
	}
}

func ptr[T any](v T) *T {
	return &v
}

func NewNode(t *testing.T, a abi.ABI, handler CallHandler) *Node {
	n := &Node{}
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.calls.Add(1)
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		res := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		var call struct {
			To   string                    `json:"to"`
			Data ethtypes.HexBytes0xPrefix `json:"data"`
		}
		require.Equal(t, "eth_call", req.Method)
		require.NoError(t, json.Unmarshal(req.Params[0], &call))

		ctx := context.Background()
		fn, err := iouabi.FunctionForCallData(ctx, a, "upstream", call.Data)
		require.NoError(t, err)
		inputs := map[string]any{}
		require.NoError(t, iouabi.DecodeCall(ctx, fn, call.Data, &inputs))

		outputs, errCode, errMsg := handler(call.To, fn, inputs)
		if errMsg != "" {
			res["error"] = map[string]any{"code": errCode, "message": errMsg}
		} else if n.RawResult != nil {
			res["result"] = n.RawResult
		} else {
			data, err := iouabi.EncodeOutputs(ctx, fn, outputs)
			require.NoError(t, err)
			res["result"] = data
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	}))
	t.Cleanup(s.Close)
	n.URL = s.URL
	return n
}
