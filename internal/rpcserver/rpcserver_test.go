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

package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/rpcclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTraceForTest(t *testing.T) {
	log.EnsureInit()
	l := log.GetLevel()
	log.SetLevel("trace")
	t.Cleanup(func() {
		log.SetLevel(l)
	})
}

func newTestServerHTTP(t *testing.T, conf *iouconf.RPCServerConfig) (string, *rpcServer, func()) {
	setTraceForTest(t)

	conf.HTTP.Address = confutil.P("127.0.0.1")
	conf.HTTP.Port = confutil.P(0)
	conf.WS.Disabled = true
	s, err := NewRPCServer(context.Background(), conf)
	require.NoError(t, err)
	err = s.Start()
	require.NoError(t, err)
	return fmt.Sprintf("http://%s", s.HTTPAddr()), s, s.Stop

}

func newTestServerWebSockets(t *testing.T, conf *iouconf.RPCServerConfig) (string, *rpcServer, func()) {

	conf.WS.Address = confutil.P("127.0.0.1")
	conf.WS.Port = confutil.P(0)
	conf.HTTP.Disabled = true
	s, err := NewRPCServer(context.Background(), conf)
	require.NoError(t, err)
	err = s.Start()
	require.NoError(t, err)
	return fmt.Sprintf("ws://%s", s.WSAddr()), s, s.Stop

}

func regTestRPC(s *rpcServer, method string, handler RPCHandler) {
	group := strings.SplitN(method, "_", 2)[0]
	module := s.rpcModules[group]
	if module == nil {
		module = NewRPCModule(group)
		s.Register(module)
	}
	module.Add(method, handler)
}

func postJSON(t *testing.T, url, body string) (int, string) {
	res, err := http.DefaultClient.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(b)
}

func TestBadHTTPConfig(t *testing.T) {
	_, err := NewRPCServer(context.Background(), &iouconf.RPCServerConfig{
		HTTP: iouconf.RPCServerConfigHTTP{
			HTTPServerConfig: iouconf.HTTPServerConfig{
				Address: confutil.P("::::::wrong"),
			},
		},
		WS: iouconf.RPCServerConfigWS{Disabled: true},
	})
	assert.Regexp(t, "IO010301", err)
}

func TestBadWSConfig(t *testing.T) {
	_, err := NewRPCServer(context.Background(), &iouconf.RPCServerConfig{
		WS: iouconf.RPCServerConfigWS{
			HTTPServerConfig: iouconf.HTTPServerConfig{
				Address: confutil.P("::::::wrong"),
			},
		},
		HTTP: iouconf.RPCServerConfigHTTP{Disabled: true},
	})
	assert.Regexp(t, "IO010301", err)
}

func TestBadHTTPMethod(t *testing.T) {
	url, _, done := newTestServerHTTP(t, &iouconf.RPCServerConfig{})
	defer done()

	res, err := http.DefaultClient.Get(url)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestBadWSUpgrade(t *testing.T) {
	_, s, done := newTestServerWebSockets(t, &iouconf.RPCServerConfig{})
	defer done()

	res, err := http.DefaultClient.Get(fmt.Sprintf("http://%s", s.WSAddr()))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHTTPCallOK(t *testing.T) {
	url, s, done := newTestServerHTTP(t, &iouconf.RPCServerConfig{})
	defer done()

	regTestRPC(s, "eth_chainId", RPCMethod0(func(ctx context.Context) (string, error) {
		return "0x7a69", nil
	}))

	c, err := rpcclient.NewHTTPClient(context.Background(), &iouconf.HTTPClientConfig{URL: url})
	require.NoError(t, err)
	var chainID string
	rpcErr := c.CallRPC(context.Background(), &chainID, "eth_chainId")
	require.Nil(t, rpcErr)
	assert.Equal(t, "0x7a69", chainID)
}

func TestHTTPOptionalParam(t *testing.T) {
	url, s, done := newTestServerHTTP(t, &iouconf.RPCServerConfig{})
	defer done()

	regTestRPC(s, "eth_getBalance", RPCMethod2Opt(func(ctx context.Context, addr string, block *string) (string, error) {
		if block == nil {
			return addr + "@latest", nil
		}
		return addr + "@" + *block, nil
	}))

	status, body := postJSON(t, url, `{"jsonrpc":"2.0","id":1,"method":"eth_getBalance","params":["0xaa"]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"0xaa@latest"}`, body)

	status, body = postJSON(t, url, `{"jsonrpc":"2.0","id":2,"method":"eth_getBalance","params":["0xaa","pending"]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"result":"0xaa@pending"}`, body)

	status, _ = postJSON(t, url, `{"jsonrpc":"2.0","id":3,"method":"eth_getBalance","params":[]}`)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestHTTPErrors(t *testing.T) {
	url, s, done := newTestServerHTTP(t, &iouconf.RPCServerConfig{})
	defer done()

	regTestRPC(s, "iou_fail", RPCMethod1(func(ctx context.Context, p0 uint64) (string, error) {
		return "", fmt.Errorf("pop")
	}))

	status, body := postJSON(t, url, `{"jsonrpc":"2.0","id":1,"method":"iou_fail","params":[12345]}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, `"pop"`)

	_, body = postJSON(t, url, `{"jsonrpc":"2.0","id":1,"method":"iou_fail","params":["not a number"]}`)
	assert.Contains(t, body, "IO010404")

	_, body = postJSON(t, url, `{"jsonrpc":"2.0","id":1,"method":"iou_missing","params":[]}`)
	assert.Contains(t, body, "IO010402")

	_, body = postJSON(t, url, `{"jsonrpc":"2.0","method":"iou_fail","params":[1]}`)
	assert.Contains(t, body, "IO010401")

	_, body = postJSON(t, url, `!!! not json`)
	assert.Contains(t, body, "IO010400")

	_, body = postJSON(t, url, `[]`)
	assert.Contains(t, body, "IO010400")
}

func TestHTTPBatch(t *testing.T) {
	url, s, done := newTestServerHTTP(t, &iouconf.RPCServerConfig{})
	defer done()

	regTestRPC(s, "net_version", RPCMethod0(func(ctx context.Context) (string, error) {
		return "31337", nil
	}))

	status, body := postJSON(t, url, `[
		{"jsonrpc":"2.0","id":1,"method":"net_version","params":[]},
		{"jsonrpc":"2.0","id":2,"method":"net_unknown","params":[]}
	]`)
	assert.Equal(t, http.StatusOK, status)
	var batchRes []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &batchRes))
	require.Len(t, batchRes, 2)
	assert.Equal(t, "31337", batchRes[0]["result"])
	assert.Regexp(t, "IO010402.*net_unknown", batchRes[1]["error"].(map[string]interface{})["message"])

	status, _ = postJSON(t, url, `[{"jsonrpc":"2.0","id":2,"method":"net_unknown","params":[]}]`)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestHTTPBatchConcurrencyLimit(t *testing.T) {
	url, s, done := newTestServerHTTP(t, &iouconf.RPCServerConfig{BatchConcurrency: confutil.P(1)})
	defer done()

	var inFlight, maxInFlight atomic.Int32
	regTestRPC(s, "eth_blockNumber", RPCMethod0(func(ctx context.Context) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return "0x1", nil
	}))

	status, body := postJSON(t, url, `[
		{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber","params":[]},
		{"jsonrpc":"2.0","id":2,"method":"eth_blockNumber","params":[]},
		{"jsonrpc":"2.0","id":3,"method":"eth_blockNumber","params":[]}
	]`)
	assert.Equal(t, http.StatusOK, status)
	var batchRes []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &batchRes))
	assert.Len(t, batchRes, 3)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestBatchConcurrencyUnlimited(t *testing.T) {
	s, err := NewRPCServer(context.Background(), &iouconf.RPCServerConfig{
		HTTP:             iouconf.RPCServerConfigHTTP{Disabled: true},
		WS:               iouconf.RPCServerConfigWS{Disabled: true},
		BatchConcurrency: confutil.P(0),
	})
	require.NoError(t, err)
	assert.Equal(t, -1, s.batchLimit)

	s, err = NewRPCServer(context.Background(), &iouconf.RPCServerConfig{
		HTTP: iouconf.RPCServerConfigHTTP{Disabled: true},
		WS:   iouconf.RPCServerConfigWS{Disabled: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 16, s.batchLimit)
}

type codedError struct{}

func (codedError) Error() string { return "execution reverted: IOU does not exist." }

func (codedError) RPCCode() rpcbackend.RPCCode { return 3 }

func (codedError) RPCErrorData() interface{} { return "0x08c379a0" }

func TestCodedError(t *testing.T) {
	url, s, done := newTestServerHTTP(t, &iouconf.RPCServerConfig{})
	defer done()

	regTestRPC(s, "eth_call", RPCMethod0(func(ctx context.Context) (string, error) {
		return "", codedError{}
	}))

	_, body := postJSON(t, url, `{"jsonrpc":"2.0","id":1,"method":"eth_call","params":[]}`)
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	rpcErr := res["error"].(map[string]interface{})
	assert.Equal(t, float64(3), rpcErr["code"])
	assert.Equal(t, "execution reverted: IOU does not exist.", rpcErr["message"])
	assert.Equal(t, "0x08c379a0", rpcErr["data"])
}

func TestModuleNaming(t *testing.T) {
	m := NewRPCModule("iou")
	m.Add("iou_getIOU", RPCMethod0(func(ctx context.Context) (bool, error) { return true, nil }))
	assert.Equal(t, []string{"iou_getIOU"}, m.MethodNames())
	assert.Panics(t, func() {
		m.Add("eth_call", RPCMethod0(func(ctx context.Context) (bool, error) { return true, nil }))
	})
	assert.Panics(t, func() {
		m.Add("iou_getIOU", RPCMethod0(func(ctx context.Context) (bool, error) { return true, nil }))
	})
}

func TestResultSerializationFailure(t *testing.T) {
	url, s, done := newTestServerHTTP(t, &iouconf.RPCServerConfig{})
	defer done()

	regTestRPC(s, "iou_badResult", RPCMethod0(func(ctx context.Context) (map[bool]bool, error) {
		return map[bool]bool{true: false}, nil
	}))

	_, body := postJSON(t, url, `{"jsonrpc":"2.0","id":1,"method":"iou_badResult","params":[]}`)
	assert.Contains(t, body, "IO010405")
}

func TestHTTPRouterExtraRoutes(t *testing.T) {
	conf := &iouconf.RPCServerConfig{}
	conf.HTTP.Address = confutil.P("127.0.0.1")
	conf.HTTP.Port = confutil.P(0)
	conf.WS.Disabled = true
	s, err := NewRPCServer(context.Background(), conf)
	require.NoError(t, err)
	s.HTTPRouter().HandleJSON(http.MethodGet, "/healthz", func(req *http.Request, vars map[string]string) (int, interface{}) {
		return http.StatusOK, map[string]string{"status": "ok"}
	})
	require.NoError(t, s.Start())
	defer s.Stop()

	res, err := http.Get(fmt.Sprintf("http://%s/healthz", s.HTTPAddr()))
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(b))

	// JSON/RPC is still served at the root
	status, _ := postJSON(t, fmt.Sprintf("http://%s", s.HTTPAddr()), `{"jsonrpc":"2.0","id":1,"method":"eth_chainId"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestHTTPRouterDisabled(t *testing.T) {
	_, s, done := newTestServerWebSockets(t, &iouconf.RPCServerConfig{})
	defer done()
	assert.Nil(t, s.HTTPRouter())
}
