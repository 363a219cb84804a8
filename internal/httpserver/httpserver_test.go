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

package httpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, conf *iouconf.HTTPServerConfig, handler http.HandlerFunc, opts ...Option) (string, *httpServer, func()) {

	conf.Address = confutil.P("127.0.0.1")
	conf.Port = confutil.P(0)
	s, err := NewServer(context.Background(), "unittest", conf, handler, opts...)
	require.NoError(t, err)
	hs := s.(*httpServer)
	err = s.Start()
	require.NoError(t, err)

	return fmt.Sprintf("http://%s", s.Addr()), hs, s.Stop

}

func TestMissingPort(t *testing.T) {
	_, err := NewServer(context.Background(), "unittest", &iouconf.HTTPServerConfig{}, nil)
	assert.Regexp(t, "IO010301", err)
}

func TestBadAddress(t *testing.T) {
	_, err := NewServer(context.Background(), "unittest", &iouconf.HTTPServerConfig{
		Port:    confutil.P(0),
		Address: confutil.P(":::::badness"),
	}, nil)
	assert.Regexp(t, "IO010300", err)
}

func TestServeOK(t *testing.T) {
	url, _, done := newTestServer(t, &iouconf.HTTPServerConfig{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.Method, http.MethodPost)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write(([]byte)(`{"jsonrpc":"2.0","id":1,"result":"0x7a69"}`))
		require.NoError(t, err)
	})
	defer done()

	req, err := http.NewRequest(http.MethodPost, url, nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"0x7a69"}`, (string)(data))
}

func TestForceShutdown(t *testing.T) {
	requestStarted := make(chan struct{})
	url, _, done := newTestServer(t, &iouconf.HTTPServerConfig{
		ShutdownTimeout: confutil.P("1ns"),
	}, func(w http.ResponseWriter, r *http.Request) {
		close(requestStarted)
		<-r.Context().Done()
	})

	req, err := http.NewRequest(http.MethodPost, url, nil)
	require.NoError(t, err)

	returned := make(chan error)
	go func() {
		_, err := http.DefaultClient.Do(req)
		returned <- err
	}()
	<-requestStarted

	done()
	assert.Regexp(t, "EOF", <-returned)
}

func TestServeCustomTimeout(t *testing.T) {
	url, _, done := newTestServer(t, &iouconf.HTTPServerConfig{}, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		w.WriteHeader(http.StatusRequestTimeout)
	})
	defer done()

	req, err := http.NewRequest(http.MethodPost, url, nil)
	require.NoError(t, err)
	req.Header.Set("Request-Timeout", "1ns")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestTimeout, res.StatusCode)
}

func TestParseCustomTimeout(t *testing.T) {
	url, s, done := newTestServer(t, &iouconf.HTTPServerConfig{}, func(w http.ResponseWriter, r *http.Request) {})
	defer done()

	req, err := http.NewRequest(http.MethodPost, url, nil)
	require.NoError(t, err)

	req.Header.Set("Request-Timeout", "1")
	assert.Equal(t, 1*time.Second, s.calcRequestTimeout(req, 10*time.Second, 20*time.Second))

	req.Header.Set("Request-Timeout", "1ms")
	assert.Equal(t, 1*time.Millisecond, s.calcRequestTimeout(req, 10*time.Second, 20*time.Second))

	req.Header.Set("Request-Timeout", "30")
	assert.Equal(t, 20*time.Second, s.calcRequestTimeout(req, 10*time.Second, 20*time.Second))

	req.Header.Set("Request-Timeout", "wrongness")
	assert.Equal(t, 10*time.Second, s.calcRequestTimeout(req, 10*time.Second, 20*time.Second))
}

func TestHijackNotSupported(t *testing.T) {
	lc := &logCapture{res: httptest.NewRecorder()}
	_, _, err := lc.Hijack()
	assert.Regexp(t, "IO010302", err)
}

func TestCorsWrapperDisabled(t *testing.T) {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("CalledServer", "true")
	})
	s := httptest.NewServer(WrapCorsIfEnabled(context.Background(), hf, &iouconf.CORSConfig{}))
	defer s.Close()

	req, err := http.NewRequest(http.MethodOptions, s.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dapp.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "true", res.Header.Get("CalledServer"))
}

func TestCorsWrapperEnabledHostOk(t *testing.T) {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("CalledServer", "true")
	})
	s := httptest.NewServer(WrapCorsIfEnabled(context.Background(), hf, &iouconf.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://dapp.example"},
	}))
	defer s.Close()

	req, err := http.NewRequest(http.MethodGet, s.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dapp.example")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "true", res.Header.Get("CalledServer"))
	assert.Equal(t, "https://dapp.example", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestCorsWrapperEnabledHostFail(t *testing.T) {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("CalledServer", "true")
	})
	s := httptest.NewServer(WrapCorsIfEnabled(context.Background(), hf, &iouconf.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://dapp.example"},
	}))
	defer s.Close()

	req, err := http.NewRequest(http.MethodGet, s.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://other.example")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestRequestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	url, _, done := newTestServer(t, &iouconf.HTTPServerConfig{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}, WithMetrics(reg))
	defer done()

	// a second server shares the histogram
	_, _, done2 := newTestServer(t, &iouconf.HTTPServerConfig{}, func(w http.ResponseWriter, r *http.Request) {}, WithMetrics(reg))
	defer done2()

	res, err := http.Get(url)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, res.StatusCode)

	count, err := testutil.GatherAndCount(reg, "http_server_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRequestMetricsRegistrationConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "http_server_request_duration_seconds"}))
	assert.Panics(t, func() {
		_, _ = NewServer(context.Background(), "unittest", &iouconf.HTTPServerConfig{Port: confutil.P(0)}, nil, WithMetrics(reg))
	})
}
