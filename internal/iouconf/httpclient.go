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

type HTTPBasicAuthConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HTTPClientConfig configures a JSON/RPC connection to an Ethereum node.
// An empty URL means the connection is disabled.
type HTTPClientConfig struct {
	URL               string                 `json:"url"`
	HTTPHeaders       map[string]interface{} `json:"httpHeaders"`
	Auth              HTTPBasicAuthConfig    `json:"auth"`
	RequestTimeout    *string                `json:"requestTimeout,omitempty"`
	ConnectionTimeout *string                `json:"connectionTimeout,omitempty"`
	Retry             RetryConfigWithMax     `json:"retry"`
}

var DefaultHTTPConfig = &HTTPClientConfig{
	ConnectionTimeout: confutil.P("30s"),
	RequestTimeout:    confutil.P("30s"),
	Retry: RetryConfigWithMax{
		RetryConfig: RetryConfig{
			InitialDelay: confutil.P("250ms"),
			MaxDelay:     confutil.P("5s"),
			Factor:       confutil.P(2.0),
		},
		MaxAttempts: confutil.P(3),
	},
}

// UpstreamConfig adds a client-side rate limit, for providers that throttle callers
type UpstreamConfig struct {
	HTTPClientConfig `json:",inline"`
	// zero disables the limit
	RequestsPerSecond *float64 `json:"requestsPerSecond"`
	Burst             *int     `json:"burst"`
}

var UpstreamDefaults = &UpstreamConfig{
	RequestsPerSecond: confutil.P(0.0),
	Burst:             confutil.P(1),
}

type RetryConfig struct {
	InitialDelay *string  `json:"initialDelay"`
	MaxDelay     *string  `json:"maxDelay"`
	Factor       *float64 `json:"factor"`
}

type RetryConfigWithMax struct {
	RetryConfig `json:",inline"`
	MaxAttempts *int `json:"maxAttempts"`
}

var RetryDefaults = &RetryConfigWithMax{
	RetryConfig: RetryConfig{
		InitialDelay: confutil.P("250ms"),
		MaxDelay:     confutil.P("30s"),
		Factor:       confutil.P(2.0),
	},
	MaxAttempts: confutil.P(0),
}

type CacheConfig struct {
	Capacity *int `json:"capacity"`
	// entries older than the TTL are reloaded. Zero keeps entries until evicted.
	TTL *string `json:"ttl"`
}

type WSClientConfig struct {
	HTTPClientConfig       `json:",inline"`
	ReadBufferSize         *string     `json:"readBufferSize"`
	WriteBufferSize        *string     `json:"writeBufferSize"`
	InitialConnectAttempts *int        `json:"initialConnectAttempts"`
	ConnectRetry           RetryConfig `json:"connectRetry"`
	HeartbeatInterval      *string     `json:"heartbeatInterval"`
}

var DefaultWSConfig = &WSClientConfig{
	ReadBufferSize:         confutil.P("16Kb"),
	WriteBufferSize:        confutil.P("16Kb"),
	InitialConnectAttempts: confutil.P(0),
	HeartbeatInterval:      confutil.P("15s"),
	ConnectRetry:           RetryDefaults.RetryConfig,
}
