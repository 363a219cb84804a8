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

var WSDefaults = RPCServerConfigWS{
	ReadBufferSize:      confutil.P("64KB"),
	WriteBufferSize:     confutil.P("64KB"),
	SendQueueLength:     confutil.P(100),
	MessageWriteTimeout: confutil.P("10s"),
}

type RPCServerConfigHTTP struct {
	Disabled         bool `json:"disabled,omitempty"`
	HTTPServerConfig `json:",inline"`
}

type RPCServerConfigWS struct {
	Disabled         bool `json:"disabled,omitempty"`
	HTTPServerConfig `json:",inline"`
	ReadBufferSize   *string `json:"readBufferSize"`
	WriteBufferSize  *string `json:"writeBufferSize"`
	// connections whose queue of undelivered messages reaches this length are closed
	SendQueueLength     *int    `json:"sendQueueLength"`
	MessageWriteTimeout *string `json:"messageWriteTimeout"`
}

type RPCServerConfig struct {
	HTTP RPCServerConfigHTTP `json:"http,omitempty"`
	WS   RPCServerConfigWS   `json:"ws,omitempty"`
	// the most requests of one batch processed at once (unlimited when zero)
	BatchConcurrency *int `json:"batchConcurrency"`
}

var RPCServerDefaults = &RPCServerConfig{
	BatchConcurrency: confutil.P(16),
}
