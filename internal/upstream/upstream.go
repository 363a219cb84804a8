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

package upstream

import (
	"context"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/retry"
	"github.com/kaleido-io/ioweyou/internal/rpcclient"
	"github.com/kaleido-io/ioweyou/pkg/iouabi"
	"golang.org/x/time/rate"
)

// Caller makes read-only contract calls against an external Ethereum node
type Caller interface {
	Call(ctx context.Context, to ethtypes.Address0xHex, fn *abi.Entry, inputs, outputs any) error
}

type caller struct {
	client  rpcclient.Client
	retry   *retry.Retry
	limiter *rate.Limiter
}

// NewCaller returns nil when no upstream URL is configured
func NewCaller(ctx context.Context, conf *iouconf.UpstreamConfig) (Caller, error) {
	if conf.URL == "" {
		return nil, nil
	}
	client, err := rpcclient.NewHTTPClient(ctx, &conf.HTTPClientConfig)
	if err != nil {
		return nil, err
	}
	c := wrapClient(client, &conf.Retry)
	rps := *iouconf.UpstreamDefaults.RequestsPerSecond
	if conf.RequestsPerSecond != nil {
		rps = *conf.RequestsPerSecond
	}
	if rps > 0 {
		burst := confutil.IntMin(conf.Burst, 1, *iouconf.UpstreamDefaults.Burst)
		log.L(ctx).Infof("Upstream %s limited to %.2f requests/sec (burst=%d)", conf.URL, rps, burst)
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c, nil
}

func WrapClient(client rpcclient.Client, retryConf *iouconf.RetryConfigWithMax) Caller {
	return wrapClient(client, retryConf)
}

func wrapClient(client rpcclient.Client, retryConf *iouconf.RetryConfigWithMax) *caller {
	if retryConf.MaxAttempts == nil {
		retryConf = &iouconf.DefaultHTTPConfig.Retry
	}
	return &caller{
		client: client,
		retry:  retry.NewRetryLimited(retryConf),
	}
}

type callParams struct {
	To   ethtypes.Address0xHex     `json:"to"`
	Data ethtypes.HexBytes0xPrefix `json:"data"`
}

func (c *caller) Call(ctx context.Context, to ethtypes.Address0xHex, fn *abi.Entry, inputs, outputs any) error {
	callData, err := iouabi.EncodeCall(ctx, fn, inputs)
	if err != nil {
		return err
	}
	var result ethtypes.HexBytes0xPrefix
	err = c.retry.Do(ctx, func(attempt int) (retryable bool, err error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return false, i18n.WrapError(ctx, err, msgs.MsgContextCanceled)
			}
		}
		rpcErr := c.client.CallRPC(ctx, &result, "eth_call", &callParams{To: to, Data: callData}, "latest")
		if rpcErr != nil {
			// a revert will not change on retry
			return rpcErr.RPCError().Code != rpcclient.RPCCodeExecutionReverted,
				i18n.NewError(ctx, msgs.MsgUpstreamCallFailed, to.String(), rpcErr.Error())
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if err := iouabi.DecodeOutputs(ctx, fn, result, outputs); err != nil {
		log.L(ctx).Errorf("Invalid result from %s to %s: %s", fn.Name, to.String(), err)
		return i18n.NewError(ctx, msgs.MsgUpstreamResultInvalid, to.String())
	}
	return nil
}
