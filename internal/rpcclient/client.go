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

package rpcclient

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
)

const (
	RPCCodeParseError     int64 = int64(rpcbackend.RPCCodeParseError)
	RPCCodeInvalidRequest int64 = int64(rpcbackend.RPCCodeInvalidRequest)
	RPCCodeInternalError  int64 = int64(rpcbackend.RPCCodeInternalError)
)

// RPCCodeExecutionReverted is returned by eth_call when the contract reverts
const RPCCodeExecutionReverted int64 = 3

type RPCRequest = rpcbackend.RPCRequest

type RPCResponse = rpcbackend.RPCResponse

type RPCError = rpcbackend.RPCError

// ErrorRPC makes an rpcbackend error usable as a Go error, whose Error()
// returns the message rather than another error.
type ErrorRPC interface {
	error
	RPCError() *RPCError
}

type Client interface {
	CallRPC(ctx context.Context, result interface{}, method string, params ...interface{}) ErrorRPC
}

type WSClient interface {
	Client
	Subscribe(ctx context.Context, params ...interface{}) (Subscription, error)
	UnsubscribeAll(ctx context.Context) ErrorRPC
	Connect(ctx context.Context) error
	Close()
}

type Subscription interface {
	Notifications() chan *RPCSubscriptionNotification
	Unsubscribe(ctx context.Context) ErrorRPC
}

type RPCSubscriptionNotification struct {
	CurrentSubID string
	Result       []byte
}

func NewHTTPClient(ctx context.Context, conf *iouconf.HTTPClientConfig) (Client, error) {
	rc, err := ParseHTTPConfig(ctx, conf)
	if err != nil {
		return nil, err
	}
	return WrapRestyClient(rc), nil
}

func WrapRestyClient(rc *resty.Client) Client {
	return &httpWrap{c: rpcbackend.NewRPCClient(rc)}
}

func NewWSClient(ctx context.Context, conf *iouconf.WSClientConfig) (WSClient, error) {
	wsc, err := ParseWSConfig(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &wsWrap{c: rpcbackend.NewWSRPCClient(wsc)}, nil
}

type httpWrap struct {
	c rpcbackend.Backend
}

type errWrap struct {
	e *RPCError
}

func (w *errWrap) Error() string {
	return w.e.Message
}

func (w *errWrap) RPCError() *RPCError {
	return w.e
}

func wrapIfErr(rpcErr *RPCError) ErrorRPC {
	if rpcErr != nil {
		return &errWrap{rpcErr}
	}
	return nil
}

func (w *httpWrap) CallRPC(ctx context.Context, result interface{}, method string, params ...interface{}) ErrorRPC {
	return wrapIfErr(w.c.CallRPC(ctx, result, method, params...))
}

type wsWrap struct {
	c rpcbackend.WebSocketRPCClient
}

func (w *wsWrap) CallRPC(ctx context.Context, result interface{}, method string, params ...interface{}) ErrorRPC {
	return wrapIfErr(w.c.CallRPC(ctx, result, method, params...))
}

func (w *wsWrap) Subscribe(ctx context.Context, params ...interface{}) (Subscription, error) {
	s, rpcErr := w.c.Subscribe(ctx, params...)
	if rpcErr != nil {
		return nil, &errWrap{rpcErr}
	}
	return &sWrap{s: s}, nil
}

func (w *wsWrap) UnsubscribeAll(ctx context.Context) ErrorRPC {
	return wrapIfErr(w.c.UnsubscribeAll(ctx))
}

func (w *wsWrap) Connect(ctx context.Context) error {
	return w.c.Connect(ctx)
}

func (w *wsWrap) Close() {
	w.c.Close()
}

type sWrap struct {
	s  rpcbackend.Subscription
	ch chan *RPCSubscriptionNotification
}

func (w *sWrap) Notifications() chan *RPCSubscriptionNotification {
	if w.ch == nil {
		w.ch = make(chan *RPCSubscriptionNotification)
		go func() {
			defer close(w.ch)
			for n := range w.s.Notifications() {
				w.ch <- &RPCSubscriptionNotification{
					CurrentSubID: n.CurrentSubID,
					Result:       n.Result.Bytes(),
				}
			}
		}()
	}
	return w.ch
}

func (w *sWrap) Unsubscribe(ctx context.Context) ErrorRPC {
	return wrapIfErr(w.s.Unsubscribe(ctx))
}
