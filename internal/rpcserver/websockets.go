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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aidarkhanov/nanoid"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hyperledger/firefly-common/pkg/fftypes"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/msgs"
)

type ethSubscription struct {
	c         *webSocketConnection
	id        string
	eventType string
	params    []byte
}

type webSocketConnection struct {
	ctx           context.Context
	cancelCtx     context.CancelFunc
	server        *rpcServer
	id            string
	closeMux      sync.Mutex
	closed        bool
	conn          *websocket.Conn
	subscriptions []*ethSubscription
	send          chan ([]byte)
	closing       chan (struct{})
	writeTimeout  time.Duration
}

type ethPublicationParams struct {
	Subscription string      `json:"subscription"`
	Result       interface{} `json:"result"`
}

type ethPublication struct {
	JSONRPC string               `json:"jsonrpc"`
	Method  string               `json:"method"`
	Params  ethPublicationParams `json:"params"`
}

func (s *rpcServer) newWSConnection(conn *websocket.Conn) {
	s.wsMux.Lock()
	defer s.wsMux.Unlock()

	c := &webSocketConnection{
		id:           nanoid.New(),
		server:       s,
		conn:         conn,
		send:         make(chan []byte, s.wsQueueLength),
		closing:      make(chan struct{}),
		writeTimeout: s.wsWriteTimeout,
	}
	c.ctx, c.cancelCtx = context.WithCancel(log.WithLogField(s.bgCtx, "wsconn", c.id))

	s.wsConnections[c.id] = c
	go c.listen()
	go c.sender()
}

func (s *rpcServer) wsClosed(id string) {
	s.wsMux.Lock()
	defer s.wsMux.Unlock()

	delete(s.wsConnections, id)
}

func (s *rpcServer) ethSubList() []*ethSubscription {
	s.wsMux.Lock()
	defer s.wsMux.Unlock()

	subs := make([]*ethSubscription, 0)
	for _, wsc := range s.wsConnections {
		subs = append(subs, wsc.subscriptions...)
	}
	return subs
}

// EthPublish never blocks on a subscriber. A connection that has stopped
// reading until its send queue is full is closed.
func (s *rpcServer) EthPublish(eventType string, result interface{}, match func(params []byte) bool) {
	for _, sub := range s.ethSubList() {
		if sub.eventType != eventType || (match != nil && !match(sub.params)) {
			continue
		}
		b, _ := json.Marshal(&ethPublication{
			JSONRPC: "2.0",
			Method:  "eth_subscription",
			Params: ethPublicationParams{
				Subscription: sub.id,
				Result:       result,
			},
		})
		select {
		case sub.c.send <- b:
		case <-sub.c.closing:
		default:
			log.L(sub.c.ctx).Errorf("Send queue full for subscription %s - closing connection", sub.id)
			sub.c.close()
		}
	}
}

func (c *webSocketConnection) processSubscribe(ctx context.Context, rpcReq *rpcbackend.RPCRequest) (*rpcbackend.RPCResponse, bool) {
	c.server.wsMux.Lock()
	defer c.server.wsMux.Unlock()

	var eventType string
	if len(rpcReq.Params) > 0 {
		eventType = rpcReq.Params[0].AsString()
	}
	if eventType == "" {
		return rpcbackend.RPCErrorResponse(i18n.NewError(ctx, msgs.MsgJSONRPCInvalidParam, rpcReq.Method, 0, ""),
			rpcReq.ID, rpcbackend.RPCCodeInvalidRequest), false
	}
	sub := &ethSubscription{
		c:         c,
		id:        uuid.New().String(),
		eventType: eventType,
	}
	if len(rpcReq.Params) > 1 {
		sub.params = rpcReq.Params[1].Bytes()
	}
	c.subscriptions = append(c.subscriptions, sub)
	log.L(ctx).Infof("Subscription %s created for %s", sub.id, eventType)

	return &rpcbackend.RPCResponse{
		ID:      rpcReq.ID,
		JSONRpc: "2.0",
		Result:  fftypes.JSONAnyPtr(fmt.Sprintf(`"%s"`, sub.id)),
	}, true
}

func (c *webSocketConnection) processUnsubscribe(ctx context.Context, rpcReq *rpcbackend.RPCRequest) (*rpcbackend.RPCResponse, bool) {
	c.server.wsMux.Lock()
	defer c.server.wsMux.Unlock()

	var subID string
	if len(rpcReq.Params) > 0 {
		subID = rpcReq.Params[0].AsString()
	}
	if subID == "" {
		return rpcbackend.RPCErrorResponse(i18n.NewError(ctx, msgs.MsgJSONRPCInvalidParam, rpcReq.Method, 0, ""),
			rpcReq.ID, rpcbackend.RPCCodeInvalidRequest), false
	}

	found := false
	var newSubs []*ethSubscription
	for _, s := range c.subscriptions {
		if s.id == subID {
			found = true
		} else {
			newSubs = append(newSubs, s)
		}
	}
	c.subscriptions = newSubs

	return &rpcbackend.RPCResponse{
		ID:      rpcReq.ID,
		JSONRpc: "2.0",
		Result:  fftypes.JSONAnyPtr(fmt.Sprintf("%t", found)),
	}, true
}

func (c *webSocketConnection) close() {
	c.closeMux.Lock()
	if !c.closed {
		c.closed = true
		c.conn.Close()
		close(c.closing)
		c.cancelCtx()
	}
	c.closeMux.Unlock()

	c.server.wsClosed(c.id)
	log.L(c.ctx).Infof("WS disconnected")
}

func (c *webSocketConnection) sender() {
	defer c.close()
	for {
		select {
		case payload := <-c.send:
			log.L(c.ctx).Tracef("Sending: %s", payload)
			if c.writeTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.L(c.ctx).Errorf("Send failed - closing connection: %s", err)
				return
			}
		case <-c.closing:
			return
		}
	}
}

func (c *webSocketConnection) handleMessage(payload []byte) {
	res, _ := c.server.rpcHandler(c.ctx, bytes.NewBuffer(payload), c)
	c.sendMessage(res)
}

func (c *webSocketConnection) sendMessage(res interface{}) {
	payload, err := json.Marshal(res)
	if err != nil {
		log.L(c.ctx).Errorf("Failed to serialize JSON/RPC response: %s", err)
		c.close()
		return
	}
	select {
	case c.send <- payload:
	case <-c.closing:
	}
}

func (c *webSocketConnection) listen() {
	defer c.close()
	log.L(c.ctx).Infof("WS connected")
	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			log.L(c.ctx).Errorf("Error: %s", err)
			return
		}
		log.L(c.ctx).Tracef("Received: %s", b)
		go c.handleMessage(b)
	}
}
