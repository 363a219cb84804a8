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
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/httpserver"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/router"
)

type RPCServer interface {
	Start() error
	Stop()
	HTTPAddr() net.Addr
	WSAddr() net.Addr

	Register(module *RPCModule)

	// HTTPRouter is nil when HTTP is disabled. Routes other than "/" can be added before Start.
	HTTPRouter() router.Router

	// EthPublish delivers an eth_subscription notification to every WebSocket
	// subscription of the given type whose params are accepted by match (nil matches all)
	EthPublish(eventType string, result interface{}, match func(params []byte) bool)
}

func NewRPCServer(ctx context.Context, conf *iouconf.RPCServerConfig, opts ...httpserver.Option) (_ *rpcServer, err error) {
	s := &rpcServer{
		bgCtx:         ctx,
		wsConnections: make(map[string]*webSocketConnection),
		rpcModules:    make(map[string]*RPCModule),
		batchLimit:    confutil.IntMin(conf.BatchConcurrency, 0, *iouconf.RPCServerDefaults.BatchConcurrency),
	}
	if s.batchLimit == 0 {
		s.batchLimit = -1
	}

	if !conf.HTTP.Disabled {
		r, err := router.NewRouter(s.bgCtx, "JSON/RPC (HTTP)", &conf.HTTP.HTTPServerConfig, opts...)
		if err != nil {
			return nil, err
		}
		r.HandleFunc("/", s.httpHandler)
		s.httpServer = r
	}

	if !conf.WS.Disabled {
		s.wsUpgrader = &websocket.Upgrader{
			ReadBufferSize:  int(confutil.ByteSize(conf.WS.ReadBufferSize, 0, *iouconf.WSDefaults.ReadBufferSize)),
			WriteBufferSize: int(confutil.ByteSize(conf.WS.WriteBufferSize, 0, *iouconf.WSDefaults.WriteBufferSize)),
			CheckOrigin:     func(r *http.Request) bool { return true },
		}
		s.wsQueueLength = confutil.IntMin(conf.WS.SendQueueLength, 1, *iouconf.WSDefaults.SendQueueLength)
		s.wsWriteTimeout = confutil.DurationMin(conf.WS.MessageWriteTimeout, 0, *iouconf.WSDefaults.MessageWriteTimeout)
		log.L(ctx).Infof("WebSocket server readBufferSize=%d writeBufferSize=%d sendQueueLength=%d", s.wsUpgrader.ReadBufferSize, s.wsUpgrader.WriteBufferSize, s.wsQueueLength)
		if s.wsServer, err = httpserver.NewServer(ctx, "JSON/RPC (WebSocket)", &conf.WS.HTTPServerConfig, http.HandlerFunc(s.wsHandler), opts...); err != nil {
			return nil, err
		}
	}

	return s, err
}

var _ RPCServer = &rpcServer{}

type rpcServer struct {
	bgCtx          context.Context
	httpServer     router.Router
	wsServer       httpserver.Server
	wsMux          sync.Mutex
	wsUpgrader     *websocket.Upgrader
	wsConnections  map[string]*webSocketConnection
	rpcModules     map[string]*RPCModule
	batchLimit     int
	wsQueueLength  int
	wsWriteTimeout time.Duration
}

func (s *rpcServer) Register(module *RPCModule) {
	log.L(s.bgCtx).Debugf("RPC module %s registered: %v", module.group, module.MethodNames())
	s.rpcModules[module.group] = module
}

func (s *rpcServer) HTTPRouter() router.Router {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer
}

func (s *rpcServer) HTTPAddr() (a net.Addr) {
	if s.httpServer != nil {
		a = s.httpServer.Addr()
	}
	return a
}

func (s *rpcServer) WSAddr() (a net.Addr) {
	if s.wsServer != nil {
		a = s.wsServer.Addr()
	}
	return a
}

func (s *rpcServer) httpHandler(res http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		res.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rpcRes, isOK := s.rpcHandler(req.Context(), req.Body, nil)

	res.Header().Set("Content-Type", "application/json; charset=utf-8")
	status := http.StatusOK
	if !isOK {
		status = http.StatusInternalServerError
	}
	res.WriteHeader(status)
	_ = json.NewEncoder(res).Encode(rpcRes)
}

func (s *rpcServer) wsHandler(res http.ResponseWriter, req *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(res, req, nil)
	if err != nil {
		log.L(req.Context()).Errorf("WebSocket upgrade failed: %s", err)
		return
	}
	s.newWSConnection(conn)
}

func (s *rpcServer) Start() (err error) {
	if s.httpServer != nil {
		err = s.httpServer.Start()
	}
	if err == nil && s.wsServer != nil {
		err = s.wsServer.Start()
	}
	return err
}

func (s *rpcServer) Stop() {
	s.wsMux.Lock()
	conns := make([]*webSocketConnection, 0, len(s.wsConnections))
	for _, c := range s.wsConnections {
		conns = append(conns, c)
	}
	s.wsMux.Unlock()
	for _, c := range conns {
		c.close()
	}

	wg := new(sync.WaitGroup)
	if s.httpServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.httpServer.Stop()
		}()
	}
	if s.wsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.wsServer.Stop()
		}()
	}
	wg.Wait()
}
