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

package node

import (
	"context"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/kaleido-io/ioweyou/internal/chain"
	chainmetrics "github.com/kaleido-io/ioweyou/internal/chain/metrics"
	"github.com/kaleido-io/ioweyou/internal/confutil"
	"github.com/kaleido-io/ioweyou/internal/contracts"
	"github.com/kaleido-io/ioweyou/internal/httpserver"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/ledger"
	ledgermetrics "github.com/kaleido-io/ioweyou/internal/ledger/metrics"
	"github.com/kaleido-io/ioweyou/internal/log"
	"github.com/kaleido-io/ioweyou/internal/metrics"
	"github.com/kaleido-io/ioweyou/internal/metricsserver"
	"github.com/kaleido-io/ioweyou/internal/msgs"
	"github.com/kaleido-io/ioweyou/internal/persistence"
	"github.com/kaleido-io/ioweyou/internal/reverseregistry"
	"github.com/kaleido-io/ioweyou/internal/rpcserver"
	"github.com/kaleido-io/ioweyou/internal/tokenuri"
	"github.com/kaleido-io/ioweyou/internal/upstream"
)

type Node interface {
	Start() error
	Stop()

	ID() uuid.UUID
	Chain() chain.Chain
	RPCServer() rpcserver.RPCServer
}

type node struct {
	bgCtx context.Context
	id    uuid.UUID
	conf  *iouconf.Config

	persistence    persistence.Persistence
	metricsManager metrics.Metrics
	rpcServer      rpcserver.RPCServer
	metricsServer  metricsserver.MetricsServer
	chain          chain.Chain

	started []stoppable
	opened  []closeable
}

type stoppable interface {
	Stop()
}

type closeable interface {
	Close()
}

func NewNode(bgCtx context.Context, conf *iouconf.Config) Node {
	log.InitConfig(&conf.Log)
	id := uuid.New()
	return &node{
		bgCtx: log.WithLogField(bgCtx, "node", id.String()),
		id:    id,
		conf:  conf,
	}
}

func applyPortDefaults(conf *iouconf.Config) {
	if conf.RPCServer.HTTP.Port == nil {
		conf.RPCServer.HTTP.Port = confutil.P(iouconf.DefaultHTTPPort)
	}
	if conf.RPCServer.WS.Port == nil {
		conf.RPCServer.WS.Port = confutil.P(iouconf.DefaultWebSocketPort)
	}
	if conf.MetricsServer.Port == nil {
		conf.MetricsServer.Port = confutil.P(iouconf.DefaultMetricsPort)
	}
}

func (n *node) Start() (err error) {
	ctx := n.bgCtx
	log.L(ctx).Infof("Starting IOweYou node")
	applyPortDefaults(n.conf)

	n.metricsManager = metrics.NewMetricsManager()
	registry := n.metricsManager.Registry()

	n.persistence, err = persistence.NewPersistence(ctx, &n.conf.DB)
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgNodeStartFailed, "persistence")
	}
	n.opened = append(n.opened, n.persistence)

	up, err := upstream.NewCaller(ctx, &n.conf.Upstream)
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgNodeStartFailed, "upstream")
	}

	store := contracts.NewStore()
	resolver, err := tokenuri.NewResolver(ctx, &n.conf.TokenURI, store, up)
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgNodeStartFailed, "tokenURI")
	}
	names, err := reverseregistry.NewRegistry(ctx, &n.conf.ReverseRegistry, up)
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgNodeStartFailed, "reverseRegistry")
	}
	l := ledger.NewLedger(store, resolver, names, ledgermetrics.InitMetrics(ctx, registry))

	rpcServer, err := rpcserver.NewRPCServer(ctx, &n.conf.RPCServer, httpserver.WithMetrics(registry))
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgNodeStartFailed, "rpcServer")
	}
	n.rpcServer = rpcServer

	n.chain = chain.NewChain(&n.conf.Chain, n.id.String(), n.persistence, store, l,
		[]contracts.Engine{resolver.Engine()}, n.rpcServer, chainmetrics.InitMetrics(ctx, registry))
	for _, m := range n.chain.RPCModules() {
		n.rpcServer.Register(m)
	}
	if r := n.rpcServer.HTTPRouter(); r != nil {
		n.chain.RegisterREST(r)
	}

	if err = n.rpcServer.Start(); err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgNodeStartFailed, "rpcServer")
	}
	n.started = append(n.started, n.rpcServer)

	metricsServer, err := metricsserver.NewMetricsServer(ctx, registry, &n.conf.MetricsServer)
	if err == nil {
		n.metricsServer = metricsServer
		err = n.metricsServer.Start()
	}
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgNodeStartFailed, "metricsServer")
	}
	n.started = append(n.started, n.metricsServer)

	log.L(ctx).Infof("IOweYou node started (chainId=%d)", n.chain.ChainID())
	return nil
}

// Stop shuts down servers before closing the database, and is safe after a partial start
func (n *node) Stop() {
	log.L(n.bgCtx).Info("Stopping")
	for i := len(n.started) - 1; i >= 0; i-- {
		n.started[i].Stop()
	}
	for i := len(n.opened) - 1; i >= 0; i-- {
		n.opened[i].Close()
	}
	n.started, n.opened = nil, nil
	log.L(n.bgCtx).Debug("Stopped")
}

func (n *node) ID() uuid.UUID {
	return n.id
}

func (n *node) Chain() chain.Chain {
	return n.chain
}

func (n *node) RPCServer() rpcserver.RPCServer {
	return n.rpcServer
}
