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

package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

type ChainMetrics interface {
	IncRpc(method string)
	TransactionProcessed(success bool)
}

var METRICS_SUBSYSTEM = "chain"

type chainMetrics struct {
	rpc          *prometheus.CounterVec
	transactions *prometheus.CounterVec
}

func InitMetrics(ctx context.Context, registry *prometheus.Registry) *chainMetrics {
	metrics := &chainMetrics{}

	metrics.rpc = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rpc_total",
		Help: "Chain JSON/RPC calls", Subsystem: METRICS_SUBSYSTEM}, []string{"method"})
	metrics.transactions = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "transactions_total",
		Help: "Transactions mined, by receipt status", Subsystem: METRICS_SUBSYSTEM}, []string{"status"})

	registry.MustRegister(metrics.rpc, metrics.transactions)
	return metrics
}

func (cm *chainMetrics) IncRpc(method string) {
	cm.rpc.With(prometheus.Labels{"method": method}).Inc()
}

func (cm *chainMetrics) TransactionProcessed(success bool) {
	status := "reverted"
	if success {
		status = "success"
	}
	cm.transactions.With(prometheus.Labels{"status": status}).Inc()
}
