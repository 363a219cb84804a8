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

type LedgerMetrics interface {
	IOUCreated()
	IOUCompleted(side string)
	IOUBurned()
}

var METRICS_SUBSYSTEM = "ledger"

type ledgerMetrics struct {
	created   prometheus.Counter
	completed *prometheus.CounterVec
	burned    prometheus.Counter
}

func InitMetrics(ctx context.Context, registry *prometheus.Registry) *ledgerMetrics {
	metrics := &ledgerMetrics{}

	metrics.created = prometheus.NewCounter(prometheus.CounterOpts{Name: "ious_created_total",
		Help: "IOUs minted", Subsystem: METRICS_SUBSYSTEM})
	metrics.completed = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ious_completed_total",
		Help: "IOU completions by the completing party", Subsystem: METRICS_SUBSYSTEM}, []string{"side"})
	metrics.burned = prometheus.NewCounter(prometheus.CounterOpts{Name: "ious_burned_total",
		Help: "IOUs burned after completion by both parties", Subsystem: METRICS_SUBSYSTEM})

	registry.MustRegister(metrics.created, metrics.completed, metrics.burned)
	return metrics
}

func (lm *ledgerMetrics) IOUCreated() {
	lm.created.Inc()
}

func (lm *ledgerMetrics) IOUCompleted(side string) {
	lm.completed.With(prometheus.Labels{"side": side}).Inc()
}

func (lm *ledgerMetrics) IOUBurned() {
	lm.burned.Inc()
}
