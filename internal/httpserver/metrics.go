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
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Option func(*httpServer)

// WithMetrics records the duration of every request in the registry, labelled with
// the server description. Servers can share one registry.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *httpServer) {
		s.requestDuration = requestDurationHistogram(reg)
	}
}

func requestDurationHistogram(reg prometheus.Registerer) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_server_request_duration_seconds",
		Help:    "Duration of HTTP requests, excluding upgraded WebSocket connections",
		Buckets: prometheus.DefBuckets,
	}, []string{"server", "method", "status"})
	if err := reg.Register(h); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}

func (s *httpServer) observe(method string, status int, duration time.Duration) {
	if s.requestDuration != nil {
		s.requestDuration.WithLabelValues(s.description, method, strconv.Itoa(status)).Observe(duration.Seconds())
	}
}
