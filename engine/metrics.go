// Copyright 2025 PolyCrypt GmbH
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

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "nitro_engine"

// Metrics are the prometheus collectors of an engine.
type Metrics struct {
	Cranks     *prometheus.CounterVec
	Terminal   *prometheus.CounterVec
	Dropped    *prometheus.CounterVec
	Actions    *prometheus.CounterVec
	Objectives prometheus.Gauge
	Channels   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cranks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cranks_total",
			Help:      "Number of events applied to objectives.",
		}, []string{"protocol", "event"}),
		Terminal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "objectives_terminated_total",
			Help:      "Number of objectives that reached a terminal status.",
		}, []string{"protocol", "status"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "inputs_dropped_total",
			Help:      "Number of inputs the engine discarded.",
		}, []string{"reason"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "actions_total",
			Help:      "Number of executed actions.",
		}, []string{"action"}),
		Objectives: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "objectives_running",
			Help:      "Number of objectives that are not terminal.",
		}),
		Channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "channels",
			Help:      "Number of channels with an actor.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Cranks, m.Terminal, m.Dropped, m.Actions, m.Objectives, m.Channels)
	}
	return m
}
