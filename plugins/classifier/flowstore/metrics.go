// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flowstore

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	commitsMetric        = "sfc_classifier_flow_commits_total"
	installedFlowsMetric = "sfc_classifier_installed_flows"
	pathsMetric          = "sfc_classifier_paths"

	opLabel     = "op"
	resultLabel = "result"

	opAdd    = "add"
	opDelete = "delete"

	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics of the flow store. Nil *Metrics is valid and records nothing.
type Metrics struct {
	commits   *prometheus.CounterVec
	installed prometheus.Gauge
	paths     prometheus.Gauge
}

// NewMetrics creates metrics of the flow store, labeled with the given agent label.
func NewMetrics(agentLabel string) *Metrics {
	constLabels := prometheus.Labels{"node": agentLabel}
	return &Metrics{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        commitsMetric,
			Help:        "Number of committed rule batches",
			ConstLabels: constLabels,
		}, []string{opLabel, resultLabel}),
		installed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        installedFlowsMetric,
			Help:        "Number of installed classifier rules",
			ConstLabels: constLabels,
		}),
		paths: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        pathsMetric,
			Help:        "Number of paths with installed rules",
			ConstLabels: constLabels,
		}),
	}
}

// Collectors returns all metrics for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.commits, m.installed, m.paths}
}

func (m *Metrics) commitDone(op string, err error) {
	if m == nil {
		return
	}
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}
	m.commits.WithLabelValues(op, result).Inc()
}

func (m *Metrics) setIndexSize(flows, paths int) {
	if m == nil {
		return
	}
	m.installed.Set(float64(flows))
	m.paths.Set(float64(paths))
}
