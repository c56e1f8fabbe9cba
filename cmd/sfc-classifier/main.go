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

package main

import (
	"github.com/ligato/cn-infra/agent"
	"github.com/ligato/cn-infra/db/keyval/etcd"
	"github.com/ligato/cn-infra/health/probe"
	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/ligato/cn-infra/rpc/prometheus"
	"github.com/ligato/cn-infra/rpc/rest"
	"github.com/ligato/cn-infra/servicelabel"

	"github.com/contiv/sfc-classifier/plugins/classifier"
)

// SFCClassifier programs classifier rules of service function chains into the switches.
type SFCClassifier struct {
	ServiceLabel servicelabel.ReaderAPI
	HealthProbe  *probe.Plugin
	ETCD         *etcd.Plugin
	REST         *rest.Plugin
	Prometheus   *prometheus.Plugin
	Classifier   *classifier.Plugin
}

func (c *SFCClassifier) String() string {
	return "SFCClassifier"
}

// Init is called at startup phase. Method added in order to implement Plugin interface.
func (c *SFCClassifier) Init() error {
	return nil
}

// Close is called at cleanup phase. Method added in order to implement Plugin interface.
func (c *SFCClassifier) Close() error {
	return nil
}

func main() {
	sfcClassifier := &SFCClassifier{
		ServiceLabel: &servicelabel.DefaultPlugin,
		HealthProbe:  &probe.DefaultPlugin,
		ETCD:         &etcd.DefaultPlugin,
		REST:         &rest.DefaultPlugin,
		Prometheus:   &prometheus.DefaultPlugin,
		Classifier:   &classifier.DefaultPlugin,
	}

	a := agent.NewAgent(agent.AllPlugins(sfcClassifier))
	if err := a.Run(); err != nil {
		logrus.DefaultLogger().Fatal(err)
	}
}
