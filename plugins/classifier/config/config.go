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

package config

import (
	"github.com/pkg/errors"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

const (
	defaultClassifierTable    = 0
	defaultNextTable          = 1
	defaultSffTable           = 4
	defaultRelayTable         = 0
	defaultBootstrapPriority  = 5
	defaultClassifierPriority = 1000
	defaultRelayPriority      = 1000

	defaultTunnelInterfaceName = "vxlan-gpe-sfc"
	defaultTunnelPort          = 4790

	defaultOvsCommitRetries = 4
)

// Flow writers selectable by FlowWriter.
const (
	KVDBWriter     = "kvdb"
	OVSWriter      = "ovs"
	OpenFlowWriter = "openflow"
)

// Config holds the classifier configuration.
type Config struct {
	// suffix distinguishing reverse chain path name from the forward one
	ReversePathSuffix string `json:"reversePathSuffix"`

	// nsh or mac-chaining
	Encapsulation string `json:"encapsulation"`

	// if false, prefix masks of the classify engine are truncated to whole bytes
	BitExactPrefixMasks bool `json:"bitExactPrefixMasks"`

	// flow tables and priorities of the flow-table engine
	ClassifierTable    uint8  `json:"classifierTable"`
	NextTable          uint8  `json:"nextTable"`
	SffTable           uint8  `json:"sffTable"`
	RelayTable         uint8  `json:"relayTable"`
	BootstrapPriority  uint16 `json:"bootstrapPriority"`
	ClassifierPriority uint16 `json:"classifierPriority"`
	RelayPriority      uint16 `json:"relayPriority"`

	// tunnel interface used to relay reverse traffic between switches
	TunnelInterfaceName string `json:"tunnelInterfaceName"`
	TunnelPort          uint16 `json:"tunnelPort"`

	// kvdb, ovs or openflow
	FlowWriter string `json:"flowWriter"`

	// forwarders programmed through ovs-ofctl, forwarder ID -> bridge name
	OvsBridges map[string]string `json:"ovsBridges"`

	// number of retries of a failed ovs-ofctl bundle
	OvsCommitRetries int `json:"ovsCommitRetries"`

	// ports known in advance, they take precedence over ports learned from OVS
	StaticPorts []StaticPort `json:"staticPorts"`

	// static configuration applied at startup
	ChainPaths  []model.ChainPath  `json:"chainPaths"`
	ACLs        []model.ACL        `json:"acls"`
	Classifiers []model.Classifier `json:"classifiers"`
}

// StaticPort assigns an OpenFlow port number to an interface of a forwarder.
type StaticPort struct {
	ForwarderID   string `json:"forwarderId"`
	InterfaceName string `json:"interfaceName"`
	Port          uint32 `json:"port"`
}

// DefaultConfig returns configuration for the classifier plugin with default values.
func DefaultConfig() *Config {
	return &Config{
		ReversePathSuffix:   model.DefaultReversePathSuffix,
		Encapsulation:       string(model.NSH),
		BitExactPrefixMasks: true,
		ClassifierTable:     defaultClassifierTable,
		NextTable:           defaultNextTable,
		SffTable:            defaultSffTable,
		RelayTable:          defaultRelayTable,
		BootstrapPriority:   defaultBootstrapPriority,
		ClassifierPriority:  defaultClassifierPriority,
		RelayPriority:       defaultRelayPriority,
		TunnelInterfaceName: defaultTunnelInterfaceName,
		TunnelPort:          defaultTunnelPort,
		FlowWriter:          KVDBWriter,
		OvsCommitRetries:    defaultOvsCommitRetries,
	}
}

// GetEncapsulation returns the parsed encapsulation.
func (c *Config) GetEncapsulation() (model.Encapsulation, error) {
	return model.ParseEncapsulation(c.Encapsulation)
}

// Validate checks the configuration for values that cannot be worked with.
func (c *Config) Validate() error {
	if _, err := c.GetEncapsulation(); err != nil {
		return err
	}
	switch c.FlowWriter {
	case KVDBWriter, OVSWriter, OpenFlowWriter:
	default:
		return errors.Errorf("unknown flow writer: %q", c.FlowWriter)
	}
	if c.BootstrapPriority >= c.ClassifierPriority {
		return errors.Errorf("bootstrap priority (%d) must be lower than classifier priority (%d)",
			c.BootstrapPriority, c.ClassifierPriority)
	}
	for _, cls := range c.Classifiers {
		for _, ap := range cls.Attachments {
			if _, err := model.ParseAttachmentVariant(string(ap.Variant)); err != nil {
				return errors.Wrapf(err, "classifier %s", cls.Name)
			}
		}
	}
	return nil
}
