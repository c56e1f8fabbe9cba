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

package locator

import (
	"sync"

	"github.com/ligato/cn-infra/logging"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

// PortResolver resolves the ingress port of an interface on a switch.
type PortResolver interface {
	ResolveIngressPort(forwarderID, interfaceName string) (port model.Port, found bool)
}

// StaticPorts is a PortResolver backed by a fixed table.
type StaticPorts struct {
	sync.RWMutex
	ports map[string]map[string]model.Port
}

// NewStaticPorts creates an empty static port table.
func NewStaticPorts() *StaticPorts {
	return &StaticPorts{ports: make(map[string]map[string]model.Port)}
}

// Set adds or replaces the port of an interface.
func (sp *StaticPorts) Set(forwarderID, interfaceName string, port model.Port) {
	sp.Lock()
	defer sp.Unlock()
	if _, has := sp.ports[forwarderID]; !has {
		sp.ports[forwarderID] = make(map[string]model.Port)
	}
	if port.Name == "" {
		port.Name = interfaceName
	}
	sp.ports[forwarderID][interfaceName] = port
}

// ResolveIngressPort returns the port from the table.
func (sp *StaticPorts) ResolveIngressPort(forwarderID, interfaceName string) (port model.Port, found bool) {
	sp.RLock()
	defer sp.RUnlock()
	port, found = sp.ports[forwarderID][interfaceName]
	return port, found
}

// InterfaceNamePorts resolves any interface to a port referenced by name only,
// which is all the classify engine needs.
type InterfaceNamePorts struct{}

// ResolveIngressPort returns port named after the interface.
func (InterfaceNamePorts) ResolveIngressPort(forwarderID, interfaceName string) (port model.Port, found bool) {
	if interfaceName == "" {
		return port, false
	}
	return model.Port{Name: interfaceName}, true
}

// OFPortGetter reads the OpenFlow port number of an interface.
type OFPortGetter interface {
	GetOFPort(interfaceName string) (uint32, error)
}

// OVSPorts resolves ports of the local OVS bridges by querying the switch.
type OVSPorts struct {
	Log logging.Logger

	// forwarders served by the local OVS
	Forwarders map[string]OFPortGetter
}

// ResolveIngressPort asks OVS for the ofport of the interface.
func (op *OVSPorts) ResolveIngressPort(forwarderID, interfaceName string) (port model.Port, found bool) {
	getter, local := op.Forwarders[forwarderID]
	if !local {
		return port, false
	}
	ofPort, err := getter.GetOFPort(interfaceName)
	if err != nil {
		op.Log.Warnf("Failed to get ofport of %s on %s: %v", interfaceName, forwarderID, err)
		return port, false
	}
	return model.Port{Name: interfaceName, Number: ofPort}, true
}

// PortChain asks resolvers in order, the first to succeed wins.
type PortChain []PortResolver

// ResolveIngressPort returns the first resolved port.
func (pc PortChain) ResolveIngressPort(forwarderID, interfaceName string) (port model.Port, found bool) {
	for _, resolver := range pc {
		if port, found = resolver.ResolveIngressPort(forwarderID, interfaceName); found {
			return port, true
		}
	}
	return port, false
}
