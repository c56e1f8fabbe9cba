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
	"net"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

// MockLocator resolves ingress ports and tunnel endpoints from static tables.
type MockLocator struct {
	ports   map[string]model.Port
	tunnels map[string]model.TunnelEndpoint
}

// NewMockLocator creates an empty mock locator.
func NewMockLocator() *MockLocator {
	return &MockLocator{
		ports:   make(map[string]model.Port),
		tunnels: make(map[string]model.TunnelEndpoint),
	}
}

// SetPort sets the port of an interface on a switch.
func (ml *MockLocator) SetPort(forwarderID, interfaceName string, number uint32) {
	ml.ports[forwarderID+"/"+interfaceName] = model.Port{Name: interfaceName, Number: number}
}

// SetTunnel sets the tunnel endpoint of a switch.
func (ml *MockLocator) SetTunnel(forwarderID, address, interfaceName string) {
	ml.tunnels[forwarderID] = model.TunnelEndpoint{
		Address:   net.ParseIP(address),
		Port:      4790,
		Interface: interfaceName,
	}
}

// UnsetTunnel removes the tunnel endpoint of a switch.
func (ml *MockLocator) UnsetTunnel(forwarderID string) {
	delete(ml.tunnels, forwarderID)
}

// ResolveIngressPort returns the port set by SetPort.
func (ml *MockLocator) ResolveIngressPort(forwarderID, interfaceName string) (port model.Port, found bool) {
	port, found = ml.ports[forwarderID+"/"+interfaceName]
	return port, found
}

// ResolveRemoteTunnelEndpoint returns the endpoint set by SetTunnel.
func (ml *MockLocator) ResolveRemoteTunnelEndpoint(forwarderID string) (endpoint model.TunnelEndpoint, found bool) {
	endpoint, found = ml.tunnels[forwarderID]
	return endpoint, found
}
