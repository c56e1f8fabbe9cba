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
	"sync"

	"github.com/ligato/cn-infra/db/keyval"
	"github.com/ligato/cn-infra/logging"
	"github.com/ligato/cn-infra/servicelabel"
	vpp_interfaces "github.com/ligato/vpp-agent/api/models/vpp/interfaces"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

// KVBrokerFactory is used to create a broker for the key prefix of a forwarder.
type KVBrokerFactory interface {
	NewBroker(keyPrefix string) keyval.ProtoBroker
}

// TunnelLocator resolves tunnel endpoints of forwarders from the configuration
// of their tunnel interfaces stored in the key-value store.
// Resolved endpoints are cached until invalidated.
type TunnelLocator struct {
	Deps

	sync.Mutex
	cache map[string]model.TunnelEndpoint
}

// Deps lists dependencies of the TunnelLocator.
type Deps struct {
	Log           logging.Logger
	KVStore       KVBrokerFactory
	InterfaceName string
	TunnelPort    uint16
}

// NewTunnelLocator creates a new TunnelLocator.
func NewTunnelLocator(deps Deps) *TunnelLocator {
	return &TunnelLocator{
		Deps:  deps,
		cache: make(map[string]model.TunnelEndpoint),
	}
}

// ResolveRemoteTunnelEndpoint returns the endpoint of the VXLAN tunnel interface
// configured on the given forwarder.
func (tl *TunnelLocator) ResolveRemoteTunnelEndpoint(forwarderID string) (endpoint model.TunnelEndpoint, found bool) {
	tl.Lock()
	defer tl.Unlock()

	if endpoint, found = tl.cache[forwarderID]; found {
		return endpoint, true
	}

	broker := tl.KVStore.NewBroker(servicelabel.GetDifferentAgentPrefix(forwarderID))
	iface := &vpp_interfaces.Interface{}
	found, _, err := broker.GetValue(vpp_interfaces.InterfaceKey(tl.InterfaceName), iface)
	if err != nil {
		tl.Log.Errorf("Failed to read tunnel interface %s of %s: %v", tl.InterfaceName, forwarderID, err)
		return endpoint, false
	}
	if !found {
		tl.Log.Debugf("Tunnel interface %s of %s not found", tl.InterfaceName, forwarderID)
		return endpoint, false
	}
	vxlan := iface.GetVxlan()
	if vxlan == nil {
		tl.Log.Warnf("Interface %s of %s is not a VXLAN tunnel", tl.InterfaceName, forwarderID)
		return endpoint, false
	}
	address := net.ParseIP(vxlan.SrcAddress)
	if address == nil {
		tl.Log.Warnf("Tunnel interface %s of %s has invalid source address %q",
			tl.InterfaceName, forwarderID, vxlan.SrcAddress)
		return endpoint, false
	}

	endpoint = model.TunnelEndpoint{
		Address:   address,
		Port:      tl.TunnelPort,
		Interface: iface.Name,
	}
	tl.cache[forwarderID] = endpoint
	return endpoint, true
}

// Invalidate drops the cached endpoint of a forwarder (all forwarders if empty).
func (tl *TunnelLocator) Invalidate(forwarderID string) {
	tl.Lock()
	defer tl.Unlock()
	if forwarderID == "" {
		tl.cache = make(map[string]model.TunnelEndpoint)
		return
	}
	delete(tl.cache, forwarderID)
}
