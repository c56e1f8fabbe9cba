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
	"errors"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ligato/cn-infra/logging"
	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/ligato/cn-infra/servicelabel"
	vpp_interfaces "github.com/ligato/vpp-agent/api/models/vpp/interfaces"

	"github.com/contiv/sfc-classifier/mock/broker"
	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

const tunnelIf = "vxlan-gpe-sfc"

func putTunnel(store *broker.MockKVStore, forwarderID string, iface *vpp_interfaces.Interface) {
	b := store.NewBroker(servicelabel.GetDifferentAgentPrefix(forwarderID))
	Expect(b.Put(vpp_interfaces.InterfaceKey(iface.Name), iface)).To(Succeed())
}

func vxlanTunnel(src, dst string) *vpp_interfaces.Interface {
	return &vpp_interfaces.Interface{
		Name:    tunnelIf,
		Type:    vpp_interfaces.Interface_VXLAN_TUNNEL,
		Enabled: true,
		Link: &vpp_interfaces.Interface_Vxlan{
			Vxlan: &vpp_interfaces.VxlanLink{
				SrcAddress: src,
				DstAddress: dst,
				Vni:        10,
			},
		},
	}
}

func TestTunnelLocator(t *testing.T) {
	RegisterTestingT(t)

	logger := logrus.DefaultLogger()
	logger.SetLevel(logging.DebugLevel)

	store := broker.NewMockKVStore()
	putTunnel(store, "SFF-A", vxlanTunnel("192.168.16.1", "192.168.16.2"))
	putTunnel(store, "SFF-B", &vpp_interfaces.Interface{Name: tunnelIf, Type: vpp_interfaces.Interface_SOFTWARE_LOOPBACK})

	tl := NewTunnelLocator(Deps{
		Log:           logger,
		KVStore:       store,
		InterfaceName: tunnelIf,
		TunnelPort:    4790,
	})

	endpoint, found := tl.ResolveRemoteTunnelEndpoint("SFF-A")
	Expect(found).To(BeTrue())
	Expect(endpoint.Address.String()).To(Equal("192.168.16.1"))
	Expect(endpoint.Port).To(BeEquivalentTo(4790))
	Expect(endpoint.Interface).To(Equal(tunnelIf))

	// not a VXLAN tunnel
	_, found = tl.ResolveRemoteTunnelEndpoint("SFF-B")
	Expect(found).To(BeFalse())

	// unknown forwarder
	_, found = tl.ResolveRemoteTunnelEndpoint("SFF-C")
	Expect(found).To(BeFalse())

	// cached until invalidated
	putTunnel(store, "SFF-A", vxlanTunnel("192.168.16.11", "192.168.16.2"))
	endpoint, _ = tl.ResolveRemoteTunnelEndpoint("SFF-A")
	Expect(endpoint.Address.String()).To(Equal("192.168.16.1"))
	tl.Invalidate("SFF-A")
	endpoint, _ = tl.ResolveRemoteTunnelEndpoint("SFF-A")
	Expect(endpoint.Address.String()).To(Equal("192.168.16.11"))
}

type fakeOFPorts map[string]uint32

func (f fakeOFPorts) GetOFPort(interfaceName string) (uint32, error) {
	port, found := f[interfaceName]
	if !found {
		return 0, errors.New("no such interface")
	}
	return port, nil
}

func TestPortResolvers(t *testing.T) {
	RegisterTestingT(t)

	static := NewStaticPorts()
	static.Set("SFF-B", "eth1", model.Port{Number: 7})

	ovs := &OVSPorts{
		Log:        logrus.DefaultLogger(),
		Forwarders: map[string]OFPortGetter{"SFF-A": fakeOFPorts{"eth0": 3}},
	}
	chain := PortChain{ovs, static}

	port, found := chain.ResolveIngressPort("SFF-A", "eth0")
	Expect(found).To(BeTrue())
	Expect(port).To(Equal(model.Port{Name: "eth0", Number: 3}))

	_, found = chain.ResolveIngressPort("SFF-A", "eth9")
	Expect(found).To(BeFalse())

	port, found = chain.ResolveIngressPort("SFF-B", "eth1")
	Expect(found).To(BeTrue())
	Expect(port).To(Equal(model.Port{Name: "eth1", Number: 7}))

	// classify engine references interfaces by name
	chain = append(chain, InterfaceNamePorts{})
	port, found = chain.ResolveIngressPort("SFF-C", "tap0")
	Expect(found).To(BeTrue())
	Expect(port).To(Equal(model.Port{Name: "tap0"}))
	_, found = chain.ResolveIngressPort("SFF-C", "")
	Expect(found).To(BeFalse())
}
