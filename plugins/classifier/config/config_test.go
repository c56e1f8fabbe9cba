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
	"testing"

	"github.com/ghodss/yaml"
	. "github.com/onsi/gomega"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

const testConfig = `
encapsulation: mac-chaining
bitExactPrefixMasks: false
flowWriter: ovs
ovsBridges:
  SFF-A: br-sfc
chainPaths:
  - id: 1
    name: P1
    startingIndex: 255
    hops:
      - forwarderId: SFF-A
        serviceIndex: 255
        serviceFunction: fw
acls:
  - name: acl1
    rules:
      - ruleName: R1
        pathName: P1
        match:
          dstMac: "aa:bb:cc:dd:ee:ff"
          srcNetwork: 10.0.0.0/24
          protocol: 6
          dstPort:
            lower: 80
classifiers:
  - name: cls1
    aclName: acl1
    attachments:
      - forwarderId: SFF-A
        interfaceName: eth0
        variant: direct
`

func TestDefaultConfig(t *testing.T) {
	RegisterTestingT(t)

	cfg := DefaultConfig()
	Expect(cfg.Validate()).To(Succeed())
	Expect(cfg.ReversePathSuffix).To(Equal(model.DefaultReversePathSuffix))
	encap, err := cfg.GetEncapsulation()
	Expect(err).ToNot(HaveOccurred())
	Expect(encap).To(Equal(model.NSH))
}

func TestLoadYAML(t *testing.T) {
	RegisterTestingT(t)

	cfg := DefaultConfig()
	Expect(yaml.Unmarshal([]byte(testConfig), cfg)).To(Succeed())
	Expect(cfg.Validate()).To(Succeed())

	Expect(cfg.BitExactPrefixMasks).To(BeFalse())
	Expect(cfg.TunnelPort).To(BeEquivalentTo(defaultTunnelPort))
	Expect(cfg.OvsBridges).To(HaveKeyWithValue("SFF-A", "br-sfc"))
	Expect(cfg.ChainPaths).To(HaveLen(1))
	Expect(cfg.ChainPaths[0].Hops[0].ServiceFunction).To(Equal("fw"))

	Expect(cfg.ACLs).To(HaveLen(1))
	rule := cfg.ACLs[0].Rules[0]
	Expect(rule.Match.DstMAC.String()).To(Equal("aa:bb:cc:dd:ee:ff"))
	Expect(rule.Match.SrcNetwork.String()).To(Equal("10.0.0.0/24"))
	Expect(rule.Match.DstPort.Lower).To(BeEquivalentTo(80))

	Expect(cfg.Classifiers[0].Attachments[0].Variant).To(Equal(model.Direct))
}

func TestValidate(t *testing.T) {
	RegisterTestingT(t)

	cfg := DefaultConfig()
	cfg.FlowWriter = "netconf"
	Expect(cfg.Validate()).ToNot(Succeed())

	cfg = DefaultConfig()
	cfg.Encapsulation = "vlan"
	Expect(cfg.Validate()).ToNot(Succeed())

	cfg = DefaultConfig()
	cfg.BootstrapPriority = cfg.ClassifierPriority
	Expect(cfg.Validate()).ToNot(Succeed())
}
