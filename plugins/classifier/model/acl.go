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

package model

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// PortRange is an inclusive range of L4 ports.
type PortRange struct {
	Lower uint16 `json:"lower"`
	Upper uint16 `json:"upper"`
}

// IsSingle returns true if the range consists of a single port.
func (pr PortRange) IsSingle() bool {
	return pr.Upper == 0 || pr.Upper == pr.Lower
}

// String returns the range as "lower" or "lower-upper".
func (pr PortRange) String() string {
	if pr.IsSingle() {
		return fmt.Sprintf("%d", pr.Lower)
	}
	return fmt.Sprintf("%d-%d", pr.Lower, pr.Upper)
}

// MatchCriteria is the match part of an access-control entry.
// Zero-valued fields do not constrain the traffic.
type MatchCriteria struct {
	SrcMAC     net.HardwareAddr
	DstMAC     net.HardwareAddr
	SrcNetwork *net.IPNet
	DstNetwork *net.IPNet

	// Protocol is the IP protocol number, 0 means any.
	Protocol uint8

	// SrcPort and DstPort are applied only together with Protocol.
	SrcPort *PortRange
	DstPort *PortRange
}

// HasL3 returns true if the criteria constrain any IP-level field.
func (mc MatchCriteria) HasL3() bool {
	return mc.SrcNetwork != nil || mc.DstNetwork != nil || mc.Protocol != 0
}

// IsEmpty returns true if the criteria do not constrain anything.
func (mc MatchCriteria) IsEmpty() bool {
	return len(mc.SrcMAC) == 0 && len(mc.DstMAC) == 0 && !mc.HasL3() &&
		mc.SrcPort == nil && mc.DstPort == nil
}

// IsIPv6 returns true if any of the constrained prefixes is IPv6.
func (mc MatchCriteria) IsIPv6() bool {
	return isIPv6Net(mc.SrcNetwork) || isIPv6Net(mc.DstNetwork)
}

func isIPv6Net(n *net.IPNet) bool {
	return n != nil && n.IP.To4() == nil
}

type matchCriteriaJSON struct {
	SrcMAC     string     `json:"srcMac,omitempty"`
	DstMAC     string     `json:"dstMac,omitempty"`
	SrcNetwork string     `json:"srcNetwork,omitempty"`
	DstNetwork string     `json:"dstNetwork,omitempty"`
	Protocol   uint8      `json:"protocol,omitempty"`
	SrcPort    *PortRange `json:"srcPort,omitempty"`
	DstPort    *PortRange `json:"dstPort,omitempty"`
}

// MarshalJSON prints addresses and prefixes in their textual form.
func (mc MatchCriteria) MarshalJSON() ([]byte, error) {
	out := matchCriteriaJSON{
		Protocol: mc.Protocol,
		SrcPort:  mc.SrcPort,
		DstPort:  mc.DstPort,
	}
	if len(mc.SrcMAC) > 0 {
		out.SrcMAC = mc.SrcMAC.String()
	}
	if len(mc.DstMAC) > 0 {
		out.DstMAC = mc.DstMAC.String()
	}
	if mc.SrcNetwork != nil {
		out.SrcNetwork = mc.SrcNetwork.String()
	}
	if mc.DstNetwork != nil {
		out.DstNetwork = mc.DstNetwork.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the textual form produced by MarshalJSON.
func (mc *MatchCriteria) UnmarshalJSON(data []byte) error {
	var in matchCriteriaJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	parsed, err := ParseMatchCriteria(in.SrcMAC, in.DstMAC, in.SrcNetwork, in.DstNetwork)
	if err != nil {
		return err
	}
	parsed.Protocol = in.Protocol
	parsed.SrcPort = in.SrcPort
	parsed.DstPort = in.DstPort
	*mc = parsed
	return nil
}

// ParseMatchCriteria builds match criteria from textual MAC addresses and prefixes.
// Empty strings leave the corresponding field unconstrained.
func ParseMatchCriteria(srcMAC, dstMAC, srcNet, dstNet string) (mc MatchCriteria, err error) {
	if srcMAC != "" {
		if mc.SrcMAC, err = net.ParseMAC(srcMAC); err != nil {
			return mc, errors.Wrapf(err, "invalid source MAC")
		}
	}
	if dstMAC != "" {
		if mc.DstMAC, err = net.ParseMAC(dstMAC); err != nil {
			return mc, errors.Wrapf(err, "invalid destination MAC")
		}
	}
	if srcNet != "" {
		if mc.SrcNetwork, err = parsePrefix(srcNet); err != nil {
			return mc, errors.Wrapf(err, "invalid source network")
		}
	}
	if dstNet != "" {
		if mc.DstNetwork, err = parsePrefix(dstNet); err != nil {
			return mc, errors.Wrapf(err, "invalid destination network")
		}
	}
	return mc, nil
}

// parsePrefix accepts both CIDR and plain address (host prefix).
func parsePrefix(s string) (*net.IPNet, error) {
	if _, n, err := net.ParseCIDR(s); err == nil {
		return n, nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("not an IP prefix: %q", s)
	}
	if ip4 := ip.To4(); ip4 != nil {
		return &net.IPNet{IP: ip4, Mask: net.CIDRMask(32, 32)}, nil
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}, nil
}

// ACE is a single access-control entry (rule) of an ACL.
type ACE struct {
	// RuleName must be non-empty and unique within the ACL.
	RuleName string `json:"ruleName"`

	// Match selects the traffic steered into the chain.
	Match MatchCriteria `json:"match"`

	// PathName references the forward chain path the traffic is steered into.
	PathName string `json:"pathName"`
}

// ACL is an ordered list of access-control entries.
type ACL struct {
	Name  string `json:"name"`
	Rules []ACE  `json:"rules"`
}

// Validate checks that every rule has a non-empty name unique within the ACL.
func (acl *ACL) Validate() error {
	if acl.Name == "" {
		return errors.New("ACL without name")
	}
	names := make(map[string]struct{}, len(acl.Rules))
	for idx, rule := range acl.Rules {
		if rule.RuleName == "" {
			return errors.Errorf("ACL %s: rule #%d has no name", acl.Name, idx)
		}
		if _, dup := names[rule.RuleName]; dup {
			return errors.Errorf("ACL %s: duplicate rule name %s", acl.Name, rule.RuleName)
		}
		names[rule.RuleName] = struct{}{}
	}
	return nil
}

// Classifier binds an ACL to a set of attachment points.
type Classifier struct {
	Name        string            `json:"name"`
	ACLName     string            `json:"aclName"`
	Attachments []AttachmentPoint `json:"attachments"`
}
