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
	"net"
)

// BodyKind distinguishes the content of a rule body.
type BodyKind string

const (
	// FlowRuleKind is a flow-table rule (match + actions).
	FlowRuleKind BodyKind = "flow-rule"

	// ClassifyTableKind is a classify-table definition.
	ClassifyTableKind BodyKind = "classify-table"

	// ClassifySessionKind is a classify-table session (mask/value entry).
	ClassifySessionKind BodyKind = "classify-session"

	// InterfaceInputACLKind binds a classify table to interface input.
	InterfaceInputACLKind BodyKind = "interface-input-acl"

	// NshMapKind is an NSH map entry of the classify engine.
	NshMapKind BodyKind = "nsh-map"
)

// FlowBody is the engine-specific content of a rule.
// The set of implementations is closed to this package.
type FlowBody interface {
	BodyKind() BodyKind
}

// FlowRule is a rule of the flow-table engine.
type FlowRule struct {
	Priority uint16    `json:"priority"`
	Match    FlowMatch `json:"match"`
	Actions  []Action  `json:"actions"`
}

// BodyKind returns FlowRuleKind.
func (r *FlowRule) BodyKind() BodyKind {
	return FlowRuleKind
}

// NSHMatch matches the service path and service index of an NSH packet.
type NSHMatch struct {
	SPI uint32 `json:"spi"`
	SI  uint8  `json:"si"`
}

// FlowMatch is a structured flow-table match.
// Zero-valued fields are wildcarded.
type FlowMatch struct {
	InPort  *Port
	EthSrc  net.HardwareAddr
	EthDst  net.HardwareAddr
	EthType uint16
	IPSrc   *net.IPNet
	IPDst   *net.IPNet
	IPProto uint8
	L4Src   uint16
	L4Dst   uint16
	NSH     *NSHMatch
}

type flowMatchJSON struct {
	InPort  *Port     `json:"inPort,omitempty"`
	EthSrc  string    `json:"ethSrc,omitempty"`
	EthDst  string    `json:"ethDst,omitempty"`
	EthType uint16    `json:"ethType,omitempty"`
	IPSrc   string    `json:"ipSrc,omitempty"`
	IPDst   string    `json:"ipDst,omitempty"`
	IPProto uint8     `json:"ipProto,omitempty"`
	L4Src   uint16    `json:"l4Src,omitempty"`
	L4Dst   uint16    `json:"l4Dst,omitempty"`
	NSH     *NSHMatch `json:"nsh,omitempty"`
}

// MarshalJSON prints addresses and prefixes in their textual form.
func (m FlowMatch) MarshalJSON() ([]byte, error) {
	out := flowMatchJSON{
		InPort:  m.InPort,
		EthType: m.EthType,
		IPProto: m.IPProto,
		L4Src:   m.L4Src,
		L4Dst:   m.L4Dst,
		NSH:     m.NSH,
	}
	if len(m.EthSrc) > 0 {
		out.EthSrc = m.EthSrc.String()
	}
	if len(m.EthDst) > 0 {
		out.EthDst = m.EthDst.String()
	}
	if m.IPSrc != nil {
		out.IPSrc = m.IPSrc.String()
	}
	if m.IPDst != nil {
		out.IPDst = m.IPDst.String()
	}
	return json.Marshal(out)
}

// ActionType enumerates flow-table actions.
type ActionType string

const (
	// PushNSHAction encapsulates the packet into NSH with given SPI and SI.
	PushNSHAction ActionType = "push-nsh"

	// PopNSHAction removes the NSH encapsulation.
	PopNSHAction ActionType = "pop-nsh"

	// SetEthDstAction rewrites the destination MAC address.
	SetEthDstAction ActionType = "set-eth-dst"

	// SetTunnelDstAction sets the destination of the tunnel the packet is sent through.
	SetTunnelDstAction ActionType = "set-tunnel-dst"

	// OutputAction sends the packet out of a port.
	OutputAction ActionType = "output"

	// GotoTableAction continues processing in another table.
	GotoTableAction ActionType = "goto-table"
)

// Action is a single flow-table action.
// Only the fields relevant to Type are set.
type Action struct {
	Type    ActionType `json:"type"`
	SPI     uint32     `json:"spi,omitempty"`
	SI      uint8      `json:"si,omitempty"`
	Address string     `json:"address,omitempty"`
	Port    *Port      `json:"port,omitempty"`
	Table   uint8      `json:"table,omitempty"`
}

// PushNSH returns action pushing NSH with the given path ID and service index.
func PushNSH(spi uint32, si uint8) Action {
	return Action{Type: PushNSHAction, SPI: spi, SI: si}
}

// PopNSH returns action removing NSH.
func PopNSH() Action {
	return Action{Type: PopNSHAction}
}

// SetEthDst returns action rewriting destination MAC address.
func SetEthDst(mac net.HardwareAddr) Action {
	return Action{Type: SetEthDstAction, Address: mac.String()}
}

// SetTunnelDst returns action setting the tunnel destination address.
func SetTunnelDst(ip net.IP) Action {
	return Action{Type: SetTunnelDstAction, Address: ip.String()}
}

// Output returns action sending the packet out of the given port.
func Output(port Port) Action {
	return Action{Type: OutputAction, Port: &port}
}

// GotoTable returns action continuing the processing in the given table.
func GotoTable(table uint8) Action {
	return Action{Type: GotoTableAction, Table: table}
}

// ClassifyTable is a classify-table definition of the classify engine.
type ClassifyTable struct {
	Name         string `json:"name"`
	Mask         string `json:"mask"`
	SkipVectors  uint32 `json:"skipVectors"`
	MatchVectors uint32 `json:"matchVectors"`
	NextTable    string `json:"nextTable,omitempty"`
	MissNext     string `json:"missNext"`
}

// BodyKind returns ClassifyTableKind.
func (t *ClassifyTable) BodyKind() BodyKind {
	return ClassifyTableKind
}

// ClassifySession is a mask/value entry of a classify table.
type ClassifySession struct {
	Table       string `json:"table"`
	Match       string `json:"match"`
	HitNext     string `json:"hitNext"`
	OpaqueIndex uint32 `json:"opaqueIndex"`
}

// BodyKind returns ClassifySessionKind.
func (s *ClassifySession) BodyKind() BodyKind {
	return ClassifySessionKind
}

// InterfaceInputACL enables classification of traffic received on an interface.
type InterfaceInputACL struct {
	Interface string `json:"interface"`
	Table     string `json:"table"`
}

// BodyKind returns InterfaceInputACLKind.
func (b *InterfaceInputACL) BodyKind() BodyKind {
	return InterfaceInputACLKind
}

// NshMapAction is the action of an NSH map entry.
type NshMapAction string

const (
	// NshPop decapsulates the packet.
	NshPop NshMapAction = "pop"

	// NshSwap rewrites SPI/SI.
	NshSwap NshMapAction = "swap"
)

// NshMap maps NSH SPI/SI to an action and an egress interface.
type NshMap struct {
	SPI       uint32       `json:"spi"`
	SI        uint8        `json:"si"`
	MappedSPI uint32       `json:"mappedSpi"`
	MappedSI  uint8        `json:"mappedSi"`
	Action    NshMapAction `json:"action"`
	Interface string       `json:"interface"`
}

// BodyKind returns NshMapKind.
func (m *NshMap) BodyKind() BodyKind {
	return NshMapKind
}
