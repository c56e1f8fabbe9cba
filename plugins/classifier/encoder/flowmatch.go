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

package encoder

import (
	"net"

	"github.com/contiv/libOpenflow/openflow13"
	"github.com/pkg/errors"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

// IP protocols with L4 ports
const (
	ProtoTCP  = 6
	ProtoUDP  = 17
	ProtoSCTP = 132
)

// EncodeFlowMatch builds the flow-table match for traffic received on the given port
// and matching the given criteria. Prerequisite fields (ethertype, IP protocol)
// are filled in as required by the flow-table engine.
func EncodeFlowMatch(mc model.MatchCriteria, port model.Port) (model.FlowMatch, error) {
	inPort := port
	match := model.FlowMatch{InPort: &inPort}

	if len(mc.SrcMAC) == macLen {
		match.EthSrc = mc.SrcMAC
	}
	if len(mc.DstMAC) == macLen {
		match.EthDst = mc.DstMAC
	}
	if !mc.HasL3() {
		return match, nil
	}

	ipv6, err := ipVersion(mc)
	if err != nil {
		return model.FlowMatch{}, err
	}
	match.EthType = etherTypeIPv4
	if ipv6 {
		match.EthType = etherTypeIPv6
	}
	match.IPSrc = mc.SrcNetwork
	match.IPDst = mc.DstNetwork
	match.IPProto = mc.Protocol

	if mc.Protocol != 0 {
		if mc.SrcPort != nil {
			match.L4Src = mc.SrcPort.Lower
		}
		if mc.DstPort != nil {
			match.L4Dst = mc.DstPort.Lower
		}
	}
	return match, nil
}

// OpenFlow13Match converts the flow match into an OpenFlow 1.3 match.
// NSH fields have no OpenFlow 1.3 representation.
func OpenFlow13Match(fm model.FlowMatch) (*openflow13.Match, error) {
	if fm.NSH != nil {
		return nil, errors.New("NSH match is not supported by OpenFlow 1.3")
	}
	if fm.InPort != nil && fm.InPort.Number == 0 {
		return nil, errors.Errorf("port %s has no OpenFlow port number", fm.InPort.Name)
	}
	if (fm.L4Src != 0 || fm.L4Dst != 0) &&
		fm.IPProto != ProtoTCP && fm.IPProto != ProtoUDP && fm.IPProto != ProtoSCTP {
		return nil, errors.Errorf("L4 ports are not supported for IP protocol %d", fm.IPProto)
	}

	match := openflow13.NewMatch()
	if fm.InPort != nil {
		match.AddField(*openflow13.NewInPortField(fm.InPort.Number))
	}
	if len(fm.EthDst) > 0 {
		match.AddField(*openflow13.NewEthDstField(fm.EthDst, nil))
	}
	if len(fm.EthSrc) > 0 {
		match.AddField(*openflow13.NewEthSrcField(fm.EthSrc, nil))
	}
	if fm.EthType != 0 {
		match.AddField(*openflow13.NewEthTypeField(fm.EthType))
	}
	if fm.IPProto != 0 {
		match.AddField(*openflow13.NewIpProtoField(fm.IPProto))
	}
	if fm.IPSrc != nil {
		match.AddField(*ipField(fm.IPSrc, true))
	}
	if fm.IPDst != nil {
		match.AddField(*ipField(fm.IPDst, false))
	}
	if fm.L4Src != 0 {
		match.AddField(*l4Field(fm.IPProto, fm.L4Src, true))
	}
	if fm.L4Dst != 0 {
		match.AddField(*l4Field(fm.IPProto, fm.L4Dst, false))
	}
	return match, nil
}

func ipField(prefix *net.IPNet, src bool) *openflow13.MatchField {
	mask := net.IP(prefix.Mask)
	if ip4 := prefix.IP.To4(); ip4 != nil {
		if src {
			return openflow13.NewIpv4SrcField(ip4, &mask)
		}
		return openflow13.NewIpv4DstField(ip4, &mask)
	}
	if src {
		return openflow13.NewIpv6SrcField(prefix.IP, &mask)
	}
	return openflow13.NewIpv6DstField(prefix.IP, &mask)
}

func l4Field(proto uint8, port uint16, src bool) *openflow13.MatchField {
	switch {
	case proto == ProtoUDP && src:
		return openflow13.NewUdpSrcField(port)
	case proto == ProtoUDP:
		return openflow13.NewUdpDstField(port)
	case proto == ProtoSCTP && src:
		return openflow13.NewSctpSrcField(port)
	case proto == ProtoSCTP:
		return openflow13.NewSctpDstField(port)
	case src:
		return openflow13.NewTcpSrcField(port)
	default:
		return openflow13.NewTcpDstField(port)
	}
}
