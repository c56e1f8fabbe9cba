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

package ovs

import (
	"fmt"
	"strings"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer"
)

const nshEtherType = 0x894f

// RenderOp renders an operation as a line of the ovs-ofctl bundle.
func RenderOp(tableID uint8, op writer.FlowOp) (string, error) {
	cookie := writer.Cookie(op.Key)
	if op.IsDelete() {
		return fmt.Sprintf("flow delete table=%d, cookie=%#x/-1", tableID, cookie), nil
	}
	rule, isRule := op.Body.(*model.FlowRule)
	if !isRule {
		return "", writer.ErrUnsupportedBody
	}

	fields := []string{
		fmt.Sprintf("table=%d", tableID),
		fmt.Sprintf("priority=%d", rule.Priority),
		fmt.Sprintf("cookie=%#x", cookie),
	}
	fields = append(fields, renderMatch(rule.Match)...)
	actions, err := renderActions(rule.Actions)
	if err != nil {
		return "", err
	}
	fields = append(fields, "actions="+actions)
	return "flow add " + strings.Join(fields, ", "), nil
}

func renderMatch(m model.FlowMatch) (fields []string) {
	if m.InPort != nil {
		fields = append(fields, "in_port="+portRef(*m.InPort))
	}
	if len(m.EthSrc) > 0 {
		fields = append(fields, "dl_src="+m.EthSrc.String())
	}
	if len(m.EthDst) > 0 {
		fields = append(fields, "dl_dst="+m.EthDst.String())
	}
	if m.NSH != nil {
		fields = append(fields,
			fmt.Sprintf("dl_type=0x%04x", nshEtherType),
			fmt.Sprintf("nsh_spi=%#x", m.NSH.SPI),
			fmt.Sprintf("nsh_si=%d", m.NSH.SI))
		return fields
	}
	if m.EthType != 0 {
		fields = append(fields, fmt.Sprintf("dl_type=0x%04x", m.EthType))
	}
	ipv6 := m.EthType == 0x86dd
	if m.IPSrc != nil {
		fields = append(fields, ipField("src", ipv6)+"="+m.IPSrc.String())
	}
	if m.IPDst != nil {
		fields = append(fields, ipField("dst", ipv6)+"="+m.IPDst.String())
	}
	if m.IPProto != 0 {
		fields = append(fields, fmt.Sprintf("nw_proto=%d", m.IPProto))
	}
	if m.L4Src != 0 {
		fields = append(fields, fmt.Sprintf("tp_src=%d", m.L4Src))
	}
	if m.L4Dst != 0 {
		fields = append(fields, fmt.Sprintf("tp_dst=%d", m.L4Dst))
	}
	return fields
}

func ipField(dir string, ipv6 bool) string {
	if ipv6 {
		return "ipv6_" + dir
	}
	return "nw_" + dir
}

func renderActions(actions []model.Action) (string, error) {
	var out []string
	for _, action := range actions {
		switch action.Type {
		case model.PushNSHAction:
			out = append(out,
				"encap(nsh(md_type=1))",
				fmt.Sprintf("set_field:%#x->nsh_spi", action.SPI),
				fmt.Sprintf("set_field:%d->nsh_si", action.SI),
				"encap(ethernet)")
		case model.PopNSHAction:
			out = append(out, "decap()", "decap()")
		case model.SetEthDstAction:
			out = append(out, fmt.Sprintf("set_field:%s->eth_dst", action.Address))
		case model.SetTunnelDstAction:
			out = append(out, fmt.Sprintf("set_field:%s->tun_dst", action.Address))
		case model.OutputAction:
			if action.Port == nil {
				return "", fmt.Errorf("output action without port")
			}
			out = append(out, "output:"+portRef(*action.Port))
		case model.GotoTableAction:
			out = append(out, fmt.Sprintf("goto_table:%d", action.Table))
		default:
			return "", fmt.Errorf("unknown action %q", action.Type)
		}
	}
	if len(out) == 0 {
		return "drop", nil
	}
	return strings.Join(out, ","), nil
}

// portRef refers to the port by number if known, by name otherwise.
func portRef(port model.Port) string {
	if port.Number != 0 {
		return fmt.Sprintf("%d", port.Number)
	}
	return port.Name
}
