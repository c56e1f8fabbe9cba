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

package openflow

import (
	"context"
	"net"
	"testing"

	"github.com/contiv/libOpenflow/openflow13"
	"github.com/contiv/libOpenflow/util"
	. "github.com/onsi/gomega"

	"github.com/ligato/cn-infra/logging/logrus"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer"
)

type fakeSwitch struct {
	sent []util.Message
}

func (fs *fakeSwitch) Send(msg util.Message) error {
	fs.sent = append(fs.sent, msg)
	return nil
}

func connected(switchID string, sw Switch) *Registry {
	registry := NewRegistry()
	registry.Connected(switchID, sw)
	return registry
}

func TestCommitBatch(t *testing.T) {
	RegisterTestingT(t)

	sw := &fakeSwitch{}
	w := NewWriter(Deps{Log: logrus.DefaultLogger(), Switches: connected("SFF-A", sw)})

	_, dst, _ := net.ParseCIDR("10.0.0.0/24")
	out := &model.FlowRule{
		Priority: 1000,
		Match: model.FlowMatch{
			InPort:  &model.Port{Name: "eth0", Number: 3},
			EthType: 0x0800,
			IPDst:   dst,
		},
		Actions: []model.Action{model.SetEthDst(model.ChainMAC(1, 255)), model.GotoTable(4)},
	}
	relay := &model.FlowRule{
		Priority: 1000,
		Match:    model.FlowMatch{EthDst: model.ChainMAC(2, 253)},
		Actions: []model.Action{
			model.SetTunnelDst(net.ParseIP("192.168.16.1")),
			model.Output(model.Port{Name: "vxlan", Number: 10}),
		},
	}
	err := w.CommitBatch(context.Background(), "SFF-A", 0, []writer.FlowOp{
		{Key: "cls-acl-R1.out", Body: out},
		{Key: "cls-acl-R1.relay", Body: relay},
		{Key: "cls-acl-R1.in"},
	})
	Expect(err).ToNot(HaveOccurred())
	Expect(sw.sent).To(HaveLen(3))

	add := sw.sent[0].(*openflow13.FlowMod)
	Expect(add.Command).To(BeEquivalentTo(openflow13.FC_ADD))
	Expect(add.Priority).To(BeEquivalentTo(1000))
	Expect(add.Cookie).To(Equal(writer.Cookie("cls-acl-R1.out")))
	Expect(add.Match.Fields).To(HaveLen(3))
	Expect(add.Instructions).To(HaveLen(2))

	add = sw.sent[1].(*openflow13.FlowMod)
	Expect(add.Instructions).To(HaveLen(1))
	Expect(add.Instructions[0].(*openflow13.InstrActions).Actions).To(HaveLen(2))

	del := sw.sent[2].(*openflow13.FlowMod)
	Expect(del.Command).To(BeEquivalentTo(openflow13.FC_DELETE))
	Expect(del.Cookie).To(Equal(writer.Cookie("cls-acl-R1.in")))
	Expect(del.CookieMask).To(BeEquivalentTo(uint64(allCookieBits)))
}

func TestUnsupportedRules(t *testing.T) {
	RegisterTestingT(t)

	sw := &fakeSwitch{}
	w := NewWriter(Deps{Log: logrus.DefaultLogger(), Switches: connected("SFF-A", sw)})
	ctx := context.Background()

	push := &model.FlowRule{Actions: []model.Action{model.PushNSH(1, 255)}}
	err := w.CommitBatch(ctx, "SFF-A", 0, []writer.FlowOp{
		{Key: "ok"},
		{Key: "cls-acl-R1.out", Body: push},
	})
	Expect(err).To(HaveOccurred())
	// nothing is sent if any rule of the batch cannot be converted
	Expect(sw.sent).To(BeEmpty())

	_, err = FlowMod(0, writer.FlowOp{Key: "in", Body: &model.FlowRule{
		Match: model.FlowMatch{NSH: &model.NSHMatch{SPI: 2, SI: 253}},
	}})
	Expect(err).To(Equal(writer.ErrUnsupportedBody))

	_, err = FlowMod(0, writer.FlowOp{Key: "t", Body: &model.ClassifyTable{Name: "t"}})
	Expect(err).To(Equal(writer.ErrUnsupportedBody))

	Expect(w.CommitBatch(ctx, "SFF-B", 0, []writer.FlowOp{{Key: "ok"}})).ToNot(Succeed())

	// disconnected switch
	registry := connected("SFF-A", sw)
	w = NewWriter(Deps{Log: logrus.DefaultLogger(), Switches: registry})
	Expect(w.CommitBatch(ctx, "SFF-A", 0, []writer.FlowOp{{Key: "ok"}})).To(Succeed())
	registry.Disconnected("SFF-A")
	Expect(w.CommitBatch(ctx, "SFF-A", 0, []writer.FlowOp{{Key: "ok"}})).ToNot(Succeed())
}
