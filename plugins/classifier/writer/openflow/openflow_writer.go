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

	"github.com/contiv/libOpenflow/openflow13"
	"github.com/contiv/libOpenflow/util"
	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"

	"github.com/contiv/sfc-classifier/plugins/classifier/encoder"
	"github.com/contiv/sfc-classifier/plugins/classifier/model"
	"github.com/contiv/sfc-classifier/plugins/classifier/writer"
)

const allCookieBits = 0xffffffffffffffff

// Switch is a connected OpenFlow switch.
type Switch interface {
	Send(msg util.Message) error
}

// SwitchRegistry looks up connected switches by ID.
type SwitchRegistry interface {
	GetSwitch(switchID string) (sw Switch, connected bool)
}

// Writer installs flow-table rules through OpenFlow 1.3 FlowMod messages.
// OpenFlow 1.3 has no NSH support, rules pushing or popping NSH are rejected.
type Writer struct {
	Deps
}

// Deps lists dependencies of the OpenFlow Writer.
type Deps struct {
	Log      logging.Logger
	Switches SwitchRegistry
}

// NewWriter creates a new OpenFlow Writer.
func NewWriter(deps Deps) *Writer {
	return &Writer{Deps: deps}
}

// CommitBatch converts all operations into FlowMods first and sends them
// only if the whole batch could be converted.
func (w *Writer) CommitBatch(ctx context.Context, switchID string, tableID uint8, ops []writer.FlowOp) error {
	sw, connected := w.Switches.GetSwitch(switchID)
	if !connected {
		return errors.Errorf("switch %s is not connected", switchID)
	}

	msgs := make([]*openflow13.FlowMod, 0, len(ops))
	for _, op := range ops {
		flowMod, err := FlowMod(tableID, op)
		if err != nil {
			return errors.Wrapf(err, "rule %s", op.Key)
		}
		msgs = append(msgs, flowMod)
	}
	for i, flowMod := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sw.Send(flowMod); err != nil {
			return errors.Wrapf(err, "failed to send FlowMod of rule %s", ops[i].Key)
		}
	}
	w.Log.Debugf("Sent %d FlowMods to table %d of switch %s", len(msgs), tableID, switchID)
	return nil
}

// FlowMod converts an operation into a FlowMod message. Rules are identified
// by the cookie derived from their key.
func FlowMod(tableID uint8, op writer.FlowOp) (*openflow13.FlowMod, error) {
	flowMod := openflow13.NewFlowMod()
	flowMod.TableId = tableID
	flowMod.Cookie = writer.Cookie(op.Key)

	if op.IsDelete() {
		flowMod.Command = openflow13.FC_DELETE
		flowMod.CookieMask = allCookieBits
		flowMod.OutPort = openflow13.P_ANY
		flowMod.OutGroup = openflow13.OFPG_ANY
		return flowMod, nil
	}

	rule, isRule := op.Body.(*model.FlowRule)
	if !isRule {
		return nil, writer.ErrUnsupportedBody
	}
	match, err := encoder.OpenFlow13Match(rule.Match)
	if err != nil {
		if rule.Match.NSH != nil {
			return nil, writer.ErrUnsupportedBody
		}
		return nil, err
	}
	flowMod.Command = openflow13.FC_ADD
	flowMod.Priority = rule.Priority
	flowMod.Match = *match

	applyActions := openflow13.NewInstrApplyActions()
	var gotoTable *openflow13.InstrGotoTable
	for _, action := range rule.Actions {
		var ofAction openflow13.Action
		switch action.Type {
		case model.SetEthDstAction:
			mac, err := net.ParseMAC(action.Address)
			if err != nil {
				return nil, err
			}
			ofAction = openflow13.NewActionSetField(*openflow13.NewEthDstField(mac, nil))
		case model.SetTunnelDstAction:
			ip := net.ParseIP(action.Address).To4()
			if ip == nil {
				return nil, errors.Errorf("tunnel destination %q is not IPv4", action.Address)
			}
			ofAction = openflow13.NewActionSetField(*openflow13.NewTunnelIpv4DstField(ip, nil))
		case model.OutputAction:
			if action.Port == nil || action.Port.Number == 0 {
				return nil, errors.Errorf("output to port %v without number", action.Port)
			}
			ofAction = openflow13.NewActionOutput(action.Port.Number)
		case model.GotoTableAction:
			gotoTable = openflow13.NewInstrGotoTable(action.Table)
			continue
		case model.PushNSHAction, model.PopNSHAction:
			return nil, writer.ErrUnsupportedBody
		default:
			return nil, errors.Errorf("unknown action %q", action.Type)
		}
		if err := applyActions.AddAction(ofAction, false); err != nil {
			return nil, err
		}
	}
	if len(applyActions.Actions) > 0 {
		flowMod.AddInstruction(applyActions)
	}
	if gotoTable != nil {
		flowMod.AddInstruction(gotoTable)
	}
	return flowMod, nil
}
