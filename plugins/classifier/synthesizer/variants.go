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

package synthesizer

import (
	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

// engine is the data-plane technology programmed at an attachment point.
type engine int

const (
	flowTableEngine engine = iota
	classifyTableEngine
)

func (e engine) String() string {
	if e == classifyTableEngine {
		return "classify-table"
	}
	return "flow-table"
}

// attachmentCaps describes the behaviour of an attachment variant.
type attachmentCaps struct {
	engine engine

	// reverse (in/relay) rules are left to the owner of the interface
	skipsReverseProcessing bool

	// ingress processing needs auxiliary rules (classify table + interface binding)
	buildsAuxiliaryFlows bool
}

var attachmentVariants = map[model.AttachmentVariant]attachmentCaps{
	model.Direct: {
		engine: flowTableEngine,
	},
	model.Logical: {
		engine:                 flowTableEngine,
		skipsReverseProcessing: true,
	},
	model.ClassifyEngine: {
		engine:               classifyTableEngine,
		buildsAuxiliaryFlows: true,
	},
}

// encapCaps describes the behaviour of a chain encapsulation.
type encapCaps struct {
	// forwardActions push chain metadata (path ID + starting index) onto the packet.
	forwardActions func(pathID uint32, si uint8) []model.Action

	// returnMatch matches packets carrying the given chain metadata.
	returnMatch func(pathID uint32, si uint8) model.FlowMatch

	// stripActions remove chain metadata before the packet is delivered.
	stripActions func() []model.Action

	// classifyNext is the classify-engine graph node handling matched packets,
	// empty if the encapsulation cannot be offloaded to the classify engine.
	classifyNext string
}

const nshClassifierNode = "nsh-classifier"

var encapsulations = map[model.Encapsulation]encapCaps{
	model.NSH: {
		forwardActions: func(pathID uint32, si uint8) []model.Action {
			return []model.Action{model.PushNSH(pathID, si)}
		},
		returnMatch: func(pathID uint32, si uint8) model.FlowMatch {
			return model.FlowMatch{NSH: &model.NSHMatch{SPI: pathID, SI: si}}
		},
		stripActions: func() []model.Action {
			return []model.Action{model.PopNSH()}
		},
		classifyNext: nshClassifierNode,
	},
	model.MACChaining: {
		forwardActions: func(pathID uint32, si uint8) []model.Action {
			return []model.Action{model.SetEthDst(model.ChainMAC(pathID, si))}
		},
		returnMatch: func(pathID uint32, si uint8) model.FlowMatch {
			return model.FlowMatch{EthDst: model.ChainMAC(pathID, si)}
		},
		stripActions: func() []model.Action {
			return nil
		},
	},
}

// nshOpaqueIndex packs path ID and service index the way the NSH classifier node expects.
func nshOpaqueIndex(pathID uint32, si uint8) uint32 {
	return pathID<<8 | uint32(si)
}
