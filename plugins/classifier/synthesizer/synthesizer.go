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
	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"

	"github.com/contiv/sfc-classifier/plugins/classifier/config"
	"github.com/contiv/sfc-classifier/plugins/classifier/encoder"
	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

// Mode selects whether rules are synthesized for installation or for removal.
type Mode int

const (
	// Add synthesizes complete rules.
	Add Mode = iota

	// Remove synthesizes delete-only descriptors.
	Remove
)

// String returns the name of the mode.
func (m Mode) String() string {
	if m == Remove {
		return "remove"
	}
	return "add"
}

const (
	// BaseClassifyTable is the classify table every per-rule table chains to.
	BaseClassifyTable = "sfc-classifier-base"

	classifyMissNext = "permit"
)

// PathResolver looks up chain paths by name.
type PathResolver interface {
	ResolveChainPath(name string) (path *model.ChainPath, found bool)
}

// PortResolver resolves the ingress port of an interface on a switch.
type PortResolver interface {
	ResolveIngressPort(forwarderID, interfaceName string) (port model.Port, found bool)
}

// TunnelResolver resolves the tunnel endpoint of a switch.
type TunnelResolver interface {
	ResolveRemoteTunnelEndpoint(forwarderID string) (endpoint model.TunnelEndpoint, found bool)
}

// Deps lists dependencies of the Synthesizer.
type Deps struct {
	Log     logging.Logger
	Config  *config.Config
	Paths   PathResolver
	Ports   PortResolver
	Tunnels TunnelResolver
}

// Synthesizer derives the rules of a classifier ACL entry bound to an attachment point.
// Synthesis is free of side-effects and safe for concurrent use.
type Synthesizer struct {
	Deps

	encap model.Encapsulation
}

// NewSynthesizer creates a new Synthesizer for the configured encapsulation.
func NewSynthesizer(deps Deps) (*Synthesizer, error) {
	encap, err := deps.Config.GetEncapsulation()
	if err != nil {
		return nil, err
	}
	return &Synthesizer{Deps: deps, encap: encap}, nil
}

// Encapsulation returns the encapsulation the rules are synthesized for.
func (s *Synthesizer) Encapsulation() model.Encapsulation {
	return s.encap
}

// ruleContext carries the inputs of a single synthesis call.
type ruleContext struct {
	classifier string
	acl        string
	attachment model.AttachmentPoint
	ace        model.ACE
	mode       Mode
	caps       attachmentCaps
	encap      encapCaps
	port       model.Port
	rule       string
}

// Synthesize returns the ordered list of rule descriptors (bootstrap, out, in, relay)
// to add or remove for the given ACL entry bound to the given attachment point.
// Steps that cannot be synthesized are omitted; rejected input yields an empty list.
func (s *Synthesizer) Synthesize(classifierName, aclName string, attachment model.AttachmentPoint,
	ace model.ACE, mode Mode) []*model.FlowDescriptor {

	if ace.RuleName == "" {
		s.Log.Errorf("ACL %s: rule without name bound to %v is rejected", aclName, attachment)
		return nil
	}
	rule := classifierName + "-" + aclName + "-" + ace.RuleName

	caps, known := attachmentVariants[attachment.Variant]
	if !known {
		s.Log.Errorf("Rule %s: unknown attachment variant %q", rule, attachment.Variant)
		return nil
	}
	encap := encapsulations[s.encap]
	if caps.engine == classifyTableEngine && encap.classifyNext == "" {
		s.Log.Errorf("Rule %s: encapsulation %s cannot be offloaded to the classify engine (attachment %v)",
			rule, s.encap, attachment)
		return nil
	}
	port, found := s.Ports.ResolveIngressPort(attachment.ForwarderID, attachment.InterfaceName)
	if !found {
		s.Log.Errorf("Rule %s: failed to resolve ingress port of %v", rule, attachment)
		return nil
	}
	path, found := s.Paths.ResolveChainPath(ace.PathName)
	if !found {
		s.Log.Errorf("Rule %s: chain path %s does not exist", rule, ace.PathName)
		return nil
	}

	rc := &ruleContext{
		classifier: classifierName,
		acl:        aclName,
		attachment: attachment,
		ace:        ace,
		mode:       mode,
		caps:       caps,
		encap:      encap,
		port:       port,
		rule:       rule,
	}

	// forward direction
	outFlows, err := s.outFlows(rc, path)
	if err != nil {
		s.Log.Errorf("Rule %s: failed to synthesize out-flow: %v", rule, err)
		return nil
	}
	flows := outFlows

	if caps.skipsReverseProcessing {
		return flows
	}

	// reverse direction
	reverseName := model.ReversePathName(path.Name, s.Config.ReversePathSuffix)
	reverse, found := s.Paths.ResolveChainPath(reverseName)
	if !found {
		s.Log.Warnf("Rule %s: reverse path %s not found, skipping reverse rules", rule, reverseName)
		return flows
	}

	in := s.inFlow(rc, reverse)
	flows = append(flows, in)

	lastHop := reverse.LastHop()
	if lastHop == nil || lastHop.ForwarderID == attachment.ForwarderID {
		return flows
	}
	if relay := s.relayFlow(rc, reverse, in.FlowKey); relay != nil {
		flows = append(flows, relay)
	}
	return flows
}

// outFlows returns bootstrap, out-flow and auxiliary flows (Add), or the delete keys
// of the out-flow and its auxiliary flows (Remove).
func (s *Synthesizer) outFlows(rc *ruleContext, path *model.ChainPath) ([]*model.FlowDescriptor, error) {
	outKey := model.FlowKey(rc.classifier, rc.acl, rc.ace.RuleName, model.RoleOut)
	switchID := rc.attachment.ForwarderID
	table := s.Config.ClassifierTable

	if rc.mode == Remove {
		// reverse of the add order: the ingress binding and the session go before their table
		keys := []string{outKey}
		if rc.caps.buildsAuxiliaryFlows {
			keys = []string{model.IngressBindingKey(outKey), outKey, model.ClassifyTableKey(outKey)}
		}
		var flows []*model.FlowDescriptor
		for _, key := range keys {
			flows = append(flows,
				&model.FlowDescriptor{SwitchID: switchID, TableID: table, FlowKey: key, OwnerPathID: path.ID})
		}
		return flows, nil
	}

	for _, note := range encoder.Lint(rc.ace.Match) {
		s.Log.Warnf("Rule %s: %s", rc.rule, note)
	}
	flows := []*model.FlowDescriptor{s.bootstrapFlow(rc)}

	switch rc.caps.engine {
	case flowTableEngine:
		match, err := encoder.EncodeFlowMatch(rc.ace.Match, rc.port)
		if err != nil {
			return nil, err
		}
		actions := append(rc.encap.forwardActions(path.ID, path.StartingIndex),
			model.GotoTable(s.Config.SffTable))
		flows = append(flows, &model.FlowDescriptor{
			SwitchID:    switchID,
			TableID:     table,
			FlowKey:     outKey,
			OwnerPathID: path.ID,
			Body: &model.FlowRule{
				Priority: s.Config.ClassifierPriority,
				Match:    match,
				Actions:  actions,
			},
		})

	case classifyTableEngine:
		match, err := encoder.EncodeClassify(rc.ace.Match, s.Config.BitExactPrefixMasks)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode classify match")
		}
		tableName := model.ClassifyTableKey(outKey)
		session := &model.FlowDescriptor{
			SwitchID:    switchID,
			TableID:     table,
			FlowKey:     outKey,
			OwnerPathID: path.ID,
			Body: &model.ClassifySession{
				Table:       tableName,
				Match:       match.ValueHex(),
				HitNext:     rc.encap.classifyNext,
				OpaqueIndex: nshOpaqueIndex(path.ID, path.StartingIndex),
			},
		}
		if !rc.caps.buildsAuxiliaryFlows {
			flows = append(flows, session)
			break
		}
		// the table precedes its session, the binding follows it
		flows = append(flows,
			&model.FlowDescriptor{
				SwitchID:    switchID,
				TableID:     table,
				FlowKey:     tableName,
				OwnerPathID: path.ID,
				Body: &model.ClassifyTable{
					Name:         tableName,
					Mask:         match.MaskHex(),
					SkipVectors:  match.SkipVectors(),
					MatchVectors: match.MatchVectors(),
					NextTable:    BaseClassifyTable,
					MissNext:     classifyMissNext,
				},
			},
			session,
			&model.FlowDescriptor{
				SwitchID:    switchID,
				TableID:     table,
				FlowKey:     model.IngressBindingKey(outKey),
				OwnerPathID: path.ID,
				Body: &model.InterfaceInputACL{
					Interface: rc.port.Name,
					Table:     tableName,
				},
			})
	}
	return flows, nil
}

// bootstrapFlow returns the table-initialization rule of the attachment's switch.
func (s *Synthesizer) bootstrapFlow(rc *ruleContext) *model.FlowDescriptor {
	flow := &model.FlowDescriptor{
		SwitchID:    rc.attachment.ForwarderID,
		TableID:     s.Config.ClassifierTable,
		FlowKey:     model.BootstrapKey,
		OwnerPathID: model.BootstrapPathID,
	}
	if rc.caps.engine == classifyTableEngine {
		zero := make([]byte, encoder.VectorSize)
		flow.Body = &model.ClassifyTable{
			Name:         BaseClassifyTable,
			Mask:         encoder.Hex(zero),
			MatchVectors: 1,
			MissNext:     classifyMissNext,
		}
		return flow
	}
	// table-miss: unclassified traffic continues in the regular pipeline
	flow.Body = &model.FlowRule{
		Priority: s.Config.BootstrapPriority,
		Actions:  []model.Action{model.GotoTable(s.Config.NextTable)},
	}
	return flow
}

// inFlow returns the rule delivering traffic leaving the reverse path to the attachment.
func (s *Synthesizer) inFlow(rc *ruleContext, reverse *model.ChainPath) *model.FlowDescriptor {
	flow := &model.FlowDescriptor{
		SwitchID:    rc.attachment.ForwarderID,
		TableID:     s.Config.ClassifierTable,
		FlowKey:     model.FlowKey(rc.classifier, rc.acl, rc.ace.RuleName, model.RoleIn),
		OwnerPathID: reverse.ID,
	}
	if rc.mode == Remove {
		return flow
	}

	finalSI := reverse.FinalServiceIndex()
	switch rc.caps.engine {
	case flowTableEngine:
		actions := append(rc.encap.stripActions(), model.Output(rc.port))
		flow.Body = &model.FlowRule{
			Priority: s.Config.ClassifierPriority,
			Match:    rc.encap.returnMatch(reverse.ID, finalSI),
			Actions:  actions,
		}
	case classifyTableEngine:
		flow.Body = &model.NshMap{
			SPI:       reverse.ID,
			SI:        finalSI,
			MappedSPI: reverse.ID,
			MappedSI:  finalSI,
			Action:    model.NshPop,
			Interface: rc.port.Name,
		}
	}
	return flow
}

// relayFlow returns the rule redirecting reverse traffic from the remote last-hop
// switch back to the classifier's switch, nil if the tunnel endpoints are unknown.
func (s *Synthesizer) relayFlow(rc *ruleContext, reverse *model.ChainPath, inKey string) *model.FlowDescriptor {
	remoteID := reverse.LastHop().ForwarderID
	flow := &model.FlowDescriptor{
		SwitchID:    remoteID,
		TableID:     s.Config.RelayTable,
		FlowKey:     model.RelayKey(inKey),
		OwnerPathID: reverse.ID,
	}
	if rc.mode == Remove {
		return flow
	}

	remote, found := s.Tunnels.ResolveRemoteTunnelEndpoint(remoteID)
	if !found {
		s.Log.Warnf("Rule %s: tunnel endpoint of switch %s not resolved, skipping relay rule", rc.rule, remoteID)
		return nil
	}
	local, found := s.Tunnels.ResolveRemoteTunnelEndpoint(rc.attachment.ForwarderID)
	if !found {
		s.Log.Warnf("Rule %s: tunnel endpoint of switch %s not resolved, skipping relay rule",
			rc.rule, rc.attachment.ForwarderID)
		return nil
	}

	actions := []model.Action{
		model.SetTunnelDst(local.Address),
		model.Output(model.Port{Name: remote.Interface}),
	}
	flow.Body = &model.FlowRule{
		Priority: s.Config.RelayPriority,
		Match:    rc.encap.returnMatch(reverse.ID, reverse.FinalServiceIndex()),
		Actions:  actions,
	}
	s.Log.Debugf("Rule %s: relay on %s towards %s (port %d)", rc.rule, remoteID, local.Address, local.Port)
	return flow
}
