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
	"fmt"
	"strings"
)

// FlowRole is the role of a classifier rule within a chain.
type FlowRole string

const (
	// RoleOut steers matching traffic into the forward path.
	RoleOut FlowRole = "out"

	// RoleIn delivers traffic leaving the reverse path to the attachment.
	RoleIn FlowRole = "in"

	// RoleRelay redirects reverse traffic from a remote switch back to the classifier.
	RoleRelay FlowRole = "relay"
)

const (
	// BootstrapKey is the flow key of the per-switch table-initialization rule.
	BootstrapKey = "sfc-classifier-bootstrap"

	// BootstrapPathID is the owner ID under which bootstrap rules are recorded.
	// Chain path IDs start at 1.
	BootstrapPathID uint32 = 0

	// auxiliary key suffixes of the classify engine
	tableKeySuffix   = "-table"
	ingressKeySuffix = "-ingress"
)

// FlowKey returns the deterministic key of a classifier rule:
// <classifier>-<acl>-<rule>.<role>
func FlowKey(classifierName, aclName, ruleName string, role FlowRole) string {
	return fmt.Sprintf("%s-%s-%s.%s", classifierName, aclName, ruleName, role)
}

// RelayKey derives the relay key from the key of the in-flow.
func RelayKey(inKey string) string {
	token := "." + string(RoleIn)
	if idx := strings.LastIndex(inKey, token); idx >= 0 && idx+len(token) == len(inKey) {
		return inKey[:idx] + "." + string(RoleRelay)
	}
	return strings.Replace(inKey, token, "."+string(RoleRelay), 1)
}

// ClassifyTableKey derives the key of the classify table serving the given out-flow.
func ClassifyTableKey(outKey string) string {
	return outKey + tableKeySuffix
}

// IngressBindingKey derives the key of the interface binding enabling the given out-flow.
func IngressBindingKey(outKey string) string {
	return outKey + ingressKeySuffix
}

// FlowID identifies a rule installed on a switch.
type FlowID struct {
	SwitchID string `json:"switchId"`
	TableID  uint8  `json:"tableId"`
	FlowKey  string `json:"flowKey"`
}

// String returns human-readable representation of the flow ID.
func (id FlowID) String() string {
	return fmt.Sprintf("%s/%d/%s", id.SwitchID, id.TableID, id.FlowKey)
}

// FlowDescriptor describes a rule to be added (Body set) or deleted (Body nil).
type FlowDescriptor struct {
	SwitchID    string   `json:"switchId"`
	TableID     uint8    `json:"tableId"`
	FlowKey     string   `json:"flowKey"`
	Body        FlowBody `json:"body,omitempty"`
	OwnerPathID uint32   `json:"ownerPathId"`
}

// IsDelete returns true for delete-only descriptor.
func (fd *FlowDescriptor) IsDelete() bool {
	return fd.Body == nil
}

// ID returns the identity of the described rule.
func (fd *FlowDescriptor) ID() FlowID {
	return FlowID{SwitchID: fd.SwitchID, TableID: fd.TableID, FlowKey: fd.FlowKey}
}

// AsDelete returns a delete-only copy of the descriptor.
func (fd *FlowDescriptor) AsDelete() *FlowDescriptor {
	return &FlowDescriptor{
		SwitchID:    fd.SwitchID,
		TableID:     fd.TableID,
		FlowKey:     fd.FlowKey,
		OwnerPathID: fd.OwnerPathID,
	}
}

// String returns human-readable representation of the descriptor.
func (fd *FlowDescriptor) String() string {
	op := "add"
	if fd.IsDelete() {
		op = "delete"
	}
	return fmt.Sprintf("%s %s (path %d)", op, fd.ID(), fd.OwnerPathID)
}
