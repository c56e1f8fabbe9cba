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

// AttachmentVariant selects how classifier rules are installed at an attachment point.
type AttachmentVariant string

const (
	// Direct attachment is a plain switch port programmed through flow tables.
	Direct AttachmentVariant = "direct"

	// Logical attachment is an abstracted interface whose return path
	// is handled by the interface owner.
	Logical AttachmentVariant = "logical"

	// ClassifyEngine attachment is programmed through classify tables
	// with byte-level mask/value matching.
	ClassifyEngine AttachmentVariant = "classify-engine"
)

// ParseAttachmentVariant converts variant name (case-insensitive) into AttachmentVariant.
// Empty string is parsed as Direct.
func ParseAttachmentVariant(name string) (AttachmentVariant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(Direct):
		return Direct, nil
	case string(Logical):
		return Logical, nil
	case string(ClassifyEngine), "classify":
		return ClassifyEngine, nil
	}
	return "", fmt.Errorf("unknown attachment variant: %q", name)
}

// Encapsulation is the way chain metadata is carried by steered packets.
type Encapsulation string

const (
	// NSH carries path ID and service index in a Network Service Header.
	NSH Encapsulation = "nsh"

	// MACChaining encodes path ID and service index into the destination MAC address.
	MACChaining Encapsulation = "mac-chaining"
)

// ParseEncapsulation converts encapsulation name into Encapsulation.
// Empty string is parsed as NSH.
func ParseEncapsulation(name string) (Encapsulation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(NSH):
		return NSH, nil
	case string(MACChaining), "mac":
		return MACChaining, nil
	}
	return "", fmt.Errorf("unknown encapsulation: %q", name)
}

// AttachmentPoint identifies where classifier rules are installed.
type AttachmentPoint struct {
	// ForwarderID identifies the switch (service function forwarder) the interface belongs to.
	ForwarderID string `json:"forwarderId"`

	// InterfaceName is the name of the attached interface.
	InterfaceName string `json:"interfaceName"`

	// Variant selects the attachment behaviour.
	Variant AttachmentVariant `json:"variant"`
}

// String returns human-readable representation of the attachment point.
func (ap AttachmentPoint) String() string {
	return fmt.Sprintf("%s/%s (%s)", ap.ForwarderID, ap.InterfaceName, ap.Variant)
}

// Port is an ingress/egress port resolved on a given switch.
type Port struct {
	// Name of the interface the port belongs to.
	Name string `json:"name"`

	// Number is the switch-local port number, 0 when the engine addresses ports by name.
	Number uint32 `json:"number,omitempty"`
}

// String returns the port number if known, the interface name otherwise.
func (p Port) String() string {
	if p.Number != 0 {
		return fmt.Sprintf("%d", p.Number)
	}
	return p.Name
}
