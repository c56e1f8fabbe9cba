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
	"net"
	"strings"
)

// DefaultReversePathSuffix is appended to a forward path name to get the name of its reverse path.
const DefaultReversePathSuffix = "-Reverse"

// Hop is a single service-function hop of a chain path.
type Hop struct {
	ForwarderID     string `json:"forwarderId"`
	ServiceIndex    uint8  `json:"serviceIndex"`
	ServiceFunction string `json:"serviceFunction"`
}

// ChainPath is a rendered service path (RSP): a concrete ordered sequence
// of service-function hops.
type ChainPath struct {
	ID            uint32 `json:"id"`
	Name          string `json:"name"`
	StartingIndex uint8  `json:"startingIndex"`
	Hops          []Hop  `json:"hops"`
}

// LastHop returns the final hop of the path, nil for path without hops.
func (cp *ChainPath) LastHop() *Hop {
	if len(cp.Hops) == 0 {
		return nil
	}
	return &cp.Hops[len(cp.Hops)-1]
}

// FirstHop returns the first hop of the path, nil for path without hops.
func (cp *ChainPath) FirstHop() *Hop {
	if len(cp.Hops) == 0 {
		return nil
	}
	return &cp.Hops[0]
}

// FinalServiceIndex returns the service index carried by traffic leaving the path,
// i.e. after every hop has decremented it.
func (cp *ChainPath) FinalServiceIndex() uint8 {
	return cp.StartingIndex - uint8(len(cp.Hops))
}

// ReversePathName toggles the reverse suffix on a path name: forward name gets
// the suffix appended, reverse name gets it stripped.
func ReversePathName(pathName, suffix string) string {
	if suffix == "" {
		suffix = DefaultReversePathSuffix
	}
	if strings.HasSuffix(pathName, suffix) {
		return strings.TrimSuffix(pathName, suffix)
	}
	return pathName + suffix
}

// IsReversePathName returns true if the name carries the reverse suffix.
func IsReversePathName(pathName, suffix string) bool {
	if suffix == "" {
		suffix = DefaultReversePathSuffix
	}
	return strings.HasSuffix(pathName, suffix)
}

// ChainMAC encodes path ID (lower 24 bits) and service index into a locally
// administered unicast MAC address: 02:<spi>:<spi>:<spi>:00:<si>.
func ChainMAC(pathID uint32, serviceIndex uint8) net.HardwareAddr {
	return net.HardwareAddr{
		0x02,
		byte(pathID >> 16),
		byte(pathID >> 8),
		byte(pathID),
		0x00,
		serviceIndex,
	}
}

// TunnelEndpoint is the tunnel termination of a switch.
type TunnelEndpoint struct {
	// Address of the tunnel endpoint.
	Address net.IP `json:"address"`

	// Port is the UDP port of the tunnel.
	Port uint16 `json:"port"`

	// Interface is the name of the tunnel interface on the switch.
	Interface string `json:"interface"`
}
