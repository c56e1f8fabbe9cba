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
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"

	"github.com/contiv/sfc-classifier/plugins/classifier/model"
)

const (
	// VectorSize is the size of one classify-table match vector.
	VectorSize = 16

	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD

	macLen = 6

	// IPv4 header up to the source address, protocol at offset 9
	ipv4HeaderLen   = 12
	ipv4ProtoOffset = 9

	// IPv6 header up to the source address, next header at offset 6
	ipv6HeaderLen   = 8
	ipv6ProtoOffset = 6

	l4PortsLen = 4
)

var (
	// ErrEmptyMatch is returned when no field contributes to the classify match.
	ErrEmptyMatch = errors.New("match criteria do not constrain any classify field")

	// ErrMixedFamilies is returned when source and destination prefixes differ in IP version.
	ErrMixedFamilies = errors.New("source and destination prefixes of different IP versions")
)

// ClassifyMatch is a mask/value pair of the classify engine.
// Both slices have the same length, a multiple of VectorSize.
type ClassifyMatch struct {
	Mask  []byte
	Value []byte
}

// MaskHex returns the mask in colon-separated hex form.
func (cm ClassifyMatch) MaskHex() string {
	return Hex(cm.Mask)
}

// ValueHex returns the value in colon-separated hex form.
func (cm ClassifyMatch) ValueHex() string {
	return Hex(cm.Value)
}

// SkipVectors returns the number of leading vectors skipped by the match.
func (cm ClassifyMatch) SkipVectors() uint32 {
	return 0
}

// MatchVectors returns the number of vectors compared by the match.
func (cm ClassifyMatch) MatchVectors() uint32 {
	return uint32(len(cm.Mask) / VectorSize)
}

// Hex formats bytes as two lower-case hex digits per byte, separated by colons.
func Hex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, ":")
}

// section is a fixed-width part of the classify match.
type section struct {
	mask        []byte
	value       []byte
	constrained bool
}

func newSection(size int) *section {
	return &section{mask: make([]byte, size), value: make([]byte, size)}
}

// set copies value under a full mask at the given offset.
func (s *section) set(offset int, value []byte) {
	for i, b := range value {
		s.mask[offset+i] = 0xff
		s.value[offset+i] = b
	}
	s.constrained = true
}

// setMasked copies value under the given mask at the given offset.
func (s *section) setMasked(offset int, value, mask []byte) {
	for i := range mask {
		s.mask[offset+i] = mask[i]
		s.value[offset+i] = value[i] & mask[i]
	}
	s.constrained = true
}

// EncodeClassify builds the classify-table mask/value pair for the given match criteria.
// Fixed-width sections are laid out at their offsets in the Ethernet frame:
//   dst MAC | src MAC | ethertype | IP header up to addresses | src IP | dst IP | L4 ports
// IP sections are present whenever an L3 field is constrained, L4 ports whenever
// the protocol is. Unconstrained fields inside a present section have zero mask.
// The result is zero-padded to a multiple of VectorSize.
func EncodeClassify(mc model.MatchCriteria, bitExact bool) (ClassifyMatch, error) {
	var sections []*section

	eth := newSection(2 * macLen)
	if len(mc.DstMAC) == macLen {
		eth.set(0, mc.DstMAC)
	}
	if len(mc.SrcMAC) == macLen {
		eth.set(macLen, mc.SrcMAC)
	}
	sections = append(sections, eth)

	if mc.HasL3() {
		l3, err := encodeL3(mc, bitExact)
		if err != nil {
			return ClassifyMatch{}, err
		}
		sections = append(sections, l3...)
	}

	var (
		match       ClassifyMatch
		constrained bool
	)
	for _, s := range sections {
		constrained = constrained || s.constrained
		match.Mask = append(match.Mask, s.mask...)
		match.Value = append(match.Value, s.value...)
	}
	if !constrained {
		return ClassifyMatch{}, ErrEmptyMatch
	}
	if rem := len(match.Mask) % VectorSize; rem != 0 {
		pad := make([]byte, VectorSize-rem)
		match.Mask = append(match.Mask, pad...)
		match.Value = append(match.Value, pad...)
	}
	return match, nil
}

// encodeL3 returns the ethertype+header, source and destination sections,
// followed by the L4 port section if the protocol is set.
func encodeL3(mc model.MatchCriteria, bitExact bool) ([]*section, error) {
	ipv6, err := ipVersion(mc)
	if err != nil {
		return nil, err
	}

	headerLen, protoOffset, addrLen, etherType := ipv4HeaderLen, ipv4ProtoOffset, net.IPv4len, etherTypeIPv4
	if ipv6 {
		headerLen, protoOffset, addrLen, etherType = ipv6HeaderLen, ipv6ProtoOffset, net.IPv6len, etherTypeIPv6
	}

	header := newSection(2 + headerLen)
	header.set(0, uint16Bytes(uint16(etherType)))
	if mc.Protocol != 0 {
		header.set(2+protoOffset, []byte{mc.Protocol})
	}

	src := newSection(addrLen)
	if mc.SrcNetwork != nil {
		value, mask := PrefixValueMask(mc.SrcNetwork, bitExact)
		src.setMasked(0, value, mask)
	}
	dst := newSection(addrLen)
	if mc.DstNetwork != nil {
		value, mask := PrefixValueMask(mc.DstNetwork, bitExact)
		dst.setMasked(0, value, mask)
	}

	if mc.Protocol == 0 {
		return []*section{header, src, dst}, nil
	}
	ports := newSection(l4PortsLen)
	if mc.SrcPort != nil {
		ports.set(0, uint16Bytes(mc.SrcPort.Lower))
	}
	if mc.DstPort != nil {
		ports.set(2, uint16Bytes(mc.DstPort.Lower))
	}
	return []*section{header, src, dst, ports}, nil
}

// ipVersion returns true for IPv6 criteria. Protocol without prefixes selects IPv4.
func ipVersion(mc model.MatchCriteria) (ipv6 bool, err error) {
	if mc.SrcNetwork != nil && mc.DstNetwork != nil &&
		(mc.SrcNetwork.IP.To4() == nil) != (mc.DstNetwork.IP.To4() == nil) {
		return false, ErrMixedFamilies
	}
	return mc.IsIPv6(), nil
}

// PrefixValueMask returns the network address and mask bytes of a prefix
// (4 bytes for IPv4, 16 for IPv6). With bitExact unset the mask is truncated
// to whole bytes: bytes fully covered by the prefix length are 0xff, the rest 0x00.
func PrefixValueMask(prefix *net.IPNet, bitExact bool) (value, mask []byte) {
	ip := prefix.IP.To4()
	if ip == nil {
		ip = prefix.IP.To16()
	}
	ones, bits := prefix.Mask.Size()
	if bits != 8*len(ip) {
		// non-canonical mask or mask of other length, match the host
		ones, bits = 8*len(ip), 8*len(ip)
	}
	if !bitExact {
		ones = ones / 8 * 8
	}
	mask = net.CIDRMask(ones, bits)
	value = make([]byte, len(mask))
	for i := range mask {
		value[i] = ip[i] & mask[i]
	}
	return value, mask
}

func uint16Bytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// Lint returns notes about parts of the criteria the encoders approximate or ignore.
func Lint(mc model.MatchCriteria) (notes []string) {
	if mc.Protocol == 0 && (mc.SrcPort != nil || mc.DstPort != nil) {
		notes = append(notes, "L4 ports are ignored without protocol")
	}
	for _, pr := range []*model.PortRange{mc.SrcPort, mc.DstPort} {
		if pr != nil && !pr.IsSingle() {
			notes = append(notes, fmt.Sprintf("port range %s is not supported, using lower bound %d",
				pr.String(), pr.Lower))
		}
	}
	if len(mc.SrcMAC) != 0 && len(mc.SrcMAC) != macLen {
		notes = append(notes, "source MAC is not a 6-byte address and is ignored")
	}
	if len(mc.DstMAC) != 0 && len(mc.DstMAC) != macLen {
		notes = append(notes, "destination MAC is not a 6-byte address and is ignored")
	}
	return notes
}
