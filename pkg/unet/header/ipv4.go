// Copyright 2025 The Usernet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package header provides the encoding and decoding of the IPv4 header
// and the pseudo-header partial sum consumed by transport checksums.
package header

import (
	"encoding/binary"

	"github.com/usernet/usernet/pkg/unet"
	"github.com/usernet/usernet/pkg/unet/checksum"
)

// Field offsets within an IPv4 header.
const (
	versIHL  = 0
	tos      = 1
	totalLen = 2
	ipID     = 4
	flagsFO  = 6
	ttl      = 8
	protocol = 9
	xsum     = 10
	srcAddr  = 12
	dstAddr  = 16
)

const (
	// IPv4MinimumSize is the size of an IPv4 header carrying no options,
	// the only shape this stack supports.
	IPv4MinimumSize = 20

	// IPv4Version is the value of the version field of every IPv4 header.
	IPv4Version = 4

	// IPv4IHL is the header length in 32-bit words of a header carrying
	// no options.
	IPv4IHL = IPv4MinimumSize / 4

	// IPv4MaximumTotalSize is the largest value representable in the
	// total length field.
	IPv4MaximumTotalSize = 0xffff

	// IPv4DefaultTTL is the time-to-live written into every datagram this
	// stack sends. The stack never forwards, so the value is never
	// decremented locally.
	IPv4DefaultTTL = 64

	// IPv4DefaultTOS is the default traffic class written on send.
	IPv4DefaultTOS = 0
)

// Flags that may be set in the "flags" field of the IPv4 header.
const (
	IPv4FlagMoreFragments = 1 << iota
	IPv4FlagDontFragment
)

// ipv4FragmentOffsetMask masks the 13-bit fragment offset out of the
// combined flags/fragment-offset field.
const ipv4FragmentOffsetMask = 0x1fff

// IPv4Fields contains the fields of an IPv4 packet. It is used to describe
// the fields of a packet that needs to be encoded.
type IPv4Fields struct {
	// TOS is the "type of service" field of an IPv4 packet.
	TOS uint8

	// TotalLength is the "total length" field of an IPv4 packet.
	TotalLength uint16

	// ID is the "identification" field of an IPv4 packet.
	ID uint16

	// Flags is the "flags" field of an IPv4 packet.
	Flags uint8

	// FragmentOffset is the "fragment offset" field of an IPv4 packet.
	FragmentOffset uint16

	// TTL is the "ttl" field of an IPv4 packet.
	TTL uint8

	// Protocol is the "protocol" field of an IPv4 packet.
	Protocol uint8

	// Checksum is the "checksum" field of an IPv4 packet.
	Checksum uint16

	// SrcAddr is the "source ip address" of an IPv4 packet.
	SrcAddr unet.Address

	// DstAddr is the "destination ip address" of an IPv4 packet.
	DstAddr unet.Address
}

// IPv4 represents an IPv4 header stored in a byte array.
type IPv4 []byte

// Version returns the version field of the IPv4 header.
func (b IPv4) Version() uint8 {
	return b[versIHL] >> 4
}

// IHL returns the "internet header length" field of the IPv4 header, in
// 32-bit words.
func (b IPv4) IHL() uint8 {
	return b[versIHL] & 0xf
}

// HeaderLength returns the length of the IPv4 header, in bytes.
func (b IPv4) HeaderLength() uint8 {
	return b.IHL() * 4
}

// TOS returns the "type of service" field of the IPv4 header.
func (b IPv4) TOS() uint8 {
	return b[tos]
}

// TotalLength returns the "total length" field of the IPv4 header.
func (b IPv4) TotalLength() uint16 {
	return binary.BigEndian.Uint16(b[totalLen:])
}

// ID returns the "identification" field of the IPv4 header.
func (b IPv4) ID() uint16 {
	return binary.BigEndian.Uint16(b[ipID:])
}

// Flags returns the "flags" field of the IPv4 header.
func (b IPv4) Flags() uint8 {
	return uint8(binary.BigEndian.Uint16(b[flagsFO:]) >> 13)
}

// FragmentOffset returns the "fragment offset" field of the IPv4 header,
// in bytes.
func (b IPv4) FragmentOffset() uint16 {
	return (binary.BigEndian.Uint16(b[flagsFO:]) & ipv4FragmentOffsetMask) << 3
}

// TTL returns the "ttl" field of the IPv4 header.
func (b IPv4) TTL() uint8 {
	return b[ttl]
}

// Protocol returns the "protocol" field of the IPv4 header.
func (b IPv4) Protocol() uint8 {
	return b[protocol]
}

// TransportProtocol returns the protocol field as a transport protocol
// number.
func (b IPv4) TransportProtocol() unet.TransportProtocolNumber {
	return unet.TransportProtocolNumber(b.Protocol())
}

// Checksum returns the "checksum" field of the IPv4 header.
func (b IPv4) Checksum() uint16 {
	return binary.BigEndian.Uint16(b[xsum:])
}

// SourceAddress returns the "source address" field of the IPv4 header.
func (b IPv4) SourceAddress() unet.Address {
	return unet.AddrFrom4([4]byte(b[srcAddr : srcAddr+unet.AddressSize]))
}

// DestinationAddress returns the "destination address" field of the IPv4
// header.
func (b IPv4) DestinationAddress() unet.Address {
	return unet.AddrFrom4([4]byte(b[dstAddr : dstAddr+unet.AddressSize]))
}

// Payload returns the bytes following the header.
func (b IPv4) Payload() []byte {
	return b[IPv4MinimumSize:]
}

// SetTOS sets the "type of service" field of the IPv4 header.
func (b IPv4) SetTOS(v uint8) {
	b[tos] = v
}

// SetTotalLength sets the "total length" field of the IPv4 header.
func (b IPv4) SetTotalLength(totalLength uint16) {
	binary.BigEndian.PutUint16(b[totalLen:], totalLength)
}

// SetID sets the "identification" field of the IPv4 header.
func (b IPv4) SetID(v uint16) {
	binary.BigEndian.PutUint16(b[ipID:], v)
}

// SetFlagsFragmentOffset sets the "flags" and "fragment offset" fields of
// the IPv4 header. The offset is given in bytes and must be a multiple
// of 8.
func (b IPv4) SetFlagsFragmentOffset(flags uint8, offset uint16) {
	v := uint16(flags)<<13 | offset>>3
	binary.BigEndian.PutUint16(b[flagsFO:], v)
}

// SetTTL sets the "ttl" field of the IPv4 header.
func (b IPv4) SetTTL(v uint8) {
	b[ttl] = v
}

// SetProtocol sets the "protocol" field of the IPv4 header.
func (b IPv4) SetProtocol(v uint8) {
	b[protocol] = v
}

// SetChecksum sets the "checksum" field of the IPv4 header.
func (b IPv4) SetChecksum(v uint16) {
	checksum.Put(b[xsum:], v)
}

// SetSourceAddress sets the "source address" field of the IPv4 header.
func (b IPv4) SetSourceAddress(addr unet.Address) {
	copy(b[srcAddr:srcAddr+unet.AddressSize], addr[:])
}

// SetDestinationAddress sets the "destination address" field of the IPv4
// header.
func (b IPv4) SetDestinationAddress(addr unet.Address) {
	copy(b[dstAddr:dstAddr+unet.AddressSize], addr[:])
}

// CalculateChecksum calculates the checksum of the IPv4 header.
func (b IPv4) CalculateChecksum() uint16 {
	return checksum.Checksum(b[:IPv4MinimumSize], 0)
}

// IsChecksumValid returns true iff the header checksum, summed over the
// full header including the stored checksum field, folds to all ones.
func (b IPv4) IsChecksumValid() bool {
	return b.CalculateChecksum() == 0xffff
}

// Encode encodes all the fields of the IPv4 header. The checksum field is
// written as given; callers computing a real checksum encode with a zero
// checksum first and patch the result in with SetChecksum.
func (b IPv4) Encode(i *IPv4Fields) {
	b[versIHL] = IPv4Version<<4 | IPv4IHL
	b.SetTOS(i.TOS)
	b.SetTotalLength(i.TotalLength)
	b.SetID(i.ID)
	b.SetFlagsFragmentOffset(i.Flags, i.FragmentOffset)
	b.SetTTL(i.TTL)
	b.SetProtocol(i.Protocol)
	b.SetChecksum(i.Checksum)
	b.SetSourceAddress(i.SrcAddr)
	b.SetDestinationAddress(i.DstAddr)
}

// PseudoHeaderChecksum calculates the partial, uncomplemented sum of the
// 12-byte pseudo-header bound into transport checksums:
//
//	+--------------------------------------------+
//	|           Source network address           |
//	+--------------------------------------------+
//	|         Destination network address        |
//	+----------+----------+----------------------+
//	|   zero   | Protocol |     Segment size     |
//	+----------+----------+----------------------+
//
// The pseudo-header is never transmitted. The returned sum is combined by
// the transport with the checksum of the segment itself.
func PseudoHeaderChecksum(protocol unet.TransportProtocolNumber, srcAddr, dstAddr unet.Address, segmentSize uint16) uint16 {
	var ph [12]byte
	copy(ph[0:], srcAddr[:])
	copy(ph[4:], dstAddr[:])
	ph[8] = 0
	ph[9] = uint8(protocol)
	binary.BigEndian.PutUint16(ph[10:], segmentSize)
	return checksum.Checksum(ph[:], 0)
}
