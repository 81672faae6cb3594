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

package header_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/usernet/usernet/pkg/unet"
	"github.com/usernet/usernet/pkg/unet/checksum"
	"github.com/usernet/usernet/pkg/unet/header"
)

func TestIPv4EncodeDecode(t *testing.T) {
	fields := header.IPv4Fields{
		TOS:            header.IPv4DefaultTOS,
		TotalLength:    28,
		ID:             0x1234,
		Flags:          header.IPv4FlagDontFragment,
		FragmentOffset: 0,
		TTL:            header.IPv4DefaultTTL,
		Protocol:       6,
		Checksum:       0,
		SrcAddr:        unet.Address{192, 168, 1, 58},
		DstAddr:        unet.Address{192, 168, 1, 1},
	}

	b := make([]byte, header.IPv4MinimumSize)
	h := header.IPv4(b)
	h.Encode(&fields)

	if got, want := h.Version(), uint8(header.IPv4Version); got != want {
		t.Errorf("got Version() = %d, want %d", got, want)
	}
	if got, want := h.IHL(), uint8(header.IPv4IHL); got != want {
		t.Errorf("got IHL() = %d, want %d", got, want)
	}
	if got, want := h.HeaderLength(), uint8(header.IPv4MinimumSize); got != want {
		t.Errorf("got HeaderLength() = %d, want %d", got, want)
	}

	decoded := header.IPv4Fields{
		TOS:            h.TOS(),
		TotalLength:    h.TotalLength(),
		ID:             h.ID(),
		Flags:          h.Flags(),
		FragmentOffset: h.FragmentOffset(),
		TTL:            h.TTL(),
		Protocol:       h.Protocol(),
		Checksum:       h.Checksum(),
		SrcAddr:        h.SourceAddress(),
		DstAddr:        h.DestinationAddress(),
	}
	if diff := cmp.Diff(fields, decoded); diff != "" {
		t.Errorf("round-tripped fields mismatch (-want +got):\n%s", diff)
	}
}

func TestIPv4WireLayout(t *testing.T) {
	b := make([]byte, header.IPv4MinimumSize)
	h := header.IPv4(b)
	h.Encode(&header.IPv4Fields{
		TotalLength: 0x001c,
		ID:          0xabcd,
		Flags:       header.IPv4FlagDontFragment,
		TTL:         64,
		Protocol:    6,
		SrcAddr:     unet.Address{1, 2, 3, 4},
		DstAddr:     unet.Address{5, 6, 7, 8},
	})

	want := []byte{
		0x45, 0x00, 0x00, 0x1c,
		0xab, 0xcd, 0x40, 0x00,
		0x40, 0x06, 0x00, 0x00,
		1, 2, 3, 4,
		5, 6, 7, 8,
	}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Errorf("encoded header mismatch (-want +got):\n%s", diff)
	}
}

func TestIPv4FragmentOffset(t *testing.T) {
	b := make([]byte, header.IPv4MinimumSize)
	h := header.IPv4(b)
	h.SetFlagsFragmentOffset(header.IPv4FlagMoreFragments, 1480)

	if got, want := h.Flags(), uint8(header.IPv4FlagMoreFragments); got != want {
		t.Errorf("got Flags() = %d, want %d", got, want)
	}
	if got, want := h.FragmentOffset(), uint16(1480); got != want {
		t.Errorf("got FragmentOffset() = %d, want %d", got, want)
	}
}

func TestIPv4ChecksumInvariant(t *testing.T) {
	b := make([]byte, header.IPv4MinimumSize)
	h := header.IPv4(b)
	h.Encode(&header.IPv4Fields{
		TotalLength: 28,
		ID:          7,
		Flags:       header.IPv4FlagDontFragment,
		TTL:         header.IPv4DefaultTTL,
		Protocol:    6,
		SrcAddr:     unet.Address{10, 0, 0, 1},
		DstAddr:     unet.Address{10, 0, 0, 2},
	})

	if h.IsChecksumValid() {
		t.Error("header with a zero checksum field reported a valid checksum")
	}

	h.SetChecksum(^h.CalculateChecksum())

	if !h.IsChecksumValid() {
		t.Error("header checksum is invalid after computing it")
	}
	// Summing the full header, stored checksum included, folds to all
	// ones.
	if got := h.CalculateChecksum(); got != 0xffff {
		t.Errorf("got checksum over the full header = %#x, want 0xffff", got)
	}

	h.SetTTL(h.TTL() - 1)
	if h.IsChecksumValid() {
		t.Error("checksum still valid after the header changed")
	}
}

func TestPseudoHeaderChecksum(t *testing.T) {
	src := unet.Address{1, 2, 3, 4}
	dst := unet.Address{5, 6, 7, 8}
	const proto = unet.TransportProtocolNumber(6)
	const segSize = 20

	// The pseudo-header is laid out in wire byte order: source,
	// destination, a zero byte, the protocol and the segment size.
	wire := []byte{1, 2, 3, 4, 5, 6, 7, 8, 0, 6, 0, 20}
	want := checksum.Checksum(wire, 0)

	got := header.PseudoHeaderChecksum(proto, src, dst, segSize)
	if got != want {
		t.Errorf("got PseudoHeaderChecksum = %#x, want %#x", got, want)
	}
	// Fixed inputs give a fixed partial sum.
	if got != 0x102e {
		t.Errorf("got PseudoHeaderChecksum = %#x, want 0x102e", got)
	}
}

func TestPseudoHeaderChecksumCombines(t *testing.T) {
	src := unet.Address{10, 0, 0, 1}
	dst := unet.Address{10, 0, 0, 2}
	segment := []byte{0xde, 0xad, 0xbe, 0xef}

	partial := header.PseudoHeaderChecksum(6, src, dst, uint16(len(segment)))
	combined := checksum.Checksum(segment, partial)

	// Summing everything in one pass gives the same result.
	var all []byte
	all = append(all, 10, 0, 0, 1)
	all = append(all, 10, 0, 0, 2)
	all = append(all, 0, 6, 0, byte(len(segment)))
	all = append(all, segment...)
	if want := checksum.Checksum(all, 0); combined != want {
		t.Errorf("got combined checksum %#x, want %#x", combined, want)
	}
}
