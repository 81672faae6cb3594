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

// Package unet provides the types shared by all layers of the usernet
// stack: network and link addresses, transport protocol numbers, and the
// clock abstraction handed to transport endpoints.
//
// The stack is IPv4-only. Addresses are 4-byte values kept in wire byte
// order; they are compared for equality only and carry no routing
// semantics.
package unet

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AddressSize is the size, in bytes, of a network address.
const AddressSize = 4

// Address is an IPv4 address in wire byte order.
//
// Address is a value type; the zero value is the unspecified address
// 0.0.0.0. Addresses are comparable with ==.
type Address [AddressSize]byte

// AddrFrom4 returns an Address from its 4 wire-order bytes.
func AddrFrom4(addr [AddressSize]byte) Address {
	return Address(addr)
}

// AddrFromUint32 returns an Address from a host-order uint32, so that
// AddrFromUint32(0x0a000001) is 10.0.0.1.
func AddrFromUint32(v uint32) Address {
	var a Address
	binary.BigEndian.PutUint32(a[:], v)
	return a
}

// ParseAddr parses an address in dotted decimal notation.
func ParseAddr(s string) (Address, error) {
	var a Address
	parts := strings.Split(s, ".")
	if len(parts) != AddressSize {
		return Address{}, fmt.Errorf("unet: bad address %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return Address{}, fmt.Errorf("unet: bad address %q", s)
		}
		a[i] = byte(v)
	}
	return a, nil
}

// Uint32 returns the address as a host-order uint32.
func (a Address) Uint32() uint32 {
	return binary.BigEndian.Uint32(a[:])
}

// String implements fmt.Stringer, returning the dotted decimal form.
func (a Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// LinkAddress is a byte string holding a link-layer address. Its length
// and interpretation are owned by the link endpoint in use.
type LinkAddress string

// TransportProtocolNumber is the 8-bit protocol field of an IPv4 header
// identifying the upper-layer protocol carried by a datagram.
type TransportProtocolNumber uint8

// Timer is a timer armed through a Clock.
type Timer interface {
	// Stop prevents the timer from firing, returning whether it did.
	Stop() bool

	// Reset re-arms the timer to fire after d.
	Reset(d time.Duration)
}

// Clock is the timekeeping facility handed to transport endpoints at
// initialization. Transports own all timers in the stack; the network
// layer only passes the clock through.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc arms a timer that calls f after d.
	AfterFunc(d time.Duration, f func()) Timer
}

// StdClock is a Clock backed by the time package.
type StdClock struct{}

var _ Clock = StdClock{}

// Now implements Clock.Now.
func (StdClock) Now() time.Time {
	return time.Now()
}

// AfterFunc implements Clock.AfterFunc.
func (StdClock) AfterFunc(d time.Duration, f func()) Timer {
	return stdTimer{time.AfterFunc(d, f)}
}

type stdTimer struct {
	t *time.Timer
}

func (t stdTimer) Stop() bool {
	return t.t.Stop()
}

func (t stdTimer) Reset(d time.Duration) {
	t.t.Reset(d)
}
