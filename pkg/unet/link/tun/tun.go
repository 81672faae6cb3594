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

//go:build linux

// Package tun provides a link endpoint backed by a Linux TUN device. The
// device hands the stack raw IP payloads with no link-layer framing, so
// the endpoint ignores remote link addresses; a TUN interface is point
// to point.
package tun

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/usernet/usernet/pkg/unet"
	"github.com/usernet/usernet/pkg/unet/stack"
)

// Open opens the named TUN device and returns its file descriptor. The
// descriptor is left in blocking mode; the endpoint reads it from a
// dedicated goroutine.
func Open(name string) (int, error) {
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR, 0)
	if err != nil {
		return -1, fmt.Errorf("tun: open /dev/net/tun: %w", err)
	}

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("tun: bad device name %q: %w", name, err)
	}
	ifr.SetUint16(unix.IFF_TUN | unix.IFF_NO_PI)

	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("tun: TUNSETIFF %q: %w", name, err)
	}

	return fd, nil
}

// GetMTU returns the MTU of the named interface.
func GetMTU(name string) (uint32, error) {
	s, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, err
	}
	defer unix.Close(s)

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return 0, err
	}
	if err := unix.IoctlIfreq(s, unix.SIOCGIFMTU, ifr); err != nil {
		return 0, fmt.Errorf("tun: SIOCGIFMTU %q: %w", name, err)
	}

	return ifr.Uint32(), nil
}

// Endpoint is a link endpoint backed by a TUN device file descriptor.
type Endpoint struct {
	fd         int
	mtu        uint32
	dispatcher stack.NetworkDispatcher
}

var _ stack.LinkEndpoint = (*Endpoint)(nil)

// New creates a TUN-backed endpoint from an open TUN file descriptor.
// The endpoint takes ownership of the descriptor.
func New(fd int, mtu uint32) *Endpoint {
	return &Endpoint{fd: fd, mtu: mtu}
}

// MTU implements stack.LinkEndpoint.
func (e *Endpoint) MTU() uint32 {
	return e.mtu
}

// LinkAddress implements stack.LinkEndpoint. TUN devices carry no
// link-layer addressing.
func (e *Endpoint) LinkAddress() unet.LinkAddress {
	return ""
}

// Attach implements stack.LinkEndpoint. It starts the goroutine that
// reads inbound payloads from the device and delivers them to the
// dispatcher. The loop exits when the descriptor is closed.
func (e *Endpoint) Attach(dispatcher stack.NetworkDispatcher) {
	e.dispatcher = dispatcher
	go e.dispatchLoop()
}

func (e *Endpoint) dispatchLoop() {
	buf := make([]byte, e.mtu)
	for {
		n, err := unix.Read(e.fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil || n == 0 {
			return
		}
		e.dispatcher.DeliverNetworkPacket(buf[:n])
	}
}

// WritePacket implements stack.LinkEndpoint. The remote link address is
// ignored.
func (e *Endpoint) WritePacket(_ unet.LinkAddress, size int, write func(pkt []byte)) {
	pkt := make([]byte, size)
	write(pkt)
	unix.Write(e.fd, pkt)
}

// Close closes the underlying descriptor, stopping the dispatch loop.
func (e *Endpoint) Close() error {
	return unix.Close(e.fd)
}
