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

// Package channel provides a channel-based link endpoint. Outbound
// datagrams are stored in a channel for the test or harness driving the
// endpoint to read back; inbound payloads are injected explicitly.
package channel

import (
	"context"

	"github.com/usernet/usernet/pkg/unet"
	"github.com/usernet/usernet/pkg/unet/stack"
)

// PacketInfo holds one outbound datagram and the link address it was
// sent to.
type PacketInfo struct {
	Remote unet.LinkAddress
	Pkt    []byte
}

// Endpoint is a link endpoint that queues outbound datagrams in a
// channel.
type Endpoint struct {
	mtu        uint32
	linkAddr   unet.LinkAddress
	dispatcher stack.NetworkDispatcher

	// c is the outbound packet channel.
	c chan PacketInfo
}

var _ stack.LinkEndpoint = (*Endpoint)(nil)

// New creates a new channel endpoint with room for size outbound
// packets.
func New(size int, mtu uint32, linkAddr unet.LinkAddress) *Endpoint {
	return &Endpoint{
		mtu:      mtu,
		linkAddr: linkAddr,
		c:        make(chan PacketInfo, size),
	}
}

// Close closes the outbound channel, unblocking readers.
func (e *Endpoint) Close() {
	close(e.c)
}

// MTU implements stack.LinkEndpoint.
func (e *Endpoint) MTU() uint32 {
	return e.mtu
}

// LinkAddress implements stack.LinkEndpoint.
func (e *Endpoint) LinkAddress() unet.LinkAddress {
	return e.linkAddr
}

// Attach implements stack.LinkEndpoint.
func (e *Endpoint) Attach(dispatcher stack.NetworkDispatcher) {
	e.dispatcher = dispatcher
}

// WritePacket implements stack.LinkEndpoint. The packet is dropped if
// the outbound channel is full.
func (e *Endpoint) WritePacket(remote unet.LinkAddress, size int, write func(pkt []byte)) {
	pkt := make([]byte, size)
	write(pkt)

	select {
	case e.c <- PacketInfo{Remote: remote, Pkt: pkt}:
	default:
	}
}

// InjectInbound delivers one inbound payload to the attached network
// layer.
func (e *Endpoint) InjectInbound(pkt []byte) {
	e.dispatcher.DeliverNetworkPacket(pkt)
}

// NumQueued returns the number of packets queued for reading.
func (e *Endpoint) NumQueued() int {
	return len(e.c)
}

// Read reads one outbound packet, blocking until one is available or the
// endpoint is closed.
func (e *Endpoint) Read() (PacketInfo, bool) {
	p, ok := <-e.c
	return p, ok
}

// TryRead reads one outbound packet without blocking.
func (e *Endpoint) TryRead() (PacketInfo, bool) {
	select {
	case p := <-e.c:
		return p, true
	default:
		return PacketInfo{}, false
	}
}

// ReadContext reads one outbound packet, blocking until one is
// available or the context is done.
func (e *Endpoint) ReadContext(ctx context.Context) (PacketInfo, bool) {
	select {
	case p, ok := <-e.c:
		return p, ok
	case <-ctx.Done():
		return PacketInfo{}, false
	}
}
