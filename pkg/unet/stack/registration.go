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

// Package stack defines the contracts between the layers of the usernet
// stack: the link endpoints below the network layer, the address
// resolver beside it, and the transport endpoint above it.
//
// The network layer implementation lives in network/ipv4; link endpoint
// implementations live under link/.
package stack

import (
	"github.com/usernet/usernet/pkg/unet"
)

// NetworkDispatcher is the inbound entry point of a network layer. Link
// endpoints call DeliverNetworkPacket for every inbound link-layer
// payload.
type NetworkDispatcher interface {
	// DeliverNetworkPacket hands one inbound payload to the network
	// layer. pkt is the link-layer payload, possibly including trailing
	// link-layer padding; it is only valid for the duration of the call.
	//
	// DeliverNetworkPacket always returns control to the caller
	// synchronously, whatever the payload contains.
	DeliverNetworkPacket(pkt []byte)
}

// LinkEndpoint is the interface implemented by data link layers (e.g.,
// ethernet, a TUN device, an in-memory channel) and used by the network
// layer to send datagrams.
type LinkEndpoint interface {
	// MTU is the maximum size of the link-layer payload, and therefore
	// the largest datagram (header included) the network layer may hand
	// to WritePacket.
	MTU() uint32

	// LinkAddress returns the endpoint's own link-layer address.
	LinkAddress() unet.LinkAddress

	// WritePacket reserves size bytes addressed to the given remote
	// link address and invokes write with the writable window. The
	// window is only valid for the duration of the callback; the
	// endpoint owns the backing buffer.
	WritePacket(remote unet.LinkAddress, size int, write func(pkt []byte))

	// Attach attaches the endpoint to a network layer. After Attach the
	// endpoint delivers inbound payloads to the dispatcher.
	Attach(dispatcher NetworkDispatcher)
}

// LinkAddressResolver maps network addresses to link addresses, possibly
// asynchronously (e.g., by running an ARP exchange).
type LinkAddressResolver interface {
	// ResolveLinkAddress resolves addr and invokes done exactly once
	// with the result: the link address and true on success, or false
	// if the address cannot be mapped.
	//
	// done may run before ResolveLinkAddress returns (a cache hit) or
	// after (an exchange was needed). The return value reports whether
	// done already ran by the time ResolveLinkAddress returned.
	ResolveLinkAddress(addr unet.Address, done func(linkAddr unet.LinkAddress, ok bool)) bool
}

// Network is the view a transport endpoint has of the network layer it
// is registered with.
type Network interface {
	// LocalAddress returns the network layer's own address.
	LocalAddress() unet.Address

	// MaxPayloadSize returns the largest payload a single datagram can
	// carry, derived from the link MTU.
	MaxPayloadSize() int

	// SendPayload builds and sends one datagram carrying size payload
	// bytes to dst. writer is invoked with the payload window once the
	// destination's link address is known; it reports whether writer
	// ran before SendPayload returned.
	SendPayload(dst unet.Address, protocol unet.TransportProtocolNumber, size int, writer func(payload []byte)) bool
}

// TransportEndpoint is the interface implemented by the one upper-layer
// protocol instance registered with a network layer.
type TransportEndpoint interface {
	// Number returns the transport's protocol number. Inbound datagrams
	// carrying any other protocol are dropped.
	Number() unet.TransportProtocolNumber

	// Init attaches the transport to its network layer. The network
	// layer calls Init exactly once, after its own maximum payload size
	// is known; the transport may consult net.MaxPayloadSize from
	// within Init.
	Init(net Network, clock unet.Clock)

	// ReceiveSegment handles one inbound segment. payload is only valid
	// for the duration of the call.
	ReceiveSegment(src unet.Address, payload []byte)
}
