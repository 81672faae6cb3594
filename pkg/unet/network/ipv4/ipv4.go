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

// Package ipv4 contains the IPv4 network layer of the usernet stack. An
// Endpoint validates and demultiplexes inbound datagrams into the one
// registered transport endpoint, and builds outbound datagrams once the
// destination's link address has been resolved.
//
// The endpoint supports neither options nor fragmentation: inbound
// datagrams carrying either are dropped, and outbound datagrams are sent
// with the don't-fragment flag set.
package ipv4

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/usernet/usernet/pkg/unet"
	"github.com/usernet/usernet/pkg/unet/header"
	"github.com/usernet/usernet/pkg/unet/stack"
)

// Endpoint is an IPv4 network layer bound to a single local address on a
// single link endpoint.
//
// All inbound and outbound processing for one Endpoint runs to
// completion inside the callback that triggered it; an Endpoint performs
// no work of its own between callbacks. Endpoints are intended to be
// driven from a single goroutine (one endpoint per processing core); the
// datagram-id counter is nevertheless atomic, so sharing an endpoint
// does not corrupt it.
type Endpoint struct {
	link      stack.LinkEndpoint
	resolver  stack.LinkAddressResolver
	transport stack.TransportEndpoint

	localAddr unet.Address

	// maxPayloadSize is derived from the link MTU at construction and
	// never changes.
	maxPayloadSize int

	// datagramID is the id of the next datagram to be sent. Only the
	// low 16 bits are used.
	datagramID atomic.Uint32

	log     logrus.FieldLogger
	dropLim *rate.Limiter
}

var _ stack.NetworkDispatcher = (*Endpoint)(nil)
var _ stack.Network = (*Endpoint)(nil)

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithLogger sets the logger diagnostics are written to. The default is
// logrus.StandardLogger().
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Endpoint) {
		e.log = log
	}
}

// WithDropLogLimit bounds the rate of malformed-datagram diagnostics.
// Inbound traffic is untrusted; without a bound a stream of garbage can
// flood the error channel.
func WithDropLogLimit(limit rate.Limit, burst int) Option {
	return func(e *Endpoint) {
		e.dropLim = rate.NewLimiter(limit, burst)
	}
}

// New creates an IPv4 endpoint on the given link, resolving next-hop
// link addresses through resolver and delivering inbound payloads to
// transport.
//
// New derives the maximum payload size from the link MTU before
// initializing the transport, so the transport may consult it from
// within Init. New attaches the endpoint to the link; the link must not
// deliver packets before New is called and must outlive the endpoint, as
// must the resolver.
func New(link stack.LinkEndpoint, resolver stack.LinkAddressResolver, localAddr unet.Address, transport stack.TransportEndpoint, clock unet.Clock, opts ...Option) *Endpoint {
	e := &Endpoint{
		link:           link,
		resolver:       resolver,
		transport:      transport,
		localAddr:      localAddr,
		maxPayloadSize: calculateMaxPayloadSize(link.MTU()),
		log:            logrus.StandardLogger(),
		dropLim:        rate.NewLimiter(defaultDropLogRate, defaultDropLogBurst),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("proto", "ipv4")

	// The transport consults MaxPayloadSize during Init, so it must be
	// initialized last.
	transport.Init(e, clock)
	link.Attach(e)
	return e
}

const (
	defaultDropLogRate  rate.Limit = 16
	defaultDropLogBurst            = 32
)

// calculateMaxPayloadSize derives the network-layer payload limit from
// the link-layer payload limit. A datagram's total length field is 16
// bits, so the link MTU is capped at 65535 before subtracting the
// header.
func calculateMaxPayloadSize(mtu uint32) int {
	if mtu > header.IPv4MaximumTotalSize {
		mtu = header.IPv4MaximumTotalSize
	}
	return int(mtu) - header.IPv4MinimumSize
}

// LocalAddress implements stack.Network.
func (e *Endpoint) LocalAddress() unet.Address {
	return e.localAddr
}

// MaxPayloadSize implements stack.Network.
func (e *Endpoint) MaxPayloadSize() int {
	return e.maxPayloadSize
}

// dropf logs one drop diagnostic, subject to the drop log rate limit.
func (e *Endpoint) dropf(fields logrus.Fields, format string, args ...any) {
	if e.dropLim.Allow() {
		e.log.WithFields(fields).Errorf("datagram ignored: "+format, args...)
	}
}

// DeliverNetworkPacket implements stack.NetworkDispatcher. It validates
// one inbound link-layer payload and hands the datagram's payload to the
// transport endpoint.
//
// Every check failure drops the datagram with a diagnostic and nothing
// else: no state changes, no reply, and control always returns to the
// link layer synchronously.
func (e *Endpoint) DeliverNetworkPacket(pkt []byte) {
	if len(pkt) < header.IPv4MinimumSize {
		e.dropf(logrus.Fields{"size": len(pkt)}, "too small to hold an IPv4 header")
		return
	}

	h := header.IPv4(pkt)

	if v := h.Version(); v != header.IPv4Version {
		e.dropf(logrus.Fields{"src": h.SourceAddress(), "version": v}, "invalid IP version")
		return
	}

	if h.IHL() != header.IPv4IHL {
		e.dropf(logrus.Fields{"src": h.SourceAddress(), "ihl": h.IHL()}, "options are not supported")
		return
	}

	headerSize := int(h.HeaderLength())
	totalSize := int(h.TotalLength())

	if totalSize < headerSize {
		e.dropf(logrus.Fields{"src": h.SourceAddress(), "total": totalSize, "header": headerSize}, "total size is less than header size")
		return
	}

	if len(pkt) < totalSize {
		e.dropf(logrus.Fields{"src": h.SourceAddress(), "total": totalSize, "size": len(pkt)}, "datagram is shorter than its total size")
		return
	}

	if h.Flags()&header.IPv4FlagMoreFragments != 0 || h.FragmentOffset() != 0 {
		e.dropf(logrus.Fields{"src": h.SourceAddress()}, "fragmented datagrams are not supported")
		return
	}

	if dst := h.DestinationAddress(); dst != e.localAddr {
		e.dropf(logrus.Fields{"src": h.SourceAddress(), "dst": dst}, "bad recipient")
		return
	}

	if !h.IsChecksumValid() {
		e.dropf(logrus.Fields{"src": h.SourceAddress()}, "invalid checksum")
		return
	}

	// The link-layer frame may carry a small padding past the end of
	// the datagram.
	payload := pkt[headerSize:totalSize]

	proto := h.TransportProtocol()
	if proto != e.transport.Number() {
		e.dropf(logrus.Fields{"src": h.SourceAddress(), "protocol": proto}, "unknown protocol")
		return
	}

	src := h.SourceAddress()
	e.log.WithFields(logrus.Fields{"src": src, "size": len(payload)}).Debug("received datagram")
	e.transport.ReceiveSegment(src, payload)
}

// SendPayload implements stack.Network. It builds one datagram carrying
// size payload bytes to dst and hands it to the link layer.
//
// writer runs exactly once with the payload window if the destination's
// link address resolves, possibly after SendPayload has returned when an
// address-resolution exchange is needed; any memory writer captures must
// stay valid until then. If the destination is unreachable the send is
// logged and abandoned, and writer never runs. The return value reports
// whether writer ran before SendPayload returned, not whether the send
// succeeded.
//
// size larger than MaxPayloadSize (or negative) is a contract violation
// and panics.
func (e *Endpoint) SendPayload(dst unet.Address, protocol unet.TransportProtocolNumber, size int, writer func(payload []byte)) bool {
	if size < 0 || size > e.maxPayloadSize {
		panic(fmt.Sprintf("ipv4: payload size %d outside [0, %d]", size, e.maxPayloadSize))
	}

	return e.resolver.ResolveLinkAddress(dst, func(linkAddr unet.LinkAddress, ok bool) {
		if !ok {
			e.log.WithField("dst", dst).Error("unreachable address")
			return
		}

		id := uint16(e.datagramID.Add(1) - 1)
		datagramSize := header.IPv4MinimumSize + size

		e.log.WithFields(logrus.Fields{"dst": dst, "size": datagramSize, "protocol": protocol}).Debug("sending datagram")

		e.link.WritePacket(linkAddr, datagramSize, func(pkt []byte) {
			h := header.IPv4(pkt)
			h.Encode(&header.IPv4Fields{
				TOS:         header.IPv4DefaultTOS,
				TotalLength: uint16(datagramSize),
				ID:          id,
				Flags:       header.IPv4FlagDontFragment,
				TTL:         header.IPv4DefaultTTL,
				Protocol:    uint8(protocol),
				SrcAddr:     e.localAddr,
				DstAddr:     dst,
			})
			// Computed last, over the fully populated header with the
			// checksum field still zero.
			h.SetChecksum(^h.CalculateChecksum())

			writer(pkt[header.IPv4MinimumSize:datagramSize])
		})
	})
}
