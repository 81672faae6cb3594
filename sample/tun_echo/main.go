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

// This sample runs the IPv4 layer on top of a TUN device with a minimal
// echo transport: every segment received with the experimental protocol
// number 253 is reflected back to its source. It demonstrates the full
// receive and send paths without a real transport protocol.
//
// Typical setup:
//
//	ip tuntap add user $USER mode tun tun0
//	ip link set tun0 up
//	ip addr add 192.168.7.1/24 dev tun0
//	tun_echo tun0 192.168.7.2
package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/usernet/usernet/pkg/unet"
	"github.com/usernet/usernet/pkg/unet/link/tun"
	"github.com/usernet/usernet/pkg/unet/network/ipv4"
	"github.com/usernet/usernet/pkg/unet/stack"
)

var verbose = flag.Bool("verbose", false, "log every datagram")

// echoProtocolNumber is one of the protocol numbers RFC 3692 reserves
// for experimentation.
const echoProtocolNumber unet.TransportProtocolNumber = 253

// echoTransport reflects every received segment back to its source.
type echoTransport struct {
	net stack.Network
}

func (t *echoTransport) Number() unet.TransportProtocolNumber {
	return echoProtocolNumber
}

func (t *echoTransport) Init(net stack.Network, _ unet.Clock) {
	t.net = net
}

func (t *echoTransport) ReceiveSegment(src unet.Address, payload []byte) {
	// The inbound buffer is only valid for this call, and the send may
	// be deferred past it.
	seg := append([]byte(nil), payload...)
	t.net.SendPayload(src, echoProtocolNumber, len(seg), func(b []byte) {
		copy(b, seg)
	})
}

// p2pResolver resolves every address to the empty link address: a TUN
// interface is point to point and carries no link-layer addressing.
type p2pResolver struct{}

func (p2pResolver) ResolveLinkAddress(_ unet.Address, done func(unet.LinkAddress, bool)) bool {
	done("", true)
	return true
}

func main() {
	flag.Parse()
	if len(flag.Args()) != 2 {
		logrus.Fatal("usage: ", os.Args[0], " [-verbose] <tun-device> <local-address>")
	}

	tunName := flag.Arg(0)
	addrName := flag.Arg(1)

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	addr, err := unet.ParseAddr(addrName)
	if err != nil {
		log.Fatalf("bad local address %q: %v", addrName, err)
	}

	mtu, err := tun.GetMTU(tunName)
	if err != nil {
		log.Fatal(err)
	}

	fd, err := tun.Open(tunName)
	if err != nil {
		log.Fatal(err)
	}

	link := tun.New(fd, mtu)
	ipv4.New(link, p2pResolver{}, addr, &echoTransport{}, unet.StdClock{}, ipv4.WithLogger(log))

	log.Infof("echoing protocol-%d datagrams on %s as %s (mtu %d)", echoProtocolNumber, tunName, addr, mtu)
	select {}
}
