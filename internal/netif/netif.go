// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package netif implements the SLAAC engine's network interface collaborator
// on top of rtnetlink.
package netif

import (
	"fmt"
	"math"
	"net"
	"net/netip"

	"github.com/jsimonetti/rtnetlink/v2"
	"go4.org/netipx"
	"golang.org/x/sys/unix"
)

// Client manages IPv6 unicast addresses of a single link.
//
// It implements slaac.Netif.
type Client struct {
	conn *rtnetlink.Conn

	linkName  string
	linkIndex uint32
}

// New dials an rtnetlink socket and resolves the link by name.
func New(linkName string) (*Client, error) {
	conn, err := rtnetlink.Dial(nil)
	if err != nil {
		return nil, fmt.Errorf("error dialing rtnetlink socket: %w", err)
	}

	links, err := conn.Link.List()
	if err != nil {
		conn.Close() //nolint:errcheck

		return nil, fmt.Errorf("error listing links: %w", err)
	}

	for _, link := range links {
		if link.Attributes != nil && link.Attributes.Name == linkName {
			return &Client{
				conn:      conn,
				linkName:  linkName,
				linkIndex: link.Index,
			}, nil
		}
	}

	conn.Close() //nolint:errcheck

	return nil, fmt.Errorf("link %q not found", linkName)
}

// Close closes the rtnetlink socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

// UnicastAddresses returns a snapshot of the link's IPv6 addresses.
func (c *Client) UnicastAddresses() ([]netip.Prefix, error) {
	messages, err := c.conn.Address.List()
	if err != nil {
		return nil, fmt.Errorf("error listing addresses: %w", err)
	}

	var result []netip.Prefix //nolint:prealloc

	for _, message := range messages {
		if message.Index != c.linkIndex || message.Family != unix.AF_INET6 || message.Attributes == nil {
			continue
		}

		addr, ok := netipx.FromStdIP(message.Attributes.Address)
		if !ok {
			continue
		}

		result = append(result, netip.PrefixFrom(addr, int(message.PrefixLength)))
	}

	return result, nil
}

// AddAddress installs an address on the link.
//
// The valid lifetime is infinite: the engine itself removes the address when
// its prefix is withdrawn. A non-preferred advertisement maps to a zero
// preferred lifetime, i.e. the address is installed as deprecated.
func (c *Client) AddAddress(addr netip.Prefix, preferred bool) error {
	preferredLft := uint32(math.MaxUint32)
	if !preferred {
		preferredLft = 0
	}

	ip := net.IP(addr.Addr().AsSlice())

	return c.conn.Address.New(&rtnetlink.AddressMessage{
		Family:       unix.AF_INET6,
		PrefixLength: uint8(addr.Bits()),
		Scope:        unix.RT_SCOPE_UNIVERSE,
		Index:        c.linkIndex,
		Attributes: &rtnetlink.AddressAttributes{
			Address: ip,
			Local:   ip,
			CacheInfo: rtnetlink.CacheInfo{
				Preferred: preferredLft,
				Valid:     math.MaxUint32,
			},
		},
	})
}

// RemoveAddress removes an address from the link.
func (c *Client) RemoveAddress(addr netip.Prefix) error {
	ip := net.IP(addr.Addr().AsSlice())

	return c.conn.Address.Delete(&rtnetlink.AddressMessage{
		Family:       unix.AF_INET6,
		PrefixLength: uint8(addr.Bits()),
		Index:        c.linkIndex,
		Attributes: &rtnetlink.AddressAttributes{
			Address: ip,
			Local:   ip,
		},
	})
}
