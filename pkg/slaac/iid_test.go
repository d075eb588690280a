// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package slaac

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type nullNetif struct{}

func (nullNetif) UnicastAddresses() ([]netip.Prefix, error) { return nil, nil }

func (nullNetif) AddAddress(netip.Prefix, bool) error { return nil }

func (nullNetif) RemoveAddress(netip.Prefix) error { return nil }

type nullStore struct{}

func (nullStore) Load() ([]byte, error) { return nil, nil }

func (nullStore) Save([]byte) error { return nil }

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()

	return zaptest.NewLogger(t)
}

func TestIsReservedIID(t *testing.T) {
	for _, test := range []struct {
		name     string
		iid      []byte
		reserved bool
	}{
		{
			name:     "subnet-router anycast",
			iid:      []byte{0, 0, 0, 0, 0, 0, 0, 0},
			reserved: true,
		},
		{
			name:     "reserved subnet anycast low bound",
			iid:      []byte{0xfd, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x80},
			reserved: true,
		},
		{
			name:     "reserved subnet anycast high bound",
			iid:      []byte{0xfd, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			reserved: true,
		},
		{
			name:     "below reserved subnet anycast",
			iid:      []byte{0xfd, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f},
			reserved: false,
		},
		{
			name:     "mesh locator",
			iid:      []byte{0x00, 0x00, 0x00, 0xff, 0xfe, 0x00, 0xfc, 0x00},
			reserved: true,
		},
		{
			name:     "ordinary opaque IID",
			iid:      []byte{0x3a, 0x91, 0x00, 0xff, 0xfe, 0x00, 0x12, 0x34},
			reserved: false,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.reserved, isReservedIID(test.iid))
		})
	}
}

func TestApplyIID(t *testing.T) {
	prefix := netip.MustParsePrefix("fd00:1:2:3::/64")

	addr := applyIID(prefix, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 8)

	assert.Equal(t, netip.MustParseAddr("fd00:1:2:3:102:304:506:708"), addr)
	assert.True(t, prefix.Contains(addr))
}

func TestPrefixHashBytes(t *testing.T) {
	assert.Len(t, prefixHashBytes(netip.MustParsePrefix("fd00:1::/64")), 8)
	assert.Len(t, prefixHashBytes(netip.MustParsePrefix("fd00:1::/60")), 8)
	assert.Len(t, prefixHashBytes(netip.MustParsePrefix("fd00::/7")), 1)

	// bits beyond the prefix length are truncated, so two prefixes equal up
	// to their length hash identically
	assert.Equal(t,
		prefixHashBytes(netip.MustParsePrefix("fd00:1::/32")),
		prefixHashBytes(netip.MustParsePrefix("fd00:1:ffff::/32")),
	)
}

func TestGenerateIIDPurity(t *testing.T) {
	engine := New(Config{}, Dependencies{
		Prefixes: PrefixList{},
		Netif:    nullNetif{},
		Secrets:  nullStore{},
	}, testLogger(t))

	prefix := netip.MustParsePrefix("fd00:1::/64")

	first := engine.generateIID(prefix)

	for range 16 {
		assert.Equal(t, first, engine.generateIID(prefix))
	}

	assert.NotEqual(t, first, engine.generateIID(netip.MustParsePrefix("fd00:2::/64")),
		"different prefixes should not share an IID")
}

func TestGenerateIIDFallback(t *testing.T) {
	engine := New(Config{}, Dependencies{
		Prefixes: PrefixList{},
		Netif:    nullNetif{},
		Secrets:  nullStore{},
	}, testLogger(t))

	// exhaust the retry loop immediately
	engine.cfg.MaxIIDAttempts = 0

	iid := engine.generateIID(netip.MustParsePrefix("fd00:1::/64"))

	assert.Len(t, iid, DefaultIIDSize)
}
