// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package slaac

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolFirstFit(t *testing.T) {
	pool := newAddressPool(3)

	first := pool.findFree()
	require.NotNil(t, first)
	assert.Same(t, &pool.slots[0], first)

	first.address = netip.MustParsePrefix("fd00:1::1/64")
	first.valid = true

	second := pool.findFree()
	require.NotNil(t, second)
	assert.Same(t, &pool.slots[1], second)

	second.address = netip.MustParsePrefix("fd00:2::1/64")
	second.valid = true

	pool.invalidate(first)

	// a freed slot is reused before untouched ones
	assert.Same(t, &pool.slots[0], pool.findFree())
}

func TestPoolExhaustionReturnsNil(t *testing.T) {
	pool := newAddressPool(1)

	slot := pool.findFree()
	require.NotNil(t, slot)

	slot.valid = true

	assert.Nil(t, pool.findFree())
}

func TestPoolFindMatching(t *testing.T) {
	pool := newAddressPool(2)

	slot := pool.findFree()
	slot.address = netip.MustParsePrefix("fd00:1::1234/64")
	slot.valid = true

	assert.Same(t, slot, pool.findMatching(netip.MustParsePrefix("fd00:1::/64")))
	assert.Nil(t, pool.findMatching(netip.MustParsePrefix("fd00:2::/64")))

	// prefix length must match exactly
	assert.Nil(t, pool.findMatching(netip.MustParsePrefix("fd00:1::/48")))
}

func TestPoolInvalidateClearsIdentity(t *testing.T) {
	pool := newAddressPool(1)

	slot := pool.findFree()
	slot.address = netip.MustParsePrefix("fd00:1::1/64")
	slot.preferred = true
	slot.valid = true

	pool.invalidate(slot)

	assert.Equal(t, addressSlot{}, *slot)
}

// TestEnableWithStaleEntries pins down the behavior for pool entries which
// survived into a disabled engine without a Remove pass: Enable only runs an
// Add pass and leaves them untouched until the next Remove-triggering event.
func TestEnableWithStaleEntries(t *testing.T) {
	engine := New(Config{}, Dependencies{
		Prefixes: PrefixList{{Prefix: netip.MustParsePrefix("fd00:1::/64"), SLAAC: true}},
		Netif:    &nullNetif{},
		Secrets:  &nullStore{},
	}, testLogger(t))

	engine.Enable()
	require.Len(t, engine.Addresses(), 1)

	stale := engine.Addresses()

	// simulate a disable which skipped the Remove pass
	engine.enabled = false

	engine.Enable()

	assert.Equal(t, stale, engine.Addresses())
}
