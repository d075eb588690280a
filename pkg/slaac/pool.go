// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package slaac

import "net/netip"

// addressSlot is a single entry of the address pool. A slot with valid unset
// is free for reuse; no address identity survives invalidation.
type addressSlot struct {
	address   netip.Prefix
	preferred bool
	valid     bool
}

// addressPool is a fixed-capacity table of generated addresses. All scans are
// linear: the capacity is small, so no indexing structure is warranted.
type addressPool struct {
	slots []addressSlot
}

func newAddressPool(capacity int) addressPool {
	return addressPool{
		slots: make([]addressSlot, capacity),
	}
}

func (p *addressPool) capacity() int {
	return len(p.slots)
}

// findFree returns the first free slot in pool-index order, or nil when the
// pool is exhausted. Exhaustion is a recoverable condition, not an error.
func (p *addressPool) findFree() *addressSlot {
	for i := range p.slots {
		if !p.slots[i].valid {
			return &p.slots[i]
		}
	}

	return nil
}

// findMatching returns the valid slot whose address lies within the given
// prefix, or nil.
func (p *addressPool) findMatching(prefix netip.Prefix) *addressSlot {
	for i := range p.slots {
		if p.slots[i].valid && covers(prefix, p.slots[i].address) {
			return &p.slots[i]
		}
	}

	return nil
}

// invalidate releases the slot for reuse.
func (p *addressPool) invalidate(slot *addressSlot) {
	*slot = addressSlot{}
}
