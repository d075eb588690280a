// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package slaac

import (
	"crypto/sha256"
	"encoding/binary"
	"net/netip"

	"go.uber.org/zap"
)

// generateAddress builds the full address for an advertised prefix: the
// prefix bits truncated to the prefix length, with the trailing IID bytes
// derived per RFC 7217.
func (s *Slaac) generateAddress(prefix netip.Prefix) netip.Addr {
	return applyIID(prefix, s.generateIID(prefix), s.cfg.IIDSize)
}

// generateIID derives a semantically opaque interface identifier:
//
//	RID = F(Prefix, Net_Iface, DAD_Counter, secret_key)
//
// F is SHA-256, Net_Iface is the fixed link tag, Network_ID is unused
// (optional per RFC 7217). The derivation is a pure function of its inputs:
// for a given prefix and secret key it yields the same IID on every call, so
// addresses survive restarts without being traceable across prefixes.
//
// Candidates colliding with a reserved IID value are rejected and the counter
// is bumped; after MaxIIDAttempts the engine falls back to a random IID.
func (s *Slaac) generateIID(prefix netip.Prefix) []byte {
	key := s.secrets.GetOrCreate()

	prefixBytes := prefixHashBytes(prefix)

	var counterBytes [2]byte

	for counter := uint16(0); counter < s.cfg.MaxIIDAttempts; counter++ {
		binary.BigEndian.PutUint16(counterBytes[:], counter)

		hash := sha256.New()
		hash.Write(prefixBytes)
		hash.Write(s.cfg.LinkTag)
		hash.Write(counterBytes[:])
		hash.Write(key[:])

		iid := hash.Sum(nil)[:s.cfg.IIDSize]

		if !isReservedIID(iid) {
			return iid
		}
	}

	s.logger.Warn("failed to generate a non-reserved IID, falling back to a random one",
		zap.Uint16("attempts", s.cfg.MaxIIDAttempts))

	iid := make([]byte, s.cfg.IIDSize)

	if err := s.entropy.TrueRandom(iid); err != nil {
		s.entropy.PseudoRandom(iid)
	}

	return iid
}

// prefixHashBytes returns the prefix bits truncated to the prefix length,
// rounded up to whole bytes, as fed into the derivation hash.
func prefixHashBytes(prefix netip.Prefix) []byte {
	raw := prefix.Masked().Addr().As16()

	return raw[:(prefix.Bits()+7)/8]
}

// applyIID overlays the identifier onto the trailing bytes of the prefix.
func applyIID(prefix netip.Prefix, iid []byte, size int) netip.Addr {
	raw := prefix.Masked().Addr().As16()

	copy(raw[16-size:], iid)

	return netip.AddrFrom16(raw)
}

// isReservedIID reports whether the identifier is excluded from host
// assignment by the addressing standard (RFC 5453 and the mesh addressing
// plan): the subnet-router anycast IID (all zeros), the reserved
// subnet-anycast block fdff:ffff:ffff:ff80 - fdff:ffff:ffff:ffff, and the
// mesh locator range 0000:00ff:fe00::/104.
func isReservedIID(iid []byte) bool {
	zero := true

	for _, b := range iid {
		if b != 0 {
			zero = false

			break
		}
	}

	if zero {
		return true
	}

	if len(iid) != 8 {
		return false
	}

	if iid[0] == 0xfd && iid[1] == 0xff && iid[2] == 0xff && iid[3] == 0xff &&
		iid[4] == 0xff && iid[5] == 0xff && iid[6] == 0xff && iid[7] >= 0x80 {
		return true
	}

	if iid[0] == 0x00 && iid[1] == 0x00 && iid[2] == 0x00 && iid[3] == 0xff &&
		iid[4] == 0xfe && iid[5] == 0x00 {
		return true
	}

	return false
}
