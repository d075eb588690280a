// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package slaac implements stateless address autoconfiguration for a mesh
// network node: it reconciles the set of addresses installed on the node's
// interface against the prefixes currently advertised across the mesh,
// deriving stable privacy-preserving interface identifiers per RFC 7217.
//
// The engine keeps a fixed-capacity pool of generated addresses and never
// touches addresses it didn't install itself. All failure modes degrade
// gracefully: none of the public operations return an error.
//
// The engine performs no locking of its own. Enable, Disable, SetFilter,
// Update and HandleEvent must be serialized by the caller (a single
// controller goroutine in the usual setup).
package slaac

import (
	"iter"
	"net/netip"
	"slices"

	"github.com/siderolabs/gen/optional"
	"go.uber.org/zap"
)

// Mode selects which phases a reconciliation pass runs.
type Mode uint8

// Mode constants.
const (
	ModeAdd Mode = 1 << iota
	ModeRemove

	ModeBoth = ModeAdd | ModeRemove
)

// Event is a bitmask of external change notifications.
type Event uint8

// Event constants.
const (
	// EventPrefixesChanged indicates the advertised prefix set changed.
	EventPrefixesChanged Event = 1 << iota
	// EventAddressRemoved indicates a unicast address was removed from the
	// interface outside of this engine (e.g. duplicate address detection).
	EventAddressRemoved
)

// AdvertisedPrefix is a single entry of the mesh-wide prefix advertisement
// snapshot.
type AdvertisedPrefix struct {
	Prefix    netip.Prefix
	SLAAC     bool
	Preferred bool
}

// PrefixSource enumerates the currently advertised mesh prefixes.
//
// Each call returns a fresh snapshot; the enumeration order is the source's
// own and is only stable within a single snapshot.
type PrefixSource interface {
	AdvertisedPrefixes() iter.Seq[AdvertisedPrefix]
}

// PrefixList is a PrefixSource over a fixed snapshot.
type PrefixList []AdvertisedPrefix

// AdvertisedPrefixes implements PrefixSource.
func (l PrefixList) AdvertisedPrefixes() iter.Seq[AdvertisedPrefix] {
	return slices.Values(l)
}

// Netif is the network interface collaborator: it owns the interface's
// address list.
type Netif interface {
	UnicastAddresses() ([]netip.Prefix, error)
	AddAddress(addr netip.Prefix, preferred bool) error
	RemoveAddress(addr netip.Prefix) error
}

// Filter rejects advertised prefixes: it returns true for prefixes which
// should not get a SLAAC address.
type Filter func(prefix netip.Prefix) bool

// Address is an installed SLAAC address.
type Address struct {
	Address   netip.Prefix
	Preferred bool
}

// Config holds the construction-time parameters of the engine.
type Config struct {
	// PoolSize is the max number of simultaneously installed SLAAC addresses.
	PoolSize int
	// MaxIIDAttempts bounds the reserved-IID avoidance retry loop.
	MaxIIDAttempts uint16
	// IIDSize is the width of the interface identifier in bytes.
	IIDSize int
	// LinkTag is the fixed Net_Iface value mixed into the IID derivation.
	LinkTag []byte
}

// Default configuration values.
const (
	DefaultPoolSize       = 4
	DefaultMaxIIDAttempts = 256
	DefaultIIDSize        = 8
)

// DefaultLinkTag is the default Net_Iface derivation tag.
var DefaultLinkTag = []byte("mesh")

func (cfg Config) withDefaults() Config {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}

	if cfg.MaxIIDAttempts == 0 {
		cfg.MaxIIDAttempts = DefaultMaxIIDAttempts
	}

	if cfg.IIDSize <= 0 || cfg.IIDSize > 16 {
		cfg.IIDSize = DefaultIIDSize
	}

	if cfg.LinkTag == nil {
		cfg.LinkTag = DefaultLinkTag
	}

	return cfg
}

// Dependencies are the external collaborators of the engine.
type Dependencies struct {
	Prefixes PrefixSource
	Netif    Netif
	Secrets  SecretStore
	// Entropy defaults to SystemEntropy.
	Entropy Entropy
}

// Slaac is the reconciliation and address-generation engine.
//
// The zero value is not usable, use New. The engine starts disabled.
type Slaac struct {
	cfg    Config
	logger *zap.Logger

	source  PrefixSource
	netif   Netif
	secrets *SecretKeyStore
	entropy Entropy

	enabled bool
	filter  optional.Optional[Filter]
	pool    addressPool
}

// New creates an engine instance.
func New(cfg Config, deps Dependencies, logger *zap.Logger) *Slaac {
	cfg = cfg.withDefaults()

	entropy := deps.Entropy
	if entropy == nil {
		entropy = SystemEntropy{}
	}

	return &Slaac{
		cfg:     cfg,
		logger:  logger,
		source:  deps.Prefixes,
		netif:   deps.Netif,
		secrets: NewSecretKeyStore(deps.Secrets, entropy, logger),
		entropy: entropy,
		pool:    newAddressPool(cfg.PoolSize),
	}
}

// Enabled reports whether the engine is enabled.
func (s *Slaac) Enabled() bool {
	return s.enabled
}

// Enable turns the engine on and installs addresses for the currently
// advertised prefixes. No-op if already enabled.
func (s *Slaac) Enable() {
	if s.enabled {
		return
	}

	s.logger.Info("enabling")

	s.enabled = true

	s.Update(ModeAdd)
}

// Disable turns the engine off and removes every address it installed.
// No-op if already disabled.
func (s *Slaac) Disable() {
	if !s.enabled {
		return
	}

	s.logger.Info("disabling")

	s.enabled = false

	s.Update(ModeRemove)
}

// SetFilter replaces the prefix filter.
//
// A replaced filter invalidates every previous accept/reject decision, so a
// full reconciliation runs if the engine is enabled.
func (s *Slaac) SetFilter(filter optional.Optional[Filter]) {
	s.filter = filter

	s.logger.Info("filter updated", zap.Bool("present", filter.IsPresent()))

	if s.enabled {
		s.Update(ModeBoth)
	}
}

// HandleEvent maps an external change notification to a reconciliation pass.
func (s *Slaac) HandleEvent(event Event) {
	if !s.enabled {
		return
	}

	var mode Mode

	if event&EventPrefixesChanged != 0 {
		mode |= ModeBoth
	}

	if event&EventAddressRemoved != 0 {
		// An externally removed address may have been occupying a prefix
		// which a SLAAC address should now fill, so run an add pass.
		mode |= ModeAdd
	}

	if mode != 0 {
		s.Update(mode)
	}
}

// Update runs a reconciliation pass.
func (s *Slaac) Update(mode Mode) {
	if mode&ModeRemove != 0 {
		s.removeUnjustified()
	}

	if mode&ModeAdd != 0 && s.enabled {
		s.addMissing()
	}
}

// Addresses returns a snapshot of the currently installed SLAAC addresses.
func (s *Slaac) Addresses() []Address {
	var result []Address

	for i := range s.pool.slots {
		if slot := &s.pool.slots[i]; slot.valid {
			result = append(result, Address{Address: slot.address, Preferred: slot.preferred})
		}
	}

	return result
}

func (s *Slaac) shouldFilter(prefix netip.Prefix) bool {
	filter, ok := s.filter.Get()

	return ok && filter(prefix)
}

// removeUnjustified removes pool entries with no matching advertised prefix.
// While the engine is disabled nothing is justified, so a remove pass clears
// the whole pool.
func (s *Slaac) removeUnjustified() {
	for i := range s.pool.slots {
		slot := &s.pool.slots[i]
		if !slot.valid {
			continue
		}

		justified := false

		if s.enabled {
			for advertised := range s.source.AdvertisedPrefixes() {
				if advertised.SLAAC && !s.shouldFilter(advertised.Prefix) && covers(advertised.Prefix, slot.address) {
					justified = true

					break
				}
			}
		}

		if justified {
			continue
		}

		s.logger.Info("removing address", zap.Stringer("address", slot.address))

		if err := s.netif.RemoveAddress(slot.address); err != nil {
			s.logger.Warn("failed to remove address", zap.Stringer("address", slot.address), zap.Error(err))
		}

		s.pool.invalidate(slot)
	}
}

// addMissing installs addresses for advertised prefixes not yet covered by
// any address on the interface.
func (s *Slaac) addMissing() {
	existing, err := s.netif.UnicastAddresses()
	if err != nil {
		s.logger.Warn("failed to list interface addresses, skipping add pass", zap.Error(err))

		return
	}

	for advertised := range s.source.AdvertisedPrefixes() {
		if !advertised.SLAAC || s.shouldFilter(advertised.Prefix) {
			continue
		}

		// never shadow an address which is already on the interface,
		// whatever installed it
		covered := slices.ContainsFunc(existing, func(addr netip.Prefix) bool {
			return covers(advertised.Prefix, addr)
		})
		if covered {
			continue
		}

		// a valid pool entry without a matching interface address means the
		// address was externally removed; reinstall it keeping the same IID
		slot := s.pool.findMatching(advertised.Prefix)
		if slot == nil {
			slot = s.pool.findFree()
			if slot == nil {
				s.logger.Warn("cannot add address, pool exhausted",
					zap.Stringer("prefix", advertised.Prefix),
					zap.Int("capacity", s.pool.capacity()))

				continue
			}

			*slot = addressSlot{
				address: netip.PrefixFrom(s.generateAddress(advertised.Prefix), advertised.Prefix.Bits()),
				valid:   true,
			}
		}

		slot.preferred = advertised.Preferred

		s.logger.Info("adding address", zap.Stringer("address", slot.address), zap.Bool("preferred", slot.preferred))

		if err := s.netif.AddAddress(slot.address, slot.preferred); err != nil {
			s.logger.Warn("failed to add address", zap.Stringer("address", slot.address), zap.Error(err))
		}
	}
}

// covers reports whether addr lies within prefix with an equal prefix length.
func covers(prefix, addr netip.Prefix) bool {
	return prefix.Bits() == addr.Bits() && prefix.Masked().Contains(addr.Addr())
}
