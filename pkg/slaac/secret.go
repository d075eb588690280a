// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package slaac

import (
	cryptorand "crypto/rand"
	"math/rand/v2"

	"github.com/siderolabs/gen/optional"
	"go.uber.org/zap"
)

// SecretKeySize is the size of the IID derivation secret.
const SecretKeySize = 32

// SecretKey is the persistent secret mixed into every IID derivation.
// Regenerating it would change every derived address, so it is created at
// most once per device lifetime.
type SecretKey [SecretKeySize]byte

// SecretStore is the persistence collaborator for the secret key.
//
// Load returns (nil, nil) when no key has been persisted yet.
type SecretStore interface {
	Load() ([]byte, error)
	Save(key []byte) error
}

// Entropy provides random bytes for key generation and IID fallback.
type Entropy interface {
	// TrueRandom fills b from the true random source, which may fail.
	TrueRandom(b []byte) error
	// PseudoRandom fills b from the pseudo-random fallback source.
	PseudoRandom(b []byte)
}

// SystemEntropy is the default Entropy implementation.
type SystemEntropy struct{}

// TrueRandom implements Entropy.
func (SystemEntropy) TrueRandom(b []byte) error {
	_, err := cryptorand.Read(b)

	return err
}

// PseudoRandom implements Entropy.
func (SystemEntropy) PseudoRandom(b []byte) {
	for i := range b {
		b[i] = byte(rand.Uint32())
	}
}

// SecretKeyStore owns the lazily-created secret key.
type SecretKeyStore struct {
	store   SecretStore
	entropy Entropy
	logger  *zap.Logger

	key optional.Optional[SecretKey]
}

// NewSecretKeyStore creates a SecretKeyStore on top of the persistence
// collaborator.
func NewSecretKeyStore(store SecretStore, entropy Entropy, logger *zap.Logger) *SecretKeyStore {
	return &SecretKeyStore{
		store:   store,
		entropy: entropy,
		logger:  logger,
	}
}

// GetOrCreate returns the secret key, creating and persisting it on first
// use.
//
// A previously persisted key is always returned unchanged: IID stability
// across restarts depends on it. Persistence failures are best-effort and
// never propagate; the key is cached in memory so repeated calls return the
// identical key even when persistence is unavailable.
func (s *SecretKeyStore) GetOrCreate() SecretKey {
	if key, ok := s.key.Get(); ok {
		return key
	}

	var key SecretKey

	data, err := s.store.Load()
	if err != nil {
		s.logger.Warn("failed to read IID secret key", zap.Error(err))
	}

	if len(data) == SecretKeySize {
		copy(key[:], data)

		s.key = optional.Some(key)

		return key
	}

	if err = s.entropy.TrueRandom(key[:]); err != nil {
		s.logger.Info("true random source unavailable, falling back to pseudo-random", zap.Error(err))

		s.entropy.PseudoRandom(key[:])
	}

	if err = s.store.Save(key[:]); err != nil {
		s.logger.Warn("failed to persist IID secret key", zap.Error(err))
	} else {
		s.logger.Info("generated and saved IID secret key")
	}

	s.key = optional.Some(key)

	return key
}
