// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package slaac_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/slaac/pkg/slaac"
)

func TestSecretKeyPersisted(t *testing.T) {
	store := &memStore{}

	keys := slaac.NewSecretKeyStore(store, &fakeEntropy{}, zaptest.NewLogger(t))

	key := keys.GetOrCreate()

	require.Len(t, store.data, slaac.SecretKeySize)
	assert.Equal(t, key[:], store.data)

	// a fresh store instance reads the persisted key back
	other := slaac.NewSecretKeyStore(store, &fakeEntropy{}, zaptest.NewLogger(t))

	assert.Equal(t, key, other.GetOrCreate())
}

func TestSecretKeyPseudoRandomFallback(t *testing.T) {
	store := &memStore{}

	keys := slaac.NewSecretKeyStore(store, &fakeEntropy{trueErr: errors.New("no entropy")}, zaptest.NewLogger(t))

	key := keys.GetOrCreate()

	var pseudo slaac.SecretKey

	for i := range pseudo {
		pseudo[i] = 0x5a
	}

	assert.Equal(t, pseudo, key, "key should come from the pseudo-random fallback")
	assert.Equal(t, key[:], store.data, "fallback key should still be persisted")

	assert.Equal(t, key, keys.GetOrCreate())
}

func TestSecretKeyStableWithoutPersistence(t *testing.T) {
	store := &memStore{
		loadErr: errors.New("read failure"),
		saveErr: errors.New("write failure"),
	}

	keys := slaac.NewSecretKeyStore(store, &fakeEntropy{}, zaptest.NewLogger(t))

	key := keys.GetOrCreate()

	assert.Equal(t, key, keys.GetOrCreate(), "key must stay stable even when persistence is unavailable")
}

func TestSecretKeyExistingNeverRegenerated(t *testing.T) {
	store := &memStore{}

	var existing slaac.SecretKey

	for i := range existing {
		existing[i] = byte(i)
	}

	require.NoError(t, store.Save(existing[:]))

	keys := slaac.NewSecretKeyStore(store, &fakeEntropy{}, zaptest.NewLogger(t))

	assert.Equal(t, existing, keys.GetOrCreate())
}
