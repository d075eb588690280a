// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package store persists the SLAAC engine's IID secret key on disk.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a file-backed secret key store.
//
// It implements slaac.SecretStore.
type File struct {
	mu sync.Mutex

	path string
}

// NewFile creates a store persisting the key at the given path.
func NewFile(path string) *File {
	return &File{
		path: path,
	}
}

// Load reads the persisted key; (nil, nil) when no key was saved yet.
func (f *File) Load() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read secret key from file %q: %w", f.path, err)
	}

	return data, nil
}

// Save persists the key. The key never changes once written, so the file is
// created read-only.
func (f *File) Save(key []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory for %q: %w", f.path, err)
	}

	if err := os.WriteFile(f.path, key, 0o400); err != nil {
		return fmt.Errorf("failed to write secret key to file %q: %w", f.path, err)
	}

	return nil
}
