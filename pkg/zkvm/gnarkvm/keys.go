/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package gnarkvm

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const keyFileExt = ".vk"

// KeyStore holds the verifying keys a backend trusts, by circuit id. A circuit may have several
// keys when it was set up more than once.
type KeyStore interface {
	// Pin trusts vk for the circuit id.
	Pin(id string, vk []byte) error
	// Keys returns the keys pinned for id, none when the circuit is unknown.
	Keys(id string) ([][]byte, error)
}

// MemoryKeyStore keeps pinned keys for the lifetime of the process.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string][][]byte
}

// NewMemoryKeyStore returns an empty store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: map[string][][]byte{}}
}

// Pin implements KeyStore.
func (s *MemoryKeyStore) Pin(id string, vk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.keys[id] {
		if bytes.Equal(k, vk) {
			return nil
		}
	}

	s.keys[id] = append(s.keys[id], append([]byte(nil), vk...))

	return nil
}

// Keys implements KeyStore.
func (s *MemoryKeyStore) Keys(id string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([][]byte(nil), s.keys[id]...), nil
}

// DirKeyStore keeps pinned keys as files under Dir, one directory per circuit. A proving service
// writes its keys there and verifiers are given a copy of the directory.
type DirKeyStore struct {
	Dir string
}

// NewDirKeyStore returns a store rooted at dir.
func NewDirKeyStore(dir string) *DirKeyStore {
	return &DirKeyStore{Dir: dir}
}

// Pin implements KeyStore.
func (s *DirKeyStore) Pin(id string, vk []byte) error {
	dir, err := s.circuitDir(id)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("pin verifying key: %w", err)
	}

	sum := sha256.Sum256(vk)
	path := filepath.Join(dir, hex.EncodeToString(sum[:])+keyFileExt)

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, vk, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("pin verifying key: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("pin verifying key: %w", err)
	}

	return nil
}

// Keys implements KeyStore.
func (s *DirKeyStore) Keys(id string) ([][]byte, error) {
	dir, err := s.circuitDir(id)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read verifying keys: %w", err)
	}

	var keys [][]byte

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != keyFileExt {
			continue
		}

		vk, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read verifying key: %w", err)
		}

		keys = append(keys, vk)
	}

	return keys, nil
}

func (s *DirKeyStore) circuitDir(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return "", fmt.Errorf("invalid circuit id %q", id)
	}

	return filepath.Join(s.Dir, id), nil
}
