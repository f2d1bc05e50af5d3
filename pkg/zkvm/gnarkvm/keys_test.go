/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package gnarkvm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryKeyStore(t *testing.T) {
	s := NewMemoryKeyStore()

	keys, err := s.Keys("groth16-abc")
	require.NoError(t, err)
	require.Empty(t, keys)

	vk := []byte{1, 2, 3}

	require.NoError(t, s.Pin("groth16-abc", vk))
	require.NoError(t, s.Pin("groth16-abc", []byte{1, 2, 3}))
	require.NoError(t, s.Pin("groth16-abc", []byte{4}))

	vk[0] = 9

	keys, err = s.Keys("groth16-abc")
	require.NoError(t, err)
	require.Equal(t, [][]byte{{1, 2, 3}, {4}}, keys)

	keys, err = s.Keys("plonk-abc")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestDirKeyStore(t *testing.T) {
	dir := t.TempDir()
	s := NewDirKeyStore(dir)

	keys, err := s.Keys("groth16-abc")
	require.NoError(t, err)
	require.Empty(t, keys)

	require.NoError(t, s.Pin("groth16-abc", []byte("key one")))
	require.NoError(t, s.Pin("groth16-abc", []byte("key one")))
	require.NoError(t, s.Pin("groth16-abc", []byte("key two")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "groth16-abc", "notes.txt"), []byte("x"), 0o600))

	keys, err = NewDirKeyStore(dir).Keys("groth16-abc")
	require.NoError(t, err)
	require.ElementsMatch(t, [][]byte{[]byte("key one"), []byte("key two")}, keys)

	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		require.Error(t, s.Pin(id, []byte("k")), id)

		_, err := s.Keys(id)
		require.Error(t, err, id)
	}
}
