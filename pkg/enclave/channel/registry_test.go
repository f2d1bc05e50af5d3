/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingCloser struct {
	closed atomic.Int32
	err    error
}

func (c *countingCloser) Close() error {
	c.closed.Add(1)

	return c.err
}

func TestRegistry(t *testing.T) {
	t.Run("close all closes each descriptor once", func(t *testing.T) {
		r := NewRegistry()

		a, b, c := &countingCloser{}, &countingCloser{}, &countingCloser{}

		r.Register(a)
		idB := r.Register(b)
		r.Register(c)
		require.Equal(t, 3, r.Len())

		require.True(t, r.Unregister(idB))
		require.False(t, r.Unregister(idB))

		require.NoError(t, r.CloseAll())
		require.NoError(t, r.CloseAll())
		require.Zero(t, r.Len())

		require.EqualValues(t, 1, a.closed.Load())
		require.EqualValues(t, 0, b.closed.Load())
		require.EqualValues(t, 1, c.closed.Load())
	})

	t.Run("close errors are joined", func(t *testing.T) {
		r := NewRegistry()
		boom := errors.New("boom")

		r.Register(&countingCloser{err: boom})
		r.Register(&countingCloser{})

		require.ErrorIs(t, r.CloseAll(), boom)
	})

	t.Run("concurrent registration", func(t *testing.T) {
		r := NewRegistry()

		var (
			wg  sync.WaitGroup
			ids sync.Map
		)

		for i := 0; i < 50; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, dup := ids.LoadOrStore(r.Register(&countingCloser{}), true)
				require.False(t, dup)
			}()
		}

		wg.Wait()
		require.Equal(t, 50, r.Len())
	})
}
