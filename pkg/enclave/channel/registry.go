/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import (
	"errors"
	"io"
	"sync"
)

// ID identifies a registered descriptor.
type ID uint64

// Registry tracks every open descriptor so that shutdown can close them. It is owned by the
// orchestrator and passed to whoever opens descriptors.
type Registry struct {
	mu      sync.Mutex
	next    ID
	closers map[ID]io.Closer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{closers: make(map[ID]io.Closer)}
}

// Register adds c and returns its id.
func (r *Registry) Register(c io.Closer) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.closers[r.next] = c

	return r.next
}

// Unregister removes id without closing it. It reports whether id was registered.
func (r *Registry) Unregister(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.closers[id]
	delete(r.closers, id)

	return ok
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.closers)
}

// CloseAll removes every descriptor and closes it once. Descriptors removed by a concurrent
// Unregister are left to their owner.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	closers := r.closers
	r.closers = make(map[ID]io.Closer)
	r.mu.Unlock()

	var errs []error

	for id, c := range closers {
		if err := c.Close(); err != nil {
			logger.Debugf("closing descriptor %d: %v", id, err)

			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
