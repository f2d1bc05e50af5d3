/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package zkvm

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
)

// ErrUnknownBackend is returned for names no creator was registered under.
var ErrUnknownBackend = errors.New("unknown zkvm backend")

// Creator builds a backend instance.
type Creator func() (Backend, error)

// Registry maps backend names to creators. Instances are created on first use and shared.
type Registry struct {
	mu        sync.Mutex
	creators  map[string]Creator
	instances map[string]Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		creators:  map[string]Creator{},
		instances: map[string]Backend{},
	}
}

// Register adds or replaces the creator for name.
func (r *Registry) Register(name string, c Creator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.creators[name] = c
	delete(r.instances, name)
}

// Create returns the backend registered under name, wrapped by Guard.
func (r *Registry) Create(name string) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.instances[name]; ok {
		return b, nil
	}

	c, ok := r.creators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", query.ErrNotImplemented, ErrUnknownBackend, name)
	}

	b, err := Isolate[Backend](c)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", name, err)
	}

	b = Guard(b)
	r.instances[name] = b

	logger.Debugf("created zkvm backend %s (method %s)", name, b.MethodVersion())

	return b, nil
}

// Names lists the registered backends in lexical order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.creators))
	for name := range r.creators {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
