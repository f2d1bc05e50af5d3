/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package zkvm

import (
	"context"
	"fmt"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
)

// Isolate runs fn and converts a panic into query.ErrUnhandledPanic carrying the recovered value.
// Panics in goroutines started by fn are not recovered.
func Isolate[T any](fn func() (T, error)) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("recovered from panic in backend: %v", r)

			var zero T

			res, err = zero, fmt.Errorf("%w: %v", query.ErrUnhandledPanic, r)
		}
	}()

	return fn()
}

// Guard wraps b so that every call goes through Isolate.
func Guard(b Backend) Backend {
	if g, ok := b.(*guarded); ok {
		return g
	}

	return &guarded{backend: b}
}

type guarded struct {
	backend Backend
}

func (g *guarded) Name() string {
	return g.backend.Name()
}

func (g *guarded) Prove(ctx context.Context, input *query.ProofMethodInput) (string, error) {
	return Isolate(func() (string, error) {
		return g.backend.Prove(ctx, input)
	})
}

func (g *guarded) Verify(receipt string) (string, error) {
	return Isolate(func() (string, error) {
		return g.backend.Verify(receipt)
	})
}

func (g *guarded) MethodVersion() string {
	v, err := Isolate(func() (string, error) {
		return g.backend.MethodVersion(), nil
	})
	if err != nil {
		return ""
	}

	return v
}

func (g *guarded) EngineVersion() string {
	v, err := Isolate(func() (string, error) {
		return g.backend.EngineVersion(), nil
	})
	if err != nil {
		return ""
	}

	return v
}
