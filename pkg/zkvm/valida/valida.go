/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package valida reserves the name of a backend that is not available yet. Every proving call
// fails with query.ErrNotImplemented.
package valida

import (
	"context"
	"fmt"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
)

// Name of the backend.
const Name = "valida"

// Backend is the placeholder backend.
type Backend struct{}

// New returns the placeholder backend.
func New() *Backend {
	return &Backend{}
}

// Name of the backend.
func (b *Backend) Name() string {
	return Name
}

// Prove always fails.
func (b *Backend) Prove(context.Context, *query.ProofMethodInput) (string, error) {
	return "", fmt.Errorf("%w: %s prove", query.ErrNotImplemented, Name)
}

// Verify always fails.
func (b *Backend) Verify(string) (string, error) {
	return "", fmt.Errorf("%w: %s verify", query.ErrNotImplemented, Name)
}

// MethodVersion is empty until the backend exists.
func (b *Backend) MethodVersion() string {
	return ""
}

// EngineVersion is empty until the backend exists.
func (b *Backend) EngineVersion() string {
	return ""
}
