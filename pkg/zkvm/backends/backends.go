/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package backends assembles the registry of every available zkvm backend.
package backends

import (
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/gnarkvm"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/groth16"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/plonk"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/valida"
)

// Default is the backend used when a request names none.
const Default = groth16.Name

// NewRegistry returns a registry holding groth16, plonk and valida. opts apply to the gnark backends.
func NewRegistry(opts ...gnarkvm.Option) *zkvm.Registry {
	r := zkvm.NewRegistry()

	r.Register(groth16.Name, func() (zkvm.Backend, error) {
		return groth16.New(opts...), nil
	})
	r.Register(plonk.Name, func() (zkvm.Backend, error) {
		return plonk.New(opts...), nil
	})
	r.Register(valida.Name, func() (zkvm.Backend, error) {
		return valida.New(), nil
	})

	return r
}
