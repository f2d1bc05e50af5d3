/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package zkvm is the capability layer over zero-knowledge proving backends.
//
// A Backend proves the execution of a query program and verifies the receipts it produced.
// Receipts are opaque outside the backend that created them. Backends are selected at runtime by
// name through a Registry, and every backend call is isolated so that a panic in proving code
// surfaces as query.ErrUnhandledPanic instead of taking the process down. Isolation only covers
// the goroutine making the call: a panic in a worker goroutine the proving library starts itself
// still terminates the process.
package zkvm

import (
	"context"
	"time"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
)

var logger = log.New("zkpass/zkvm")

// Backend is a proving system able to prove query programs.
type Backend interface {
	// Name is the registry name of the backend, also used as export prefix.
	Name() string
	// Prove runs the program and returns a serialized receipt embedding the journal.
	Prove(ctx context.Context, input *query.ProofMethodInput) (string, error)
	// Verify checks a receipt produced by Prove and returns its journal.
	Verify(receipt string) (string, error)
	// MethodVersion identifies the proving program. Receipts only verify under the same version.
	MethodVersion() string
	// EngineVersion is the version of the proving library.
	EngineVersion() string
}

// ExecuteQueryAndCreateZkProof parses the query against the user data, using the calendar date
// of now for get_age, and proves its execution with b.
func ExecuteQueryAndCreateZkProof(ctx context.Context, b Backend, userData, queryText []byte,
	now time.Time) (string, error) {
	input, err := query.Parse(userData, queryText, query.DateOf(now))
	if err != nil {
		return "", err
	}

	start := time.Now()

	receipt, err := b.Prove(ctx, input)
	if err != nil {
		return "", err
	}

	logger.Debugf("%s proof created in %s", b.Name(), time.Since(start))

	return receipt, nil
}
