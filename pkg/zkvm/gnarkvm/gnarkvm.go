/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package gnarkvm runs query programs as gnark circuits.
//
// Proving first executes the program natively. The journal it yields becomes the public input of
// the program circuit, so a proof only verifies for the journal the program really produces.
// Constraint systems and keys are set up once per circuit shape and kept in an LRU cache. Every
// verifying key a setup produces is pinned in the backend's KeyStore. Receipts carry no key: the
// verifier recomputes the circuit shape from the program and input kinds of the receipt and only
// accepts proofs that check under a key it pinned itself or was given.
package gnarkvm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/consensys/gnark"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/circuit"
)

var logger = log.New("zkpass/zkvm/gnarkvm")

// CompilerVersion changes whenever the circuit layout changes.
const CompilerVersion = "zkpass-circuit/1"

// Defaults.
const (
	DefaultConstraintBudget = 1 << 20
	DefaultCacheSize        = 16
)

// Curve is the curve every scheme runs on.
const Curve = ecc.BN254

// Scheme is a gnark proving system.
type Scheme interface {
	Name() string
	// Builder is the constraint system builder the scheme proves over.
	Builder() frontend.NewBuilder
	// Setup generates keys for ccs and returns a prover and the serialized verifying key.
	Setup(ccs constraint.ConstraintSystem) (Prover, []byte, error)
	Verify(proof, verifyingKey []byte, public witness.Witness) error
}

// Prover proves full witnesses of one constraint system.
type Prover interface {
	Prove(full witness.Witness) ([]byte, error)
}

type options struct {
	budget    int
	cacheSize int
	keys      KeyStore
}

// Option configures a Backend.
type Option func(*options)

// WithConstraintBudget bounds the size of the programs the backend accepts.
func WithConstraintBudget(n int) Option {
	return func(o *options) {
		o.budget = n
	}
}

// WithCacheSize sets how many circuit shapes are kept set up.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithKeyStore sets where verifying keys are pinned and looked up. The default keeps them in memory.
func WithKeyStore(s KeyStore) Option {
	return func(o *options) {
		o.keys = s
	}
}

// Backend is a zkvm backend proving with a gnark Scheme.
type Backend struct {
	scheme Scheme
	budget int
	method string
	keys   KeyStore

	mu    sync.Mutex
	cache gcache.Cache
}

type setup struct {
	ccs    constraint.ConstraintSystem
	prover Prover
}

// New returns a backend for scheme.
func New(scheme Scheme, opts ...Option) *Backend {
	o := &options{budget: DefaultConstraintBudget, cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(o)
	}

	if o.keys == nil {
		o.keys = NewMemoryKeyStore()
	}

	sum := sha256.Sum256([]byte(CompilerVersion + "|" + scheme.Name() + "|" + Curve.String()))

	return &Backend{
		scheme: scheme,
		budget: o.budget,
		method: hex.EncodeToString(sum[:]),
		keys:   o.keys,
		cache:  gcache.New(o.cacheSize).LRU().Build(),
	}
}

// Name of the scheme.
func (b *Backend) Name() string {
	return b.scheme.Name()
}

// MethodVersion identifies the circuit compiler, scheme and curve.
func (b *Backend) MethodVersion() string {
	return b.method
}

// EngineVersion is the gnark version.
func (b *Backend) EngineVersion() string {
	return "gnark " + gnark.Version.String()
}

// Prove executes the program and proves the execution.
func (b *Backend) Prove(ctx context.Context, input *query.ProofMethodInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p := circuit.NewProgram(input.Stmts, input.Map)

	journal, dates, err := circuit.Trace(p, input)
	if err != nil {
		return "", err
	}

	s, err := b.setup(p, b.circuitID(p))
	if err != nil {
		return "", err
	}

	if err = ctx.Err(); err != nil {
		return "", err
	}

	assignment, err := circuit.Assign(p, input, journal, dates)
	if err != nil {
		return "", err
	}

	full, err := frontend.NewWitness(assignment, Curve.ScalarField())
	if err != nil {
		return "", fmt.Errorf("%w: witness: %v", query.ErrProofGeneration, err)
	}

	start := time.Now()

	proof, err := s.prover.Prove(full)
	if err != nil {
		return "", fmt.Errorf("%w: %s prove: %v", query.ErrProofGeneration, b.Name(), err)
	}

	logger.Debugf("%s proved %d constraints in %s", b.Name(), s.ccs.GetNbConstraints(), time.Since(start))

	r := &Receipt{
		Scheme:        b.Name(),
		MethodVersion: b.method,
		Program:       query.EncodeStatements(input.Stmts),
		Inputs:        p.Inputs,
		Today:         input.CurrentDate,
		Journal:       journal,
		Proof:         proof,
	}

	return r.Encode()
}

// Verify checks the receipt against the public witness rebuilt from its program and journal, under
// the verifying keys pinned for the circuit the receipt claims.
func (b *Backend) Verify(receipt string) (string, error) {
	r, err := DecodeReceipt(receipt)
	if err != nil {
		return "", err
	}

	if r.Scheme != b.Name() {
		return "", fmt.Errorf("%w: %s receipt given to %s", query.ErrProofVerification, r.Scheme, b.Name())
	}

	if r.MethodVersion != b.method {
		return "", fmt.Errorf("%w: method version %s, expected %s", query.ErrProofVerification, r.MethodVersion, b.method)
	}

	stmts, err := query.ParseStatements([]byte(r.Program))
	if err != nil {
		return "", fmt.Errorf("%w: program: %v", query.ErrProofVerification, err)
	}

	p := circuit.NewProgram(stmts, nil)
	p.Inputs = r.Inputs

	id := b.circuitID(p)

	keys, err := b.keys.Keys(id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", query.ErrProofVerification, err)
	}

	if len(keys) == 0 {
		return "", fmt.Errorf("%w: no verifying key pinned for circuit %s", query.ErrProofVerification, id)
	}

	public, err := circuit.Public(p, query.UnpackDate(r.Today), r.Journal)
	if err != nil {
		return "", fmt.Errorf("%w: %v", query.ErrProofVerification, err)
	}

	w, err := frontend.NewWitness(public, Curve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return "", fmt.Errorf("%w: public witness: %v", query.ErrProofVerification, err)
	}

	for _, vk := range keys {
		if err = b.scheme.Verify(r.Proof, vk, w); err == nil {
			return r.Journal, nil
		}
	}

	return "", fmt.Errorf("%w: %v", query.ErrProofVerification, err)
}

// circuitID names the keys of the circuit p compiles to under this scheme.
func (b *Backend) circuitID(p *circuit.Program) string {
	return b.Name() + "-" + p.ShapeKey()
}

// KeyStore returns where the backend pins its verifying keys.
func (b *Backend) KeyStore() KeyStore {
	return b.keys
}

func (b *Backend) setup(p *circuit.Program, key string) (*setup, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if v, err := b.cache.Get(key); err == nil {
		return v.(*setup), nil //nolint:forcetypeassert
	} else if !errors.Is(err, gcache.KeyNotFoundError) {
		return nil, fmt.Errorf("%w: setup cache: %v", query.ErrProofGeneration, err)
	}

	start := time.Now()

	ccs, err := frontend.Compile(Curve.ScalarField(), b.scheme.Builder(), circuit.New(p),
		frontend.IgnoreUnconstrainedInputs())
	if err != nil {
		if errors.Is(err, query.ErrNotImplemented) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: compile: %v", query.ErrProofGeneration, err)
	}

	if n := ccs.GetNbConstraints(); n > b.budget {
		return nil, fmt.Errorf("%w: constraint budget exceeded (%d > %d)", query.ErrProofGeneration, n, b.budget)
	}

	prover, vk, err := b.scheme.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s setup: %v", query.ErrProofGeneration, b.Name(), err)
	}

	if err := b.keys.Pin(key, vk); err != nil {
		return nil, fmt.Errorf("%w: %v", query.ErrProofGeneration, err)
	}

	s := &setup{ccs: ccs, prover: prover}

	if err := b.cache.Set(key, s); err != nil {
		logger.Warnf("failed to cache %s setup: %s", b.Name(), err)
	}

	logger.Infof("%s setup of %d constraints done in %s", b.Name(), ccs.GetNbConstraints(), time.Since(start))

	return s, nil
}
