/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package client is the verifier's side of the proof service: it discovers the service keys,
// prepares proof requests and verifies the proof tokens the service returns.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jose"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jwt"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/zkpass"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/query"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm/backends"
)

var logger = log.New("zkpass/client")

// Key ids the service publishes its keys under.
const (
	ServiceSigningKID    = "ServiceSigningPubK"
	ServiceEncryptionKID = "ServiceEncryptionPubK"
)

// Option configures a Client.
type Option func(c *Client)

// WithKeysetResolver sets the resolver used to fetch the service keys.
func WithKeysetResolver(r *jose.KeysetResolver) Option {
	return func(c *Client) {
		c.resolver = r
	}
}

// WithBackends sets the registry receipts are verified with. Its gnark backends must hold the
// verifying keys the service pinned, for example through gnarkvm.WithKeyStore over a copy of the
// service's key directory.
func WithBackends(r *zkvm.Registry) Option {
	return func(c *Client) {
		c.backends = r
	}
}

// WithZkVM names the backend the service proves with.
func WithZkVM(name string) Option {
	return func(c *Client) {
		c.zkvm = name
	}
}

// Client talks to one proof service.
type Client struct {
	serviceURL string
	resolver   *jose.KeysetResolver
	backends   *zkvm.Registry
	zkvm       string
}

// New creates a client for the service at serviceURL.
func New(serviceURL string, opts ...Option) *Client {
	c := &Client{serviceURL: strings.TrimSuffix(serviceURL, "/"), zkvm: backends.Default}

	for _, opt := range opts {
		opt(c)
	}

	if c.resolver == nil {
		c.resolver = jose.NewKeysetResolver()
	}

	if c.backends == nil {
		c.backends = backends.NewRegistry()
	}

	return c
}

// FetchPublicKey returns the service key published under kid.
func (c *Client) FetchPublicKey(ctx context.Context, kid string) (jose.PublicKey, error) {
	if c.serviceURL == "" {
		return jose.PublicKey{}, newError(ErrMissingKeysetEndpoint, nil)
	}

	jku := c.serviceURL + "/" + jose.JWKSPath

	logger.Infof("fetching public key %s from %s", kid, jku)

	key, err := c.resolver.Resolve(ctx, jose.KeysetEndpoint{JKU: jku, KID: kid})
	if err != nil {
		return jose.PublicKey{}, newError(ErrMissingPublicKey, err)
	}

	return key, nil
}

func (c *Client) serviceKey(ctx context.Context, kid string) (jose.PublicKey, error) {
	key, err := c.FetchPublicKey(ctx, kid)
	if err != nil {
		return jose.PublicKey{}, err
	}

	if _, err := key.ECDSA(); err != nil {
		return jose.PublicKey{}, newError(ErrInvalidPublicKey, err)
	}

	return key, nil
}

// NewProofRequest encrypts the signed user data and DVR tokens for the service.
func (c *Client) NewProofRequest(ctx context.Context, userDataToken, dvrToken string) (*zkpass.GenerateProofRequest,
	error) {
	key, err := c.serviceKey(ctx, ServiceEncryptionKID)
	if err != nil {
		return nil, err
	}

	pub, _ := key.ECDSA() //nolint:errcheck

	userDataJWE, err := jose.Encrypt(pub, userDataToken)
	if err != nil {
		return nil, newError(ErrJose, err)
	}

	dvrJWE, err := jose.Encrypt(pub, dvrToken)
	if err != nil {
		return nil, newError(ErrJose, err)
	}

	return &zkpass.GenerateProofRequest{UserDataToken: userDataJWE, DvrToken: dvrJWE}, nil
}

// VerifyZkPassProofInternal verifies the proof token signature against the service signing key and
// the receipt it carries. It returns the journal of the receipt and the proof record.
func (c *Client) VerifyZkPassProofInternal(ctx context.Context, token string) (string, *zkpass.Proof, error) {
	key, err := c.serviceKey(ctx, ServiceSigningKID)
	if err != nil {
		return "", nil, err
	}

	pub, _ := key.ECDSA() //nolint:errcheck

	data, _, err := jwt.Verify(pub, token)
	if err != nil {
		if errors.Is(err, jwt.ErrMissingData) {
			return "", nil, newError(ErrRootMissing, err)
		}

		return "", nil, newError(ErrJose, err)
	}

	var proof zkpass.Proof

	if err := jwt.DecodeData(data, &proof); err != nil {
		return "", nil, newError(ErrJose, err)
	}

	journal, err := c.backends.VerifyZkProof(c.zkvm, proof.ZkProof)
	if err != nil {
		if errors.Is(err, query.ErrNotImplemented) {
			return "", nil, newError(ErrNotImplemented, err)
		}

		return "", nil, newError(nil, err)
	}

	return journal, &proof, nil
}

// VerifyZkPassProof verifies the proof token and then its metadata with validator. It returns the
// query result.
func (c *Client) VerifyZkPassProof(ctx context.Context, token string, validator MetadataValidator) (bool,
	*zkpass.Proof, error) {
	journal, proof, err := c.VerifyZkPassProofInternal(ctx, token)
	if err != nil {
		return false, nil, err
	}

	if err := validator.Validate(ctx, proof); err != nil {
		var e *Error
		if errors.As(err, &e) {
			return false, nil, err
		}

		return false, nil, newError(ErrCustom, err)
	}

	var output struct {
		Result *bool `json:"result"`
	}

	if err := json.Unmarshal([]byte(journal), &output); err != nil {
		return false, nil, newError(ErrInvalidResponse, err)
	}

	if output.Result == nil {
		return false, nil, newError(ErrInvalidResponse, errors.New("journal has no boolean result"))
	}

	logger.Infof("proof for dvr %s verified, result %t", proof.DvrID, *output.Result)

	return *output.Result, proof, nil
}

// QueryEngineVersionInfo returns the engine and method versions of the configured backend.
func (c *Client) QueryEngineVersionInfo() (engine, method string, err error) {
	engine, err = c.backends.QueryEngineVersion(c.zkvm)
	if err != nil {
		return "", "", newError(ErrNotImplemented, err)
	}

	method, err = c.backends.QueryMethodVersion(c.zkvm)
	if err != nil {
		return "", "", newError(ErrNotImplemented, err)
	}

	return engine, method, nil
}
