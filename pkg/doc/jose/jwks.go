/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bluele/gcache"
	"github.com/go-jose/go-jose/v3/json"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
)

var logger = log.New("zkpass/jose")

const (
	// JWKSPath is where a service publishes its keys, relative to its base URL.
	JWKSPath = ".well-known/jwks.json"

	defaultKeysetCacheSize = 32
	defaultKeysetTTL       = 10 * time.Minute
	maxJWKSDocumentSize    = 1 << 20
)

// JWK is one entry of a keyset document. X and Y are the PEM body halves of the key.
type JWK struct {
	Kty string `json:"kty,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x"`
	Y   string `json:"y"`
	Kid string `json:"kid"`
}

// PublicKey returns the key material of the entry.
func (j JWK) PublicKey() PublicKey {
	return PublicKey{X: j.X, Y: j.Y}
}

// ParseJWKS parses a keyset document. Both a bare JSON array of keys and an object with a
// "keys" member are accepted.
func ParseJWKS(doc []byte) ([]JWK, error) {
	doc = bytes.TrimSpace(doc)

	var keys []JWK

	if len(doc) > 0 && doc[0] == '[' {
		if err := json.Unmarshal(doc, &keys); err != nil {
			return nil, fmt.Errorf("%w: parse keyset: %w", ErrKeyResolution, err)
		}

		return keys, nil
	}

	var set struct {
		Keys []JWK `json:"keys"`
	}

	if err := json.Unmarshal(doc, &set); err != nil {
		return nil, fmt.Errorf("%w: parse keyset: %w", ErrKeyResolution, err)
	}

	return set.Keys, nil
}

// FindKey returns the entry with the given kid.
func FindKey(keys []JWK, kid string) (JWK, error) {
	for _, k := range keys {
		if k.Kid == kid {
			return k, nil
		}
	}

	return JWK{}, fmt.Errorf("%w: no public key with kid %s found", ErrKeyResolution, kid)
}

// KeysetResolver fetches keyset documents over HTTP and caches them per URL.
type KeysetResolver struct {
	client *http.Client
	cache  gcache.Cache
}

// ResolverOpt configures a KeysetResolver.
type ResolverOpt func(opts *resolverOpts)

type resolverOpts struct {
	client    *http.Client
	cacheSize int
	ttl       time.Duration
}

// WithHTTPClient sets the client used to fetch keysets.
func WithHTTPClient(client *http.Client) ResolverOpt {
	return func(opts *resolverOpts) {
		opts.client = client
	}
}

// WithKeysetCache sets how many keysets are cached and for how long.
func WithKeysetCache(size int, ttl time.Duration) ResolverOpt {
	return func(opts *resolverOpts) {
		opts.cacheSize = size
		opts.ttl = ttl
	}
}

// NewKeysetResolver creates a resolver.
func NewKeysetResolver(opts ...ResolverOpt) *KeysetResolver {
	o := &resolverOpts{
		client:    http.DefaultClient,
		cacheSize: defaultKeysetCacheSize,
		ttl:       defaultKeysetTTL,
	}

	for _, opt := range opts {
		opt(o)
	}

	return &KeysetResolver{
		client: o.client,
		cache:  gcache.New(o.cacheSize).LRU().Expiration(o.ttl).Build(),
	}
}

// Resolve returns the key the endpoint points at.
func (r *KeysetResolver) Resolve(ctx context.Context, ep KeysetEndpoint) (PublicKey, error) {
	keys, err := r.keyset(ctx, ep.JKU)
	if err != nil {
		return PublicKey{}, err
	}

	k, err := FindKey(keys, ep.KID)
	if err != nil {
		return PublicKey{}, err
	}

	return k.PublicKey(), nil
}

func (r *KeysetResolver) keyset(ctx context.Context, jku string) ([]JWK, error) {
	cached, err := r.cache.Get(jku)
	if err == nil {
		return cached.([]JWK), nil //nolint:forcetypeassert
	}

	if !errors.Is(err, gcache.KeyNotFoundError) {
		return nil, fmt.Errorf("%w: keyset cache: %w", ErrKeyResolution, err)
	}

	keys, err := r.fetch(ctx, jku)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(jku, keys); err != nil {
		logger.Warnf("failed to cache keyset %s: %v", jku, err)
	}

	return keys, nil
}

func (r *KeysetResolver) fetch(ctx context.Context, jku string) ([]JWK, error) {
	logger.Debugf("fetching keyset from %s", jku)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jku, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyResolution, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrKeyResolution, jku, err)
	}

	defer func() {
		if e := resp.Body.Close(); e != nil {
			logger.Warnf("failed to close keyset response body: %v", e)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: status %d", ErrKeyResolution, jku, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrKeyResolution, jku, err)
	}

	return ParseJWKS(body)
}
