/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jose"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jwt"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/zkpass"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm"
)

const dvrVerifyingKeyField = "dvr_verifying_key"

// GenerateProof serves a proof generation frame: it opens both tokens, verifies the DVR and then the
// user data, proves the DVR query over the user data and returns the signed proof token.
func (h *Host) GenerateProof(ctx context.Context, requestID, payload string) (string, error) {
	if err := h.ensureKeys(ctx); err != nil {
		return "", err
	}

	var req zkpass.GenerateProofRequest

	if payload == "" || payload == `""` {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, ErrEmptyParameter)
	}

	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	decKey, err := h.keys.EncryptionKey()
	if err != nil {
		return "", err
	}

	dvrJWS, _, err := jwt.InnerToken(decKey, req.DvrToken)
	if err != nil {
		return "", fmt.Errorf("dvr token: %w", err)
	}

	userDataJWS, _, err := jwt.InnerToken(decKey, req.UserDataToken)
	if err != nil {
		return "", fmt.Errorf("user data token: %w", err)
	}

	dvr, dvrKey, err := h.verifyDVR(ctx, dvrJWS)
	if err != nil {
		return "", err
	}

	logger.Infof("[%s] dvr %s verified", requestID, dvr.DvrID)

	userKey, err := h.resolveKey(ctx, dvr.UserDataVerifyingKey, true)
	if err != nil {
		return "", fmt.Errorf("user data verifying key: %w", err)
	}

	userKeyECDSA, err := userKey.ECDSA()
	if err != nil {
		return "", fmt.Errorf("user data verifying key: %w", err)
	}

	userData, _, err := jwt.Verify(userKeyECDSA, userDataJWS, jwt.WithVerifyClock(h.now))
	if err != nil {
		return "", fmt.Errorf("user data token: %w", err)
	}

	name := dvr.ZkVM
	if name == "" {
		name = h.defaultBackend
	}

	backend, err := h.backends.Create(name)
	if err != nil {
		return "", err
	}

	logger.Infof("[%s] proving with %s", requestID, backend.Name())

	now := h.now()

	receipt, err := h.pool.Submit(ctx, requestID, func() (string, error) {
		return zkvm.ExecuteQueryAndCreateZkProof(ctx, backend, userData, []byte(dvr.Query), now)
	})
	if err != nil {
		return "", err
	}

	return h.signProof(dvr, receipt, dvrKey, userKey)
}

// verifyDVR verifies the DVR JWS. The verifying key is located through the token itself: the jku and
// kid headers when present, the dvr_verifying_key member of the unverified body otherwise. Nothing else
// in the token is used before its signature verified.
func (h *Host) verifyDVR(ctx context.Context, token string) (*zkpass.DataVerificationRequest, jose.PublicKey, error) {
	opt, err := dvrKeyOption(token)
	if err != nil {
		return nil, jose.PublicKey{}, fmt.Errorf("dvr verifying key: %w", err)
	}

	key, err := h.resolveKey(ctx, *opt, false)
	if err != nil {
		return nil, jose.PublicKey{}, fmt.Errorf("dvr verifying key: %w", err)
	}

	pub, err := key.ECDSA()
	if err != nil {
		return nil, jose.PublicKey{}, fmt.Errorf("dvr verifying key: %w", err)
	}

	data, _, err := jwt.Verify(pub, token, jwt.WithVerifyClock(h.now))
	if err != nil {
		return nil, jose.PublicKey{}, fmt.Errorf("dvr token: %w", err)
	}

	var dvr zkpass.DataVerificationRequest

	if err := jwt.DecodeData(data, &dvr); err != nil {
		return nil, jose.PublicKey{}, fmt.Errorf("dvr token: %w", err)
	}

	return &dvr, key, nil
}

func dvrKeyOption(token string) (*jose.PublicKeyOption, error) {
	headers, err := jwt.UnverifiedHeaders(token)
	if err != nil {
		return nil, err
	}

	if ep, ok := headers.KeysetEndpoint(); ok {
		return &jose.PublicKeyOption{KeysetEndpoint: ep}, nil
	}

	raw, ok, err := jwt.UnverifiedField(token, dvrVerifyingKeyField)
	if err != nil {
		return nil, err
	}

	if !ok || string(raw) == "null" {
		return nil, fmt.Errorf("%w: dvr names no verifying key", jose.ErrKeyResolution)
	}

	var opt jose.PublicKeyOption

	if err := json.Unmarshal(raw, &opt); err != nil {
		return nil, fmt.Errorf("%w: %w", jose.ErrKeyResolution, err)
	}

	return &opt, nil
}

// resolveKey returns inline keys as they are and asks the relay for keys behind keyset endpoints.
func (h *Host) resolveKey(ctx context.Context, opt jose.PublicKeyOption, userData bool) (jose.PublicKey, error) {
	if opt.PublicKey != nil {
		return *opt.PublicKey, nil
	}

	if opt.KeysetEndpoint == nil {
		return jose.PublicKey{}, fmt.Errorf("%w: empty key option", jose.ErrKeyResolution)
	}

	if h.relay == nil {
		return jose.PublicKey{}, fmt.Errorf("%w: no util channel to resolve %s", jose.ErrKeyResolution,
			opt.KeysetEndpoint.JKU)
	}

	var req zkpass.VerificationPublicKeyOption

	if userData {
		req.UserDataPublicKeyOption = &opt
	} else {
		req.DvrPublicKeyOption = &opt
	}

	keys, err := h.relay.FetchVerificationKeys(ctx, req)
	if err != nil {
		return jose.PublicKey{}, fmt.Errorf("%w: %w", jose.ErrKeyResolution, err)
	}

	key := keys.DvrKey
	if userData {
		key = keys.UserDataKey
	}

	if key.X == "" || key.Y == "" {
		return jose.PublicKey{}, fmt.Errorf("%w: relay returned no key for %s#%s", jose.ErrKeyResolution,
			opt.KeysetEndpoint.JKU, opt.KeysetEndpoint.KID)
	}

	return key, nil
}

func (h *Host) signProof(dvr *zkpass.DataVerificationRequest, receipt string,
	dvrKey, userKey jose.PublicKey) (string, error) {
	digest, err := dvr.Digest()
	if err != nil {
		return "", err
	}

	proof := zkpass.Proof{
		ZkProof:              receipt,
		DvrTitle:             dvr.DvrTitle,
		DvrID:                dvr.DvrID,
		DvrDigest:            digest,
		UserDataVerifyingKey: userKey,
		DvrVerifyingKey:      dvrKey,
		TimeStamp:            uint64(h.now().Unix()),
	}

	sigKey, ep, err := h.keys.SigningKey()
	if err != nil {
		return "", err
	}

	return jwt.Sign(sigKey, proof, &ep, jwt.WithClock(h.now), jwt.WithTTL(h.proofTTL))
}

// ensureKeys fetches the private keys over the util channel when they are not loaded yet.
func (h *Host) ensureKeys(ctx context.Context) error {
	if h.keys.Loaded() {
		return nil
	}

	h.keysMu.Lock()
	defer h.keysMu.Unlock()

	if h.keys.Loaded() {
		return nil
	}

	if h.relay == nil {
		return fmt.Errorf("%w: no util channel to fetch them", ErrKeysNotLoaded)
	}

	pairs, err := h.relay.FetchPrivateKeys(ctx)
	if err != nil {
		return err
	}

	var native KeyDecrypter
	if h.localSecret != "" {
		native = LocalDecrypter{Secret: h.localSecret}
	}

	if err := h.keys.Load(ctx, pairs, native, h.kmsTool); err != nil {
		return err
	}

	logger.Infof("private keys loaded")

	return nil
}
