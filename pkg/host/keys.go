/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package host

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jose"
)

// Placeholders held by a key store before keys are loaded.
const (
	EmptyPrivateKey = "EMPTY_ZKPASS_PRIVKEY"
	EmptyPublicKeyX = "EMPTY_ZKPASS_PUBKEY_X"
	EmptyPublicKeyY = "EMPTY_ZKPASS_PUBKEY_Y"

	DefaultSigningJKU = "https://hostname/zkpass/jwks"
	DefaultSigningKID = "zkpass-dh-pubkey"
)

const (
	// LocalSecretEnv names the variable holding the secret of NATIVE protected keys.
	LocalSecretEnv = "PRIVATE_KEY_LOCAL_SECRET"

	// DefaultKMSTool is the enclave KMS helper used for KMS protected keys.
	DefaultKMSTool = "./kmstool_enclave_cli"

	localNonceSize = 16
	kmsPlaintext   = "PLAINTEXT: "
)

var (
	// ErrKeysNotLoaded is returned when proving is requested before private keys are available.
	ErrKeysNotLoaded = errors.New("host keys not loaded")

	// ErrKeyDecryption is returned when a protected private key cannot be recovered.
	ErrKeyDecryption = errors.New("private key decryption failed")
)

// KeyService names how the private keys delivered by the relay are protected.
type KeyService string

// Key services.
const (
	KeyServiceNative KeyService = "NATIVE"
	KeyServiceKMS    KeyService = "KMS"
)

// KeyPair is a private key document and its public key.
type KeyPair struct {
	PrivateKey string         `json:"private_key"`
	PublicKey  jose.PublicKey `json:"public_key"`
}

// DecryptionRequest carries the credentials the KMS helper needs.
type DecryptionRequest struct {
	AccessKeyID         string `json:"access_key_id"`
	SecretAccessKey     string `json:"secret_access_key"`
	SessionToken        string `json:"session_token"`
	Region              string `json:"region"`
	KeyID               string `json:"key_id"`
	EncryptionAlgorithm string `json:"encryption_algorithm"`
	ProxyPort           string `json:"proxy_port"`
}

// HostKeyPairs is the relay's answer to a private key request.
type HostKeyPairs struct {
	EncryptionKey           KeyPair             `json:"encryption_key"`
	SigningKey              KeyPair             `json:"signing_key"`
	DecryptionRequestOption *DecryptionRequest  `json:"decryption_request_option"`
	KeyService              KeyService          `json:"key_service"`
	SigningKeysetEndpoint   jose.KeysetEndpoint `json:"signing_keyset_endpoint"`
}

// DefaultHostKeyPairs returns the placeholder key set.
func DefaultHostKeyPairs() HostKeyPairs {
	empty := KeyPair{
		PrivateKey: EmptyPrivateKey,
		PublicKey:  jose.PublicKey{X: EmptyPublicKeyX, Y: EmptyPublicKeyY},
	}

	return HostKeyPairs{
		EncryptionKey:         empty,
		SigningKey:            empty,
		KeyService:            KeyServiceNative,
		SigningKeysetEndpoint: jose.KeysetEndpoint{JKU: DefaultSigningJKU, KID: DefaultSigningKID},
	}
}

// KeyDecrypter recovers a private key document from its protected form.
type KeyDecrypter interface {
	DecryptKey(ctx context.Context, ciphertext string) (string, error)
}

// LocalDecrypter opens NATIVE protected keys: base64(nonce(16) | AES-256-GCM ciphertext) under
// SHA-256(Secret). The key generator writes no authentication tag, so a tag is only checked when
// the ciphertext carries one that opens.
type LocalDecrypter struct {
	Secret string
}

// DecryptKey implements KeyDecrypter.
func (d LocalDecrypter) DecryptKey(_ context.Context, ciphertext string) (string, error) {
	buf := []byte(ciphertext)

	if isASCII(ciphertext) {
		decoded, err := base64.StdEncoding.DecodeString(ciphertext)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrKeyDecryption, err)
		}

		buf = decoded
	}

	gcm, err := localCipher(d.Secret)
	if err != nil {
		return "", err
	}

	if len(buf) <= localNonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrKeyDecryption)
	}

	nonce, sealed := buf[:localNonceSize], buf[localNonceSize:]

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		plain = xorKeyStream(gcm, nonce, sealed)
	}

	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: plaintext is not utf-8", ErrKeyDecryption)
	}

	return string(plain), nil
}

// EncryptKeyLocal protects a private key document the way the key generator does, without a tag.
func EncryptKeyLocal(secret, plaintext string) (string, error) {
	gcm, err := localCipher(secret)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, localNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(append(nonce, xorKeyStream(gcm, nonce, []byte(plaintext))...)), nil
}

// xorKeyStream applies the GCM counter mode keystream of nonce to in. Sealing zeros yields exactly
// that keystream followed by a tag.
func xorKeyStream(gcm cipher.AEAD, nonce, in []byte) []byte {
	stream := gcm.Seal(nil, nonce, make([]byte, len(in)), nil)[:len(in)]

	for i := range stream {
		stream[i] ^= in[i]
	}

	return stream
}

func localCipher(secret string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyDecryption, err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, localNonceSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyDecryption, err)
	}

	return gcm, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}

	return true
}

// KMSTool opens KMS protected keys by running the enclave KMS helper.
type KMSTool struct {
	Path    string
	Request DecryptionRequest

	run func(ctx context.Context, path string, args ...string) ([]byte, error)
}

// DecryptKey implements KeyDecrypter.
func (k *KMSTool) DecryptKey(ctx context.Context, ciphertext string) (string, error) {
	path := k.Path
	if path == "" {
		path = DefaultKMSTool
	}

	run := k.run
	if run == nil {
		run = runCommand
	}

	out, err := run(ctx, path,
		"decrypt",
		"--region", k.Request.Region,
		"--proxy-port", k.Request.ProxyPort,
		"--aws-access-key-id", k.Request.AccessKeyID,
		"--aws-secret-access-key", k.Request.SecretAccessKey,
		"--aws-session-token", k.Request.SessionToken,
		"--ciphertext", ciphertext,
		"--key-id", k.Request.KeyID,
		"--encryption-algorithm", k.Request.EncryptionAlgorithm,
	)
	if err != nil {
		return "", fmt.Errorf("%w: kms tool: %w", ErrKeyDecryption, err)
	}

	_, encoded, ok := strings.Cut(string(out), kmsPlaintext)
	if !ok {
		return "", fmt.Errorf("%w: kms tool printed no plaintext", ErrKeyDecryption)
	}

	encoded, _, _ = strings.Cut(encoded, "\n")

	plain, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeyDecryption, err)
	}

	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: plaintext is not utf-8", ErrKeyDecryption)
	}

	return string(plain), nil
}

func runCommand(ctx context.Context, path string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return out, nil
}

// KeyStore holds the host's key material. It starts with placeholders and is filled once the
// relay delivered the private keys.
type KeyStore struct {
	mu         sync.RWMutex
	pairs      HostKeyPairs
	encryption *ecdsa.PrivateKey
	signing    *ecdsa.PrivateKey
}

// NewKeyStore returns a store holding the placeholder key set.
func NewKeyStore() *KeyStore {
	return &KeyStore{pairs: DefaultHostKeyPairs()}
}

// Loaded reports whether both private keys are available.
func (s *KeyStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.encryption != nil && s.signing != nil
}

// Install sets key pairs whose private keys are plain PEM documents. Missing public keys are derived.
func (s *KeyStore) Install(pairs HostKeyPairs) error {
	if pairs.EncryptionKey.PrivateKey == EmptyPrivateKey || pairs.SigningKey.PrivateKey == EmptyPrivateKey {
		return ErrKeysNotLoaded
	}

	encryption, err := parsePair(&pairs.EncryptionKey)
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}

	signing, err := parsePair(&pairs.SigningKey)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}

	if pairs.SigningKeysetEndpoint.JKU == "" {
		pairs.SigningKeysetEndpoint = DefaultHostKeyPairs().SigningKeysetEndpoint
	}

	s.mu.Lock()
	s.pairs = pairs
	s.encryption = encryption
	s.signing = signing
	s.mu.Unlock()

	return nil
}

func parsePair(pair *KeyPair) (*ecdsa.PrivateKey, error) {
	key, err := jose.ParsePrivateKeyPEM(pair.PrivateKey)
	if err != nil {
		return nil, err
	}

	if pair.PublicKey.IsZero() || pair.PublicKey.X == EmptyPublicKeyX {
		pub, err := jose.NewPublicKey(&key.PublicKey)
		if err != nil {
			return nil, err
		}

		pair.PublicKey = pub
	}

	return key, nil
}

// Load recovers the protected private keys of pairs and installs them. NATIVE keys are opened with
// native, KMS keys with the KMS helper at kmsTool.
func (s *KeyStore) Load(ctx context.Context, pairs HostKeyPairs, native KeyDecrypter, kmsTool string) error {
	var dec KeyDecrypter

	switch pairs.KeyService {
	case KeyServiceNative, "":
		if native == nil {
			return fmt.Errorf("%w: no local secret configured", ErrKeyDecryption)
		}

		dec = native
	case KeyServiceKMS:
		if pairs.DecryptionRequestOption == nil {
			return fmt.Errorf("%w: KMS keys without a decryption request", ErrKeyDecryption)
		}

		dec = &KMSTool{Path: kmsTool, Request: *pairs.DecryptionRequestOption}
	default:
		return fmt.Errorf("%w: unknown key service %q", ErrKeyDecryption, pairs.KeyService)
	}

	logger.Infof("decrypting private keys with the %s key service", pairs.KeyService)

	encryption, err := dec.DecryptKey(ctx, pairs.EncryptionKey.PrivateKey)
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}

	signing, err := dec.DecryptKey(ctx, pairs.SigningKey.PrivateKey)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}

	pairs.EncryptionKey.PrivateKey = encryption
	pairs.SigningKey.PrivateKey = signing

	return s.Install(pairs)
}

// EncryptionKey returns the key request tokens are decrypted with.
func (s *KeyStore) EncryptionKey() (*ecdsa.PrivateKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.encryption == nil {
		return nil, ErrKeysNotLoaded
	}

	return s.encryption, nil
}

// SigningKey returns the key proofs are signed with and the endpoint that publishes its public key.
func (s *KeyStore) SigningKey() (*ecdsa.PrivateKey, jose.KeysetEndpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.signing == nil {
		return nil, jose.KeysetEndpoint{}, ErrKeysNotLoaded
	}

	return s.signing, s.pairs.SigningKeysetEndpoint, nil
}

// SigningKeysetEndpoint returns the endpoint proof tokens name for their verifying key.
func (s *KeyStore) SigningKeysetEndpoint() jose.KeysetEndpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pairs.SigningKeysetEndpoint
}

// PublicKeys returns the public halves of the loaded key pairs.
func (s *KeyStore) PublicKeys() (encryption, signing jose.PublicKey) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pairs.EncryptionKey.PublicKey, s.pairs.SigningKey.PublicKey
}
