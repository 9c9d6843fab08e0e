// Package vault implements decrypt-on-demand access to stored site
// credentials. Credential handles are opaque base64 strings holding a
// secretbox-sealed payload; the symmetric key is derived from the
// operator-supplied master key and never leaves this package.
package vault

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"

	"github.com/wzin/datawipe/internal/accounts"
	"github.com/wzin/datawipe/internal/config"
)

const (
	keySize       = 32
	nonceSize     = 24
	kdfIterations = 100_000
)

// kdfSalt is fixed so handles sealed by one process can be opened by
// another sharing the same master key. Rotating the salt invalidates
// every stored handle.
var kdfSalt = []byte("datawipe/credential-vault/v1")

// Errors returned by the vault.
var (
	// ErrMalformedHandle indicates the handle is not a sealed payload
	// produced by this vault.
	ErrMalformedHandle = errors.New("malformed credential handle")

	// ErrDecryptFailed indicates the payload did not authenticate,
	// usually because the master key changed.
	ErrDecryptFailed = errors.New("credential decryption failed")
)

// Vault seals and opens credential payloads with a key derived from the
// configured master key.
type Vault struct {
	key    [keySize]byte
	logger *slog.Logger
}

// Compile-time check that Vault satisfies the decryptor contract.
var _ accounts.CredentialDecryptor = (*Vault)(nil)

// New derives the symmetric key from cfg.MasterKey and returns a ready
// vault. The configuration layer enforces the minimum key length.
func New(cfg config.VaultConfig, log *slog.Logger) (*Vault, error) {
	if cfg.MasterKey == "" {
		return nil, errors.New("vault master key is required")
	}
	if log == nil {
		log = slog.Default()
	}

	v := &Vault{
		logger: log.With(slog.String("component", "vault")),
	}
	derived := pbkdf2.Key([]byte(cfg.MasterKey), kdfSalt, kdfIterations, keySize, sha256.New)
	copy(v.key[:], derived)
	return v, nil
}

// Seal encrypts a cleartext credential and returns the handle to store.
// The handle layout is base64url(nonce || secretbox ciphertext).
func (v *Vault) Seal(credential string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(credential), &nonce, &v.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a credential handle and returns the cleartext. The
// cleartext is never logged and must not be persisted by the caller.
func (v *Vault) Decrypt(ctx context.Context, handle string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if handle == "" {
		return "", ErrMalformedHandle
	}

	raw, err := base64.RawURLEncoding.DecodeString(handle)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedHandle, err)
	}
	if len(raw) <= nonceSize+secretbox.Overhead {
		return "", ErrMalformedHandle
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &v.key)
	if !ok {
		v.logger.WarnContext(ctx, "credential handle failed to authenticate")
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}
