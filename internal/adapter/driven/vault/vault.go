// Package vault seals upstream session tokens at rest.
//
// Tokens are sealed as Fernet tokens (AES-128-CBC with HMAC-SHA256 and a
// random IV). The 32 key bytes come from the configured secret, either by the
// legacy normalization (truncate to 32 bytes, right-pad with '0') used by
// existing deployments, or by HKDF-SHA256.
package vault

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/hkdf"

	"github.com/ericfisherdev/sdbrowser/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenSealer = (*Vault)(nil)

// Derivation selects how the configured secret becomes key material.
type Derivation string

const (
	// DerivationLegacy truncates the secret to 32 bytes and pads it with '0'.
	// Tokens sealed by earlier deployments only open under this mode.
	DerivationLegacy Derivation = "legacy"

	// DerivationHKDF expands the secret with HKDF-SHA256.
	DerivationHKDF Derivation = "hkdf"
)

const (
	keySize = 32
	padByte = '0'

	hkdfSalt = "sdbrowser-upstream-credentials"
	hkdfInfo = "upstream-token-v1"

	// noExpiry disables the Fernet timestamp check. Sealed tokens are opened
	// regardless of age; session expiry is tracked separately.
	noExpiry = -1 * time.Second
)

var (
	// ErrEmptySecret is returned when the vault is built without a secret.
	ErrEmptySecret = errors.New("vault secret cannot be empty")

	// ErrUnknownDerivation is returned for an unsupported Derivation.
	ErrUnknownDerivation = errors.New("unknown key derivation")

	// ErrDecryptionFailed is returned when a sealed value was tampered with,
	// sealed under another key, or is not a sealed value at all.
	ErrDecryptionFailed = errors.New("decryption failed: invalid or tampered token")
)

// Vault seals and unseals strings with a key fixed at construction. It is safe
// for concurrent use.
type Vault struct {
	key fernet.Key
}

// New builds a Vault from secret using the given derivation mode. An empty
// mode means DerivationLegacy.
func New(secret string, mode Derivation) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	var raw []byte
	switch mode {
	case DerivationLegacy, "":
		raw = legacyKey([]byte(secret))
	case DerivationHKDF:
		k, err := deriveKey([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("derive vault key: %w", err)
		}
		raw = k
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDerivation, mode)
	}

	v := &Vault{}
	copy(v.key[:], raw)
	return v, nil
}

// Seal encrypts plain. Sealing the same value twice yields different output.
func (v *Vault) Seal(plain string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plain), &v.key)
	if err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	return string(tok), nil
}

// Unseal returns the plaintext of a value produced by Seal under the same key.
func (v *Vault) Unseal(sealed string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(sealed), noExpiry, []*fernet.Key{&v.key})
	if msg == nil {
		return "", ErrDecryptionFailed
	}
	return string(msg), nil
}

// legacyKey truncates secret to 32 bytes and right-pads it with '0'.
func legacyKey(secret []byte) []byte {
	key := make([]byte, keySize)
	n := copy(key, secret)
	for i := n; i < keySize; i++ {
		key[i] = padByte
	}
	return key
}

func deriveKey(secret []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, []byte(hkdfSalt), []byte(hkdfInfo))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
