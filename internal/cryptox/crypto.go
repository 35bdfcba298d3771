// Package cryptox implements authenticated at-rest encryption for protected
// string fields using AES-256-GCM with a PBKDF2-derived key.
//
// Encrypted values are serialized as a single opaque token of four
// lowercase-hex segments, "salt:iv:tag:ciphertext", so they can coexist with
// legacy plaintext in the same column and be recognized without the secret.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/QTMarketing/cps-sub000/internal/common"
)

const (
	// SaltSize is the per-value PBKDF2 salt length in bytes.
	SaltSize = 32
	// IVSize is the GCM nonce length in bytes.
	IVSize = 16
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
	// KeySize is the derived AES key length in bytes (AES-256).
	KeySize = 32

	// DefaultIterations is the PBKDF2 iteration count. Deliberately slow;
	// tests dial it down via WithIterations.
	DefaultIterations = 100_000

	// MinSecretLen is the minimum acceptable master secret length.
	MinSecretLen = 32

	segments = 4
)

// Envelope is the parsed form of one encrypted value.
type Envelope struct {
	Salt       []byte
	IV         []byte
	AuthTag    []byte
	Ciphertext []byte
}

// String serializes the envelope as "salt:iv:tag:ciphertext" in lowercase hex.
func (e *Envelope) String() string {
	parts := []string{
		hex.EncodeToString(e.Salt),
		hex.EncodeToString(e.IV),
		hex.EncodeToString(e.AuthTag),
		hex.EncodeToString(e.Ciphertext),
	}
	return strings.Join(parts, ":")
}

// ParseEnvelope decodes a serialized envelope token. It validates structure
// only; it does not verify the authentication tag.
func ParseEnvelope(token string) (*Envelope, error) {
	parts := strings.Split(token, ":")
	if len(parts) != segments {
		return nil, fmt.Errorf("%w: expected %d segments, got %d", common.ErrInvalidInput, segments, len(parts))
	}

	decoded := make([][]byte, segments)
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d is not hex", common.ErrInvalidInput, i)
		}
		decoded[i] = b
	}

	e := &Envelope{Salt: decoded[0], IV: decoded[1], AuthTag: decoded[2], Ciphertext: decoded[3]}
	if len(e.Salt) != SaltSize || len(e.IV) != IVSize || len(e.AuthTag) != TagSize || len(e.Ciphertext) == 0 {
		return nil, fmt.Errorf("%w: malformed envelope", common.ErrInvalidInput)
	}
	return e, nil
}

// IsEncryptedForm reports whether value decodes into a well-formed envelope.
// It is purely structural, so callers can distinguish legacy plaintext from
// protected values without holding the secret.
func IsEncryptedForm(value string) bool {
	_, err := ParseEnvelope(value)
	return err == nil
}

// Option tweaks Cipher construction.
type Option func(*Cipher)

// WithIterations overrides the PBKDF2 iteration count. Intended for tests;
// production uses DefaultIterations.
func WithIterations(n int) Option {
	return func(c *Cipher) { c.iterations = n }
}

// Cipher performs authenticated encryption of single string values under a
// long-lived master secret. It holds no mutable state and is safe for
// concurrent use; every Encrypt call allocates fresh randomness.
type Cipher struct {
	secret     []byte
	iterations int
}

// New validates the master secret and returns a Cipher.
func New(secret string, opts ...Option) (*Cipher, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("%w: secret must be at least %d characters", common.ErrInvalidInput, MinSecretLen)
	}
	c := &Cipher{secret: []byte(secret), iterations: DefaultIterations}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DeriveKey runs PBKDF2-SHA512 over the secret and salt. Exported so the
// migration path can exercise the KDF directly.
func (c *Cipher) DeriveKey(salt []byte) []byte {
	return pbkdf2.Key(c.secret, salt, c.iterations, KeySize, sha512.New)
}

// Encrypt encrypts plaintext under a fresh salt and IV and returns the
// serialized envelope. Encryption is probabilistic: two calls with the same
// plaintext never produce the same token, so envelopes must not be used as
// equality keys.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: empty plaintext", common.ErrInvalidInput)
	}

	salt := common.GenerateRandByteArray(SaltSize)
	iv := common.GenerateRandByteArray(IVSize)

	key := c.DeriveKey(salt)
	defer common.WipeByteArray(key)

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)

	// Seal appends the tag to the ciphertext; the envelope stores it apart.
	ct := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	e := &Envelope{Salt: salt, IV: iv, AuthTag: tag, Ciphertext: ct}
	return e.String(), nil
}

// Decrypt parses the token, re-derives the key from the stored salt, and
// opens the ciphertext. A tag mismatch (tamper or wrong secret) fails closed
// with common.ErrAuthenticationFailure; no partial plaintext is ever returned.
func (c *Cipher) Decrypt(token string) (string, error) {
	e, err := ParseEnvelope(token)
	if err != nil {
		return "", err
	}

	key := c.DeriveKey(e.Salt)
	defer common.WipeByteArray(key)

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(e.Ciphertext)+len(e.AuthTag))
	sealed = append(sealed, e.Ciphertext...)
	sealed = append(sealed, e.AuthTag...)

	plaintext, err := aead.Open(nil, e.IV, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrAuthenticationFailure, err)
	}
	return string(plaintext), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, IVSize)
}
