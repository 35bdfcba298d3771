package cryptox

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/QTMarketing/cps-sub000/internal/common"
)

const testSecret = "0123456789abcdef0123456789abcdef" // 32 chars, minimum length

// low iteration count keeps the KDF cheap in tests
func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New(testSecret, WithIterations(16))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestNew_RejectsShortSecret(t *testing.T) {
	_, err := New("too-short")
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plaintext := range []string{"1234567890", "a", "routing·§·числа", strings.Repeat("x", 4096)} {
		token, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		got, err := c.Decrypt(token)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
		}
	}
}

func TestEncrypt_EmptyPlaintext(t *testing.T) {
	c := newTestCipher(t)
	if _, err := c.Encrypt(""); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestEncrypt_Probabilistic(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt("same-plaintext")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := c.Encrypt("same-plaintext")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatalf("two encryptions of the same plaintext must differ")
	}
}

func TestDecrypt_TamperDetection(t *testing.T) {
	c := newTestCipher(t)

	token, err := c.Encrypt("153 Main St routing 021000021")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e, err := ParseEnvelope(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// flip one byte in each section in turn; every variant must fail closed
	mutations := map[string][]byte{
		"salt":       e.Salt,
		"iv":         e.IV,
		"tag":        e.AuthTag,
		"ciphertext": e.Ciphertext,
	}
	for name, section := range mutations {
		section[0] ^= 0xff
		_, err := c.Decrypt(e.String())
		if !errors.Is(err, common.ErrAuthenticationFailure) {
			t.Fatalf("%s flip: want ErrAuthenticationFailure, got %v", name, err)
		}
		section[0] ^= 0xff // restore
	}
}

func TestDecrypt_WrongSecret(t *testing.T) {
	c := newTestCipher(t)
	token, err := c.Encrypt("4111111111111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other, err := New("ffffffffffffffffffffffffffffffff", WithIterations(16))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := other.Decrypt(token); !errors.Is(err, common.ErrAuthenticationFailure) {
		t.Fatalf("want ErrAuthenticationFailure, got %v", err)
	}
}

func TestDecrypt_MalformedToken(t *testing.T) {
	c := newTestCipher(t)

	for _, token := range []string{
		"",
		"plaintext value",
		"aa:bb:cc",
		"zz:zz:zz:zz",
		"aa:bb:cc:dd:ee",
		hex.EncodeToString(make([]byte, 8)) + ":" + hex.EncodeToString(make([]byte, 8)) + ":aa:bb",
	} {
		if _, err := c.Decrypt(token); !errors.Is(err, common.ErrInvalidInput) {
			t.Fatalf("token %q: want ErrInvalidInput, got %v", token, err)
		}
	}
}

func TestIsEncryptedForm(t *testing.T) {
	c := newTestCipher(t)

	token, err := c.Encrypt("1234567890")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsEncryptedForm(token) {
		t.Fatalf("expected envelope token to be recognized")
	}

	for _, v := range []string{"", "1234567890", "a:b:c:d", "not:an:envelope:really"} {
		if IsEncryptedForm(v) {
			t.Fatalf("value %q must not be recognized as encrypted", v)
		}
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	c := newTestCipher(t)
	salt := []byte("fixed-salt-for-derivation-check!")

	key1 := c.DeriveKey(salt)
	key2 := c.DeriveKey(salt)
	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same key for same salt")
	}
	if len(key1) != KeySize {
		t.Errorf("expected %d-byte key, got %d", KeySize, len(key1))
	}

	other := c.DeriveKey([]byte("another-salt-another-key-please!"))
	if bytes.Equal(key1, other) {
		t.Errorf("expected different keys for different salts")
	}
}

func TestEnvelope_StringParseSymmetry(t *testing.T) {
	c := newTestCipher(t)
	token, err := c.Encrypt("021000021")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e, err := ParseEnvelope(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.String() != token {
		t.Fatalf("re-serialized envelope differs from original token")
	}
}
