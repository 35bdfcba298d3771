package protect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTMarketing/cps-sub000/internal/cryptox"
	"github.com/QTMarketing/cps-sub000/internal/logging"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testDoc is a minimal protected entity for exercising the field helpers.
type testDoc struct {
	ID       string
	Secret   string
	Note     string
	Plain    string
	Degraded []string
}

func (d *testDoc) ProtectedFields() []Field {
	return []Field{
		{Entity: "doc", Name: "secret", Value: &d.Secret},
		{Entity: "doc", Name: "note", Value: &d.Note},
	}
}

func (d *testDoc) MarkDegraded(field string) {
	d.Degraded = append(d.Degraded, field)
}

func newTestProtector(t *testing.T) *Protector {
	t.Helper()
	p, err := NewProtector(testSecret, logging.NewDiscardLogger(), cryptox.WithIterations(16))
	require.NoError(t, err)
	return p
}

func TestNewProtector_ShortSecret(t *testing.T) {
	_, err := NewProtector("too short", logging.NewDiscardLogger())
	assert.Error(t, err)
}

func TestEncryptFields(t *testing.T) {
	p := newTestProtector(t)

	doc := &testDoc{Secret: "1234567890", Note: "routing", Plain: "visible"}
	require.NoError(t, p.EncryptFields(doc))

	assert.True(t, cryptox.IsEncryptedForm(doc.Secret))
	assert.True(t, cryptox.IsEncryptedForm(doc.Note))
	assert.Equal(t, "visible", doc.Plain)
}

func TestEncryptFields_Idempotent(t *testing.T) {
	p := newTestProtector(t)

	doc := &testDoc{Secret: "1234567890"}
	require.NoError(t, p.EncryptFields(doc))
	once := doc.Secret

	require.NoError(t, p.EncryptFields(doc))
	assert.Equal(t, once, doc.Secret, "second pass must not re-encrypt")
}

func TestEncryptFields_SkipsEmpty(t *testing.T) {
	p := newTestProtector(t)

	doc := &testDoc{Secret: ""}
	require.NoError(t, p.EncryptFields(doc))
	assert.Equal(t, "", doc.Secret)
}

func TestDecryptFields_RoundTrip(t *testing.T) {
	p := newTestProtector(t)

	doc := &testDoc{Secret: "1234567890", Note: "021000021"}
	require.NoError(t, p.EncryptFields(doc))

	degraded := p.DecryptFields(doc)
	assert.Empty(t, degraded)
	assert.Equal(t, "1234567890", doc.Secret)
	assert.Equal(t, "021000021", doc.Note)
}

func TestDecryptFields_LegacyPlaintext(t *testing.T) {
	p := newTestProtector(t)

	doc := &testDoc{Secret: "never encrypted"}
	degraded := p.DecryptFields(doc)
	assert.Empty(t, degraded)
	assert.Equal(t, "never encrypted", doc.Secret)
}

func TestDecryptFields_DegradedKeepsRawValue(t *testing.T) {
	p := newTestProtector(t)

	doc := &testDoc{Secret: "1234567890"}
	require.NoError(t, p.EncryptFields(doc))

	// flip a ciphertext byte while preserving the envelope shape
	tampered := []byte(doc.Secret)
	if tampered[len(tampered)-1] == 'a' {
		tampered[len(tampered)-1] = 'b'
	} else {
		tampered[len(tampered)-1] = 'a'
	}
	doc.Secret = string(tampered)
	raw := doc.Secret

	degraded := p.DecryptFields(doc)
	require.Equal(t, []string{"secret"}, degraded)
	assert.Equal(t, raw, doc.Secret, "migration tooling needs the stored value")
}

func TestSealFields_RestoresPlaintext(t *testing.T) {
	p := newTestProtector(t)

	doc := &testDoc{Secret: "1234567890"}
	restore, err := p.sealFields(doc)
	require.NoError(t, err)

	assert.True(t, cryptox.IsEncryptedForm(doc.Secret))
	restore()
	assert.Equal(t, "1234567890", doc.Secret)
}

func TestOpenFields_RedactsUndecryptable(t *testing.T) {
	p := newTestProtector(t)

	doc := &testDoc{Secret: "1234567890"}
	require.NoError(t, p.EncryptFields(doc))

	other, err := NewProtector("ffffffffffffffffffffffffffffffff", logging.NewDiscardLogger(), cryptox.WithIterations(16))
	require.NoError(t, err)

	other.openFields(t.Context(), doc)
	assert.Equal(t, Redacted, doc.Secret)
	assert.Equal(t, []string{"secret"}, doc.Degraded)
}
