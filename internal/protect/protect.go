// Package protect makes field encryption invisible to business logic. It
// wraps a narrow Store interface with a decorator that encrypts designated
// fields before they reach persistence and decrypts them on every read path,
// and exposes the low-level field helpers migration tooling needs.
package protect

import (
	"context"
	"fmt"

	"github.com/QTMarketing/cps-sub000/internal/cryptox"
	"github.com/QTMarketing/cps-sub000/internal/logging"
)

// Redacted replaces a protected value the store could not decrypt. Raw
// envelope bytes are never handed to callers on the read path; see the
// degraded-read decision in DESIGN.md.
const Redacted = "***"

// Field is one protected attribute of an entity: a stable name for logging
// and a pointer into the live record so helpers can rewrite it in place.
type Field struct {
	Entity string
	Name   string
	Value  *string
}

// Protected is implemented by every entity carrying protected fields. The
// accessor is the registry: adding a sensitive field means editing the
// entity's method, so an unlisted field cannot compile its way past
// encryption silently.
//
// Entities holding related protected entities include the children's fields
// in their own slice, which is how nested reads get decrypted.
type Protected interface {
	ProtectedFields() []Field
}

// DegradedMarker is optionally implemented by entities that want to surface
// which fields failed decryption, so the caller can mask them in output.
type DegradedMarker interface {
	MarkDegraded(field string)
}

// Protector owns the cipher and performs field-level rewrites.
type Protector struct {
	cipher *cryptox.Cipher
	log    logging.Logger
}

// NewProtector validates the master secret and builds a Protector.
func NewProtector(secret string, log logging.Logger, opts ...cryptox.Option) (*Protector, error) {
	c, err := cryptox.New(secret, opts...)
	if err != nil {
		return nil, err
	}
	return &Protector{cipher: c, log: log}, nil
}

// EncryptFields encrypts every protected field of rec in place. Fields that
// are empty or already in encrypted form are left untouched, so re-saving an
// already-encrypted record never double-encrypts. Any encryption failure
// aborts: protected data must not persist as plaintext.
func (p *Protector) EncryptFields(rec Protected) error {
	for _, f := range rec.ProtectedFields() {
		if f.Value == nil || *f.Value == "" {
			continue
		}
		if cryptox.IsEncryptedForm(*f.Value) {
			continue
		}
		token, err := p.cipher.Encrypt(*f.Value)
		if err != nil {
			return fmt.Errorf("encrypting %s.%s: %w", f.Entity, f.Name, err)
		}
		*f.Value = token
	}
	return nil
}

// DecryptFields decrypts every protected field of rec in place, tolerating
// legacy plaintext (left as-is). A value that looks encrypted but fails to
// decrypt keeps its raw stored form and is reported in the returned slice;
// this low-level variant is for migration and test tooling that needs the
// original bytes. The store decorator redacts instead.
func (p *Protector) DecryptFields(rec Protected) []string {
	var degraded []string
	for _, f := range rec.ProtectedFields() {
		if f.Value == nil || *f.Value == "" {
			continue
		}
		if !cryptox.IsEncryptedForm(*f.Value) {
			continue
		}
		plaintext, err := p.cipher.Decrypt(*f.Value)
		if err != nil {
			p.log.Warn(context.Background(), "field decryption failed",
				"entity", f.Entity, "field", f.Name, "error", err)
			degraded = append(degraded, f.Name)
			continue
		}
		*f.Value = plaintext
	}
	return degraded
}

// sealFields encrypts for the write path and returns a restore function that
// puts the caller's plaintext back after the persistence call, so writing a
// record never mutates it from the caller's point of view.
func (p *Protector) sealFields(rec Protected) (restore func(), err error) {
	type saved struct {
		ptr  *string
		orig string
	}
	var changed []saved

	restore = func() {
		for _, s := range changed {
			*s.ptr = s.orig
		}
	}

	for _, f := range rec.ProtectedFields() {
		if f.Value == nil || *f.Value == "" {
			continue
		}
		if cryptox.IsEncryptedForm(*f.Value) {
			continue
		}
		token, encErr := p.cipher.Encrypt(*f.Value)
		if encErr != nil {
			restore()
			return func() {}, fmt.Errorf("encrypting %s.%s: %w", f.Entity, f.Name, encErr)
		}
		changed = append(changed, saved{ptr: f.Value, orig: *f.Value})
		*f.Value = token
	}
	return restore, nil
}

// openFields decrypts for the read path. Legacy plaintext passes through.
// Undecryptable values are logged, replaced with Redacted, and flagged on the
// record when it implements DegradedMarker.
func (p *Protector) openFields(ctx context.Context, rec Protected) {
	marker, _ := rec.(DegradedMarker)
	for _, f := range rec.ProtectedFields() {
		if f.Value == nil || *f.Value == "" {
			continue
		}
		if !cryptox.IsEncryptedForm(*f.Value) {
			continue
		}
		plaintext, err := p.cipher.Decrypt(*f.Value)
		if err != nil {
			p.log.Warn(ctx, "field decryption failed, redacting",
				"entity", f.Entity, "field", f.Name, "error", err)
			*f.Value = Redacted
			if marker != nil {
				marker.MarkDegraded(f.Name)
			}
			continue
		}
		*f.Value = plaintext
	}
}
