package protect

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/QTMarketing/cps-sub000/internal/cryptox"
	"github.com/QTMarketing/cps-sub000/internal/logging"
)

// MigrationReport counts the outcome of a batch encryption sweep.
type MigrationReport struct {
	Migrated         int64
	AlreadyEncrypted int64
	Failed           int64
}

// WriteBack persists one record after its fields were encrypted.
type WriteBack func(ctx context.Context, rec Protected) error

// Migrator runs the one-time rollout sweep over existing records: encrypt
// each record's plaintext fields and write it back. The KDF dominates the
// cost, so records are processed by a worker pool rather than serially.
type Migrator struct {
	p       *Protector
	workers int
	log     logging.Logger
}

func NewMigrator(p *Protector, workers int, log logging.Logger) *Migrator {
	if workers < 1 {
		workers = 1
	}
	return &Migrator{p: p, workers: workers, log: log}
}

// Run migrates all records and reports {migrated, already-encrypted, failed}
// counts. A record whose protected fields are all already in encrypted form
// (or empty) is counted as already-encrypted and not rewritten. Run stops
// feeding work when ctx is cancelled; in-flight records finish.
func (m *Migrator) Run(ctx context.Context, recs []Protected, write WriteBack) MigrationReport {
	var migrated, already, failed atomic.Int64

	jobs := make(chan Protected)
	var wg sync.WaitGroup

	for range m.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				if fullyEncrypted(rec) {
					already.Add(1)
					continue
				}
				if err := m.p.EncryptFields(rec); err != nil {
					m.log.Error(ctx, "migration: encrypt failed", "error", err)
					failed.Add(1)
					continue
				}
				if err := write(ctx, rec); err != nil {
					m.log.Error(ctx, "migration: write back failed", "error", err)
					failed.Add(1)
					continue
				}
				migrated.Add(1)
			}
		}()
	}

feed:
	for _, rec := range recs {
		select {
		case jobs <- rec:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return MigrationReport{
		Migrated:         migrated.Load(),
		AlreadyEncrypted: already.Load(),
		Failed:           failed.Load(),
	}
}

func fullyEncrypted(rec Protected) bool {
	for _, f := range rec.ProtectedFields() {
		if f.Value == nil || *f.Value == "" {
			continue
		}
		if !cryptox.IsEncryptedForm(*f.Value) {
			return false
		}
	}
	return true
}
