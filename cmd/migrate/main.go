// Command migrate runs the one-time encryption sweep over existing bank
// account rows: plaintext account and routing numbers are encrypted in place
// and written back, already-encrypted rows are left alone.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/QTMarketing/cps-sub000/internal/logging"
	"github.com/QTMarketing/cps-sub000/internal/models"
	"github.com/QTMarketing/cps-sub000/internal/protect"
	"github.com/QTMarketing/cps-sub000/internal/server/config"
	"github.com/QTMarketing/cps-sub000/internal/server/storage"
)

const migrationWorkers = 4

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	secret := cfg.MasterSecret
	if secret == "" {
		fmt.Println("Enter master secret")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			log.Fatalf("%v", err)
		}
		secret = strings.TrimSpace(string(b))
	}

	logger := logging.NewJSONLogger()

	protector, err := protect.NewProtector(secret, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	db, err := storage.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(ctx, db); err != nil {
		log.Fatalf("%v", err)
	}

	banks := storage.NewPostgresBanks(db)

	rows, err := banks.List(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}

	recs := make([]protect.Protected, 0, len(rows))
	for _, b := range rows {
		recs = append(recs, b)
	}

	m := protect.NewMigrator(protector, migrationWorkers, logger)
	report := m.Run(ctx, recs, func(ctx context.Context, rec protect.Protected) error {
		return banks.Update(ctx, rec.(*models.BankAccount))
	})

	fmt.Printf("migrated: %d\nalready encrypted: %d\nfailed: %d\n",
		report.Migrated, report.AlreadyEncrypted, report.Failed)
}
