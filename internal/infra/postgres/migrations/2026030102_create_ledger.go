package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 0002_create_ledger.sql
var createLedgerSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createLedgerSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
DROP TABLE IF EXISTS ledger_adjustments;
DROP TABLE IF EXISTS ledger_awards;
DROP TABLE IF EXISTS progress_ledger;
DROP TABLE IF EXISTS enrollments`)
			return err
		},
	)
}
