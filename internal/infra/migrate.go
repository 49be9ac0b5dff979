package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var schemaStatements = []struct {
	name string
	sql  string
}{
	{
		name: "credit_accounts",
		sql: `CREATE TABLE IF NOT EXISTS credit_accounts (
			owner_id   UUID PRIMARY KEY,
			balance    INTEGER NOT NULL CHECK (balance >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		name: "generations",
		sql: `CREATE TABLE IF NOT EXISTS generations (
			id         UUID PRIMARY KEY,
			owner_id   UUID NOT NULL,
			prompt     TEXT NOT NULL,
			room       TEXT NOT NULL,
			mode       TEXT NOT NULL,
			engine     TEXT NOT NULL,
			succeeded  BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		name: "generations_owner_idx",
		sql:  `CREATE INDEX IF NOT EXISTS generations_owner_created_idx ON generations (owner_id, created_at DESC)`,
	},
}

// Migrate applies the schema idempotently at startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt.sql); err != nil {
			return fmt.Errorf("migrate %s: %w", stmt.name, err)
		}
		logger.Info().Msgf("schema[%s] ok", stmt.name)
	}
	return nil
}
