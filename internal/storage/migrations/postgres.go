package migrations

import (
	"context"
	"fmt"

	"orderbook-feature-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the event store schema. Every file is sent
// as one multi-statement Exec and must be idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := load(postgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}
