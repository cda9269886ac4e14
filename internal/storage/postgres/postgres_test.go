package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"orderbook-feature-lab/internal/storage"
)

func TestStoreError(t *testing.T) {
	driverErr := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "feature_runs_pkey"}, storage.ErrDuplicateKey},
		{"wrapped unique violation", fmt.Errorf("batch: %w", &pgconn.PgError{Code: pgErrUniqueViolation}), storage.ErrDuplicateKey},
		{"no rows", pgx.ErrNoRows, storage.ErrNotFound},
		{"other pg error", &pgconn.PgError{Code: "23503"}, nil},
		{"driver error", driverErr, driverErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := storeError("insert", tt.err)
			assert.Contains(t, got.Error(), "insert: ")
			if tt.want != nil {
				assert.ErrorIs(t, got, tt.want)
			}
			if tt.want != storage.ErrDuplicateKey {
				assert.NotErrorIs(t, got, storage.ErrDuplicateKey)
			}
		})
	}
}
