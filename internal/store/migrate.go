package store

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const upSuffix = ".up.sql"

// migrationLockKey serializes migrators started at the same time.
const migrationLockKey = 7_204_118_311

// Migrate applies every pending *.up.sql file in files, in lexical order.
// Each file runs in its own transaction together with its bookkeeping row
// in schema_migrations. It returns the number of files applied.
func Migrate(ctx context.Context, pool *pgxpool.Pool, files fs.FS, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	names, err := fs.Glob(files, "*"+upSuffix)
	if err != nil {
		return 0, fmt.Errorf("list migrations: %w", err)
	}
	if len(names) == 0 {
		return 0, fmt.Errorf("no migration files found")
	}
	sort.Strings(names)

	const bookkeeping = `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version    TEXT PRIMARY KEY,
            applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )
    `
	if _, err := pool.Exec(ctx, bookkeeping); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, name := range names {
		version := strings.TrimSuffix(name, upSuffix)
		payload, err := fs.ReadFile(files, name)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", name, err)
		}

		ran, err := applyOne(ctx, pool, version, string(payload))
		if err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", name, err)
		}
		if ran {
			applied++
			logger.Info("store: migration applied", zap.String("version", version))
		}
	}
	return applied, nil
}

// Migrate applies files against the store's pool.
func (s *Store) Migrate(ctx context.Context, files fs.FS) (int, error) {
	return Migrate(ctx, s.pool, files, s.logger)
}

func applyOne(ctx context.Context, pool *pgxpool.Pool, version, sql string) (bool, error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(migrationLockKey)); err != nil {
		return false, fmt.Errorf("lock: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists); err != nil {
		return false, fmt.Errorf("check version: %w", err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		return false, fmt.Errorf("record version: %w", err)
	}
	return true, tx.Commit(ctx)
}
