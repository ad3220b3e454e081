package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS checklists (
	name       TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database described by dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, ns Namespace, key string) (string, bool, error) {
	if err := checkNamespace(ns); err != nil {
		return "", false, err
	}
	t := tables[ns]

	var data string
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT data::text FROM %s WHERE %s = $1`, t.table, t.key), key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", Key(ns, key), err)
	}
	return data, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, ns Namespace, key, value string) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	t := tables[ns]

	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %[1]s (%[2]s, data) VALUES ($1, $2::jsonb)
		ON CONFLICT (%[2]s) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, t.table, t.key),
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", Key(ns, key), err)
	}
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context, ns Namespace) ([]string, error) {
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}
	t := tables[ns]

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s`, t.key, t.table, t.key))
	if err != nil {
		return nil, fmt.Errorf("list %s keys: %w", ns, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan %s keys: %w", ns, err)
	}
	return keys, nil
}
