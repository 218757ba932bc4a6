package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// blobSchema creates the single table backing the object store. Etags are
// UUIDs regenerated on every write; conditional updates compare against
// the previous value inside one statement so concurrent writers cannot
// both succeed.
const blobSchema = `
CREATE TABLE IF NOT EXISTS blobs (
    container  TEXT        NOT NULL,
    name       TEXT        NOT NULL,
    data       BYTEA       NOT NULL,
    etag       UUID        NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (container, name)
)`

// PostgresStore implements ObjectStore on a Postgres table of blobs.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the store and ensures its schema exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, blobSchema); err != nil {
		return nil, fmt.Errorf("create blobs table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Get returns the blob's bytes and current etag.
func (s *PostgresStore) Get(ctx context.Context, container, name string) ([]byte, string, error) {
	var data []byte
	var etag uuid.UUID

	err := s.pool.QueryRow(ctx,
		`SELECT data, etag FROM blobs WHERE container = $1 AND name = $2`,
		container, name,
	).Scan(&data, &etag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("get blob %s/%s: %w", container, name, err)
	}
	return data, etag.String(), nil
}

// Put writes the blob. With IfMatch set, the update only lands when the
// stored etag still matches; zero rows affected means another writer got
// there first.
func (s *PostgresStore) Put(ctx context.Context, container, name string, data []byte, opts PutOptions) (string, error) {
	newEtag := uuid.New()

	if opts.IfMatch == "" {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO blobs (container, name, data, etag, updated_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (container, name)
			 DO UPDATE SET data = EXCLUDED.data, etag = EXCLUDED.etag, updated_at = now()`,
			container, name, data, newEtag,
		)
		if err != nil {
			return "", fmt.Errorf("put blob %s/%s: %w", container, name, err)
		}
		return newEtag.String(), nil
	}

	prev, err := uuid.Parse(opts.IfMatch)
	if err != nil {
		return "", fmt.Errorf("put blob %s/%s: invalid etag %q", container, name, opts.IfMatch)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE blobs SET data = $3, etag = $4, updated_at = now()
		 WHERE container = $1 AND name = $2 AND etag = $5`,
		container, name, data, newEtag, prev,
	)
	if err != nil {
		return "", fmt.Errorf("put blob %s/%s: %w", container, name, err)
	}
	if tag.RowsAffected() == 0 {
		return "", ErrEtagMismatch
	}
	return newEtag.String(), nil
}

// Ping verifies database connectivity for health checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
