package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimemonitor/internal/repo"
)

var _ repo.RecordStore = (*Store)(nil)

// Schema keeps one row per record. value is json (not jsonb) so the
// stored bytes come back unchanged.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
  collection TEXT        NOT NULL,
  key        TEXT        NOT NULL,
  value      JSON        NOT NULL,
  revision   BIGINT      NOT NULL DEFAULT 1,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (collection, key)
);`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// EnsureSchema creates the records table when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Create(ctx context.Context, collection, key string, value []byte) error {
	if !repo.ValidKey(key) {
		return repo.ErrInvalidKey
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO records (collection, key, value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection, key) DO NOTHING`,
		collection, key, string(value))
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, key, err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Read(ctx context.Context, collection, key string) ([]byte, error) {
	value, _, err := s.ReadRevision(ctx, collection, key)
	return value, err
}

// ReadRevision returns the record together with its revision, for use
// with CompareAndSwap.
func (s *Store) ReadRevision(ctx context.Context, collection, key string) ([]byte, int64, error) {
	var (
		value    string
		revision int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT value::text, revision FROM records WHERE collection = $1 AND key = $2`,
		collection, key).Scan(&value, &revision)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, repo.ErrNotFound
		}
		return nil, 0, fmt.Errorf("select %s/%s: %w", collection, key, err)
	}
	return []byte(value), revision, nil
}

func (s *Store) Update(ctx context.Context, collection, key string, value []byte) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE records
		    SET value = $3, revision = revision + 1, updated_at = now()
		  WHERE collection = $1 AND key = $2`,
		collection, key, string(value))
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// CompareAndSwap replaces the record only while it is still at revision.
// It reports false when another writer got there first.
func (s *Store) CompareAndSwap(ctx context.Context, collection, key string, revision int64, value []byte) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE records
		    SET value = $4, revision = revision + 1, updated_at = now()
		  WHERE collection = $1 AND key = $2 AND revision = $3`,
		collection, key, revision, string(value))
	if err != nil {
		return false, fmt.Errorf("cas %s/%s: %w", collection, key, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, _, err := s.ReadRevision(ctx, collection, key); err != nil {
		return false, err
	}
	s.log.Debug("record_revision_conflict",
		zap.String("collection", collection),
		zap.String("key", key),
		zap.Int64("revision", revision),
	)
	return false, nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM records WHERE collection = $1 AND key = $2`, collection, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM records WHERE collection = $1 ORDER BY key`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan %s keys: %w", collection, err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}
