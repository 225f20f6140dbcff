package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Collections used by the monitor.
const (
	Checks = "checks"
	Users  = "users"
	Tokens = "tokens"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrInvalidKey    = errors.New("invalid record key")
)

// RecordStore is a schema-agnostic store of JSON records addressed by
// collection and key. Create and Update are atomic per record: a reader
// sees either the old content or the new content, never a partial write.
// There are no cross-key transactions.
type RecordStore interface {
	Create(ctx context.Context, collection, key string, value []byte) error
	Read(ctx context.Context, collection, key string) ([]byte, error)
	Update(ctx context.Context, collection, key string, value []byte) error
	Delete(ctx context.Context, collection, key string) error
	List(ctx context.Context, collection string) ([]string, error)
}

// Versioned stores can replace a record only if nobody wrote it since it
// was read.
type Versioned interface {
	ReadRevision(ctx context.Context, collection, key string) ([]byte, int64, error)
	CompareAndSwap(ctx context.Context, collection, key string, revision int64, value []byte) (bool, error)
}

// ValidKey reports whether s can address a record. Keys double as file
// names, so separators and dot-prefixed names are rejected.
func ValidKey(s string) bool {
	return s != "" && !strings.HasPrefix(s, ".") && !strings.ContainsAny(s, "/\\\x00")
}

// Get reads and decodes one record.
func Get[T any](ctx context.Context, s RecordStore, collection, key string) (T, error) {
	var v T
	raw, err := s.Read(ctx, collection, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return v, nil
}

// Insert encodes v and creates it under key.
func Insert(ctx context.Context, s RecordStore, collection, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return s.Create(ctx, collection, key, raw)
}

// Put encodes v and replaces the existing record under key.
func Put(ctx context.Context, s RecordStore, collection, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return s.Update(ctx, collection, key, raw)
}
