package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hamed0406/uptimemonitor/internal/repo"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestFileStore_CreateReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	value := []byte(`{"id":"abcdefghij0123456789","successCodes":[200,201],"state":"down"}`)
	if err := s.Create(ctx, repo.Checks, "abcdefghij0123456789", value); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Read(ctx, repo.Checks, "abcdefghij0123456789")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("round trip mismatch:\nwant %s\ngot  %s", value, got)
	}

	if _, err := os.Stat(filepath.Join(s.Dir(), "checks", "abcdefghij0123456789.json")); err != nil {
		t.Fatalf("expected one file per record: %v", err)
	}
}

func TestFileStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.Update(ctx, repo.Checks, "missing", []byte(`{}`)); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("update missing: want ErrNotFound, got %v", err)
	}
	if _, err := s.Read(ctx, repo.Checks, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("read missing: want ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, repo.Checks, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("delete missing: want ErrNotFound, got %v", err)
	}

	if err := s.Create(ctx, repo.Users, "5551234567", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, repo.Users, "5551234567", []byte(`{"v":2}`)); !errors.Is(err, repo.ErrAlreadyExists) {
		t.Fatalf("duplicate create: want ErrAlreadyExists, got %v", err)
	}
	got, _ := s.Read(ctx, repo.Users, "5551234567")
	if string(got) != `{"v":1}` {
		t.Fatalf("failed create must not touch the record, got %s", got)
	}

	if err := s.Create(ctx, repo.Users, "../escape", []byte(`{}`)); !errors.Is(err, repo.ErrInvalidKey) {
		t.Fatalf("want ErrInvalidKey, got %v", err)
	}
}

func TestFileStore_UpdateDeleteList(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if keys, err := s.List(ctx, repo.Checks); err != nil || len(keys) != 0 {
		t.Fatalf("empty collection: %v %v", keys, err)
	}

	for _, k := range []string{"b", "a", "c"} {
		if err := s.Create(ctx, repo.Checks, k, []byte(`{}`)); err != nil {
			t.Fatalf("Create %s: %v", k, err)
		}
	}
	if err := s.Update(ctx, repo.Checks, "a", []byte(`{"state":"up"}`)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got, _ := s.Read(ctx, repo.Checks, "a"); string(got) != `{"state":"up"}` {
		t.Fatalf("after update got %s", got)
	}
	if err := s.Delete(ctx, repo.Checks, "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	keys, err := s.List(ctx, repo.Checks)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "c"}, keys); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}

	entries, _ := os.ReadDir(filepath.Join(s.Dir(), repo.Checks))
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

// Concurrent writers and readers on one key: every read must decode to one
// of the written values, never an empty or torn record.
func TestFileStore_ConcurrentUpdatesNeverTorn(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	valid := map[string]bool{}
	values := make([][]byte, 8)
	for i := range values {
		values[i] = []byte(fmt.Sprintf(`{"writer":%d}`, i))
		valid[string(values[i])] = true
	}
	if err := s.Create(ctx, repo.Checks, "x", values[0]); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 1024)
	for i := range values {
		wg.Add(2)
		go func(v []byte) {
			defer wg.Done()
			for n := 0; n < 25; n++ {
				if err := s.Update(ctx, repo.Checks, "x", v); err != nil {
					errs <- err
				}
			}
		}(values[i])
		go func() {
			defer wg.Done()
			for n := 0; n < 25; n++ {
				got, err := s.Read(ctx, repo.Checks, "x")
				if err != nil {
					errs <- err
					continue
				}
				if !valid[string(got)] {
					errs <- fmt.Errorf("torn read: %q", got)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
