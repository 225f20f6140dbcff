// Package applog keeps one append-only log per check and freezes logs into
// gzip+base64 archives during rotation.
//
// Layout under the log dir:
//
//	<subject>.log        active log, one JSON line per probe
//	<archiveID>.gz.b64   immutable archive
package applog

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hamed0406/uptimemonitor/internal/repo"
)

const (
	activeExt  = ".log"
	archiveExt = ".gz.b64"
)

var (
	ErrNotFound      = errors.New("log not found")
	ErrArchiveExists = errors.New("archive already exists")
	ErrEmpty         = errors.New("log is empty")
)

// ArchiveStats describes one Compress call.
type ArchiveStats struct {
	RawBytes      int64
	ArchivedBytes int64
}

type Log struct {
	dir   string
	locks repo.KeyedMutex
}

func New(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &Log{dir: dir}, nil
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) activePath(subject string) (string, error) {
	if !repo.ValidKey(subject) {
		return "", repo.ErrInvalidKey
	}
	return filepath.Join(l.dir, subject+activeExt), nil
}

func (l *Log) archivePath(id string) (string, error) {
	if !repo.ValidKey(id) {
		return "", repo.ErrInvalidKey
	}
	return filepath.Join(l.dir, id+archiveExt), nil
}

// Append adds line to the subject's log, creating it if needed. The write
// is synced to disk before Append returns.
func (l *Log) Append(subject, line string) error {
	p, err := l.activePath(subject)
	if err != nil {
		return err
	}
	unlock := l.locks.Lock(subject)
	defer unlock()

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", subject+activeExt, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", subject+activeExt, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", subject+activeExt, err)
	}
	return f.Close()
}

// List returns active log subjects, followed by archive ids when
// includeArchived is set.
func (l *Log) List(includeArchived bool) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	var active, archived []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir():
		case strings.HasSuffix(name, archiveExt):
			if includeArchived {
				archived = append(archived, strings.TrimSuffix(name, archiveExt))
			}
		case strings.HasSuffix(name, activeExt):
			active = append(active, strings.TrimSuffix(name, activeExt))
		}
	}
	sort.Strings(active)
	sort.Strings(archived)
	return append(active, archived...), nil
}

// Read returns the active log content of subject.
func (l *Log) Read(subject string) (string, error) {
	p, err := l.activePath(subject)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(b), nil
}

// Compress freezes the active log of subject into the archive archiveID.
// It fails with ErrArchiveExists rather than overwrite an archive.
func (l *Log) Compress(subject, archiveID string) (ArchiveStats, error) {
	if !repo.ValidKey(subject) {
		return ArchiveStats{}, repo.ErrInvalidKey
	}
	unlock := l.locks.Lock(subject)
	defer unlock()
	return l.compress(subject, archiveID)
}

// Rotate compresses subject into archiveID and truncates it while holding
// the subject's lock, so no append lands between the two steps.
func (l *Log) Rotate(subject, archiveID string) (ArchiveStats, error) {
	if !repo.ValidKey(subject) {
		return ArchiveStats{}, repo.ErrInvalidKey
	}
	unlock := l.locks.Lock(subject)
	defer unlock()
	stats, err := l.compress(subject, archiveID)
	if err != nil {
		return stats, err
	}
	if err := l.truncate(subject); err != nil {
		return stats, err
	}
	return stats, nil
}

func (l *Log) compress(subject, archiveID string) (ArchiveStats, error) {
	var stats ArchiveStats
	src, err := l.activePath(subject)
	if err != nil {
		return stats, err
	}
	dst, err := l.archivePath(archiveID)
	if err != nil {
		return stats, err
	}

	raw, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stats, ErrNotFound
		}
		return stats, fmt.Errorf("read %s: %w", subject+activeExt, err)
	}
	if len(raw) == 0 {
		return stats, ErrEmpty
	}

	var buf bytes.Buffer
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	zw := gzip.NewWriter(enc)
	if _, err := zw.Write(raw); err != nil {
		return stats, fmt.Errorf("gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return stats, fmt.Errorf("gzip: %w", err)
	}
	if err := enc.Close(); err != nil {
		return stats, fmt.Errorf("base64: %w", err)
	}
	stats.RawBytes = int64(len(raw))
	stats.ArchivedBytes = int64(buf.Len())

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return stats, ErrArchiveExists
		}
		return stats, fmt.Errorf("create archive: %w", err)
	}
	if _, err := buf.WriteTo(f); err != nil {
		f.Close()
		os.Remove(dst)
		return stats, fmt.Errorf("write archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(dst)
		return stats, fmt.Errorf("sync archive: %w", err)
	}
	return stats, f.Close()
}

// Decompress returns the original log content stored in archiveID.
func (l *Log) Decompress(archiveID string) (string, error) {
	p, err := l.archivePath(archiveID)
	if err != nil {
		return "", err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	defer f.Close()

	zr, err := gzip.NewReader(base64.NewDecoder(base64.StdEncoding, f))
	if err != nil {
		return "", fmt.Errorf("gunzip %s: %w", archiveID, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("gunzip %s: %w", archiveID, err)
	}
	return string(out), nil
}

// Truncate empties the active log of subject.
func (l *Log) Truncate(subject string) error {
	if !repo.ValidKey(subject) {
		return repo.ErrInvalidKey
	}
	unlock := l.locks.Lock(subject)
	defer unlock()
	return l.truncate(subject)
}

func (l *Log) truncate(subject string) error {
	p, err := l.activePath(subject)
	if err != nil {
		return err
	}
	if err := os.Truncate(p, 0); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("truncate %s: %w", subject+activeExt, err)
	}
	return nil
}
