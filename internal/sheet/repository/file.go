package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockTimeout   = 3 * time.Second
	lockRetryStep = 50 * time.Millisecond
)

// FileStore keeps both collections in a single JSON document:
//
//	{"exercises": {"1": {"title": ..., "text": ...}}, "sheets": {"1": {...}}}
//
// Object keys are the record ids. The file is re-read on every operation and
// rewritten atomically (temp file + rename) after every write. An in-process
// mutex plus a flock on "<path>.lock" serialize access, so several processes
// may share one file.
type FileStore struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileStore opens (or lazily creates) the store file at path.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	s := &FileStore{path: path, lock: flock.New(path + ".lock")}
	// fail early on an unreadable or corrupt file
	if err := s.view(context.Background(), func(map[Collection]table) error { return nil }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Get(ctx context.Context, c Collection, id int, out any) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	return s.view(ctx, func(t map[Collection]table) error {
		return t[c].get(c, id, out)
	})
}

func (s *FileStore) Insert(ctx context.Context, c Collection, rec any) (int, error) {
	if err := checkCollection(c); err != nil {
		return 0, err
	}
	var id int
	err := s.modify(ctx, func(t map[Collection]table) error {
		var err error
		id, err = t[c].insert(rec)
		return err
	})
	return id, err
}

func (s *FileStore) Update(ctx context.Context, c Collection, id int, fields Fields) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	return s.modify(ctx, func(t map[Collection]table) error {
		return t[c].update(c, id, fields)
	})
}

func (s *FileStore) List(ctx context.Context, c Collection, out any) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	return s.view(ctx, func(t map[Collection]table) error {
		return t[c].list(out)
	})
}

func (s *FileStore) Ping(ctx context.Context) error {
	return s.view(ctx, func(map[Collection]table) error { return nil })
}

// Close releases the lock handle. The lock file stays on disk: other
// processes may still hold a lock on it.
func (s *FileStore) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Close()
}

func (s *FileStore) view(ctx context.Context, fn func(map[Collection]table) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	t, err := s.load()
	if err != nil {
		return err
	}
	return fn(t)
}

func (s *FileStore) modify(ctx context.Context, fn func(map[Collection]table) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	t, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	return s.save(t)
}

func (s *FileStore) acquire(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, lockRetryStep)
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, errors.New("could not acquire store lock")
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// load reads the file; a missing or empty file is an empty store.
func (s *FileStore) load() (map[Collection]table, error) {
	t := make(map[Collection]table, len(Collections))
	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse store %s: %w", s.path, err)
		}
	}
	for _, c := range Collections {
		if t[c] == nil {
			t[c] = table{}
		}
	}
	return t, nil
}

func (s *FileStore) save(t map[Collection]table) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
