package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adeilh/go-lsbible/cache"
)

const ext = ".json"

// Options controls where the file store keeps its entries.
type Options struct {
	Dir string
	// Now overrides the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
}

// Store keeps one JSON envelope per key under a directory. Expiry is checked
// on read; expired files are removed lazily or by Sweep.
type Store struct {
	dir string
	now func() time.Time
	mu  sync.RWMutex
}

var _ cache.ClearableStore = (*Store)(nil)

// New creates the directory if needed and returns a store rooted there.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("file: directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("file: create dir: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{dir: opts.Dir, now: now}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, cache.EncodeKey(key)+ext)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.path(key)

	s.mu.RLock()
	env, err := readEnvelope(p)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if env.Expired(s.now()) {
		s.mu.Lock()
		// A concurrent Set may have refreshed the file since we read it.
		if cur, err := readEnvelope(p); err == nil && cur.Expired(s.now()) {
			_ = os.Remove(p)
		}
		s.mu.Unlock()
		return nil, cache.ErrNotFound
	}
	return env.Payload(), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(cache.NewEnvelope(value, s.now(), ttl))
	if err != nil {
		return fmt.Errorf("file: encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.dir, s.path(key), raw)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return cache.ErrNotFound
	}
	return err
}

// Clear removes every entry file. Other files in the directory are left alone.
func (s *Store) Clear(ctx context.Context) error {
	return s.walk(ctx, func(string, cache.Envelope) bool { return true })
}

// Sweep removes entries that have expired, returning the number removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0
	err := s.walk(ctx, func(_ string, env cache.Envelope) bool {
		if env.Expired(now) {
			removed++
			return true
		}
		return false
	})
	return removed, err
}

// Len counts entry files, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if isEntry(e) {
			n++
		}
	}
	return n
}

func (s *Store) walk(ctx context.Context, remove func(string, cache.Envelope) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("file: read dir: %w", err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !isEntry(e) {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		env, err := readEnvelope(p)
		if err != nil && !errors.Is(err, errCorrupt) {
			continue
		}
		// Unreadable envelopes are garbage either way.
		if err == nil && !remove(p, env) {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("file: remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

var errCorrupt = errors.New("file: corrupt envelope")

func readEnvelope(path string) (cache.Envelope, error) {
	var env cache.Envelope
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return env, cache.ErrNotFound
	}
	if err != nil {
		return env, fmt.Errorf("file: read: %w", err)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return env, nil
}

func writeAtomic(dir, path string, raw []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("file: create temp: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("file: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("file: close: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("file: rename: %w", err)
	}
	return nil
}

func isEntry(e fs.DirEntry) bool {
	return !e.IsDir() && strings.HasSuffix(e.Name(), ext) && len(e.Name()) == 64+len(ext)
}
