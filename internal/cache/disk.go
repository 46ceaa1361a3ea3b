// Package cache stores lowering results on disk, keyed by the input unit and
// the effective pipeline configuration.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"shaderpipe/internal/diag"
)

// Current schema version - increment when Entry format changes
const schemaVersion uint16 = 1

// Digest is a SHA-256 cache key.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports the unset key.
func (d Digest) IsZero() bool { return d == Digest{} }

// Key hashes the encoded input unit together with the configuration that
// lowers it. config is msgpack-encoded, so any struct of plain fields works.
func Key(input []byte, config any) (Digest, error) {
	cfg, err := msgpack.Marshal(config)
	if err != nil {
		return Digest{}, fmt.Errorf("encode cache key config: %w", err)
	}
	h := sha256.New()
	var n [8]byte
	for _, part := range [][]byte{input, cfg} {
		binary.LittleEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write(part)
	}
	var d Digest
	h.Sum(d[:0])
	return d, nil
}

// PassRecord is the cached form of one pass result.
type PassRecord struct {
	Name   string
	Status string
}

// Entry is one cached lowering result.
type Entry struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	Name string
	// Snapshot is the encoded lowered unit.
	Snapshot []byte
	Passes   []PassRecord
	Notes    []diag.Diagnostic
	Stored   time.Time
}

// Disk keeps entries as msgpack files under one directory.
// Thread-safe for concurrent access.
type Disk struct {
	mu  sync.RWMutex
	dir string
}

// Open uses dir, creating it when needed.
func Open(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Disk{dir: dir}, nil
}

// OpenDefault opens the cache at the standard per-user location.
func OpenDefault(app string) (*Disk, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return Open(filepath.Join(base, app))
}

// Dir returns the cache directory.
func (c *Disk) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Disk) pathFor(key Digest) string {
	hexKey := key.String()
	return filepath.Join(c.dir, "units", hexKey[:2], hexKey+".mp")
}

// Put writes e under key, replacing any previous entry atomically.
func (c *Disk) Put(key Digest, e *Entry) error {
	if c == nil {
		return nil
	}
	if key.IsZero() {
		return errors.New("cache: zero key")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	stored := *e
	stored.Schema = schemaVersion
	if stored.Stored.IsZero() {
		stored.Stored = time.Now().UTC()
	}
	if err := msgpack.NewEncoder(f).Encode(&stored); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads the entry for key. A missing entry or one written with another
// schema is a miss, not an error.
func (c *Disk) Get(key Digest) (*Entry, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var e Entry
	if err := msgpack.NewDecoder(f).Decode(&e); err != nil {
		return nil, false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	if e.Schema != schemaVersion {
		return nil, false, nil
	}
	return &e, true, nil
}

// DropAll removes every entry.
func (c *Disk) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
