// Package objectstore implements the content-addressed-by-name blob
// store shared across cluster nodes (spec.md §4.5): VM images,
// VM-resource payloads, and per-VM schedules all live here, keyed by
// name rather than by digest (spec.md's own wording: "content-addressed-
// by-filename", not by hash). Grounded on
// cuemby-warren/pkg/storage/boltdb.go's bucket-per-concern BoltStore —
// one bucket here holds metadata (digest, mtime, size) per blob name,
// while the blob bytes themselves live as plain files on disk, since a
// multi-gigabyte VM image does not belong inside a bbolt value.
package objectstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sandialabs/firewheel-core/pkg/ferrors"
	"github.com/sandialabs/firewheel-core/pkg/metrics"
)

var bucketBlobs = []byte("blobs")

// Outcome reports what a Put actually did, per spec.md §4.5.
type Outcome string

const (
	// OutcomeNoDate means name had no prior entry; this is the first
	// write (spec.md's own label for "absent" is "no_date").
	OutcomeNoDate Outcome = "no_date"
	// OutcomeSameHash means the content digest matched the stored
	// entry; at most metadata (mtime) was refreshed.
	OutcomeSameHash Outcome = "same_hash"
	// OutcomeNewHash means content differed from the stored entry and
	// was replaced.
	OutcomeNewHash Outcome = "new_hash"
)

// Metadata is the per-blob record kept in the bbolt index.
type Metadata struct {
	Name   string    `json:"name"`
	Digest string    `json:"digest"`
	MTime  time.Time `json:"mtime"`
	Size   int64     `json:"size"`
}

// Peer is a remote cluster node an object store can broadcast newly
// written blobs to (spec.md §4.5 "Broadcast").
type Peer interface {
	ReceiveBlob(ctx context.Context, name string, data []byte) error
}

// Store is a content-addressed-by-name blob store: a bbolt metadata
// index plus flat files on disk.
type Store struct {
	db      *bolt.DB
	rootDir string
	peers   []Peer

	locksMu sync.Mutex
	locks   map[string]struct{}
}

// Open creates or opens a Store rooted at rootDir, with its metadata
// index at <rootDir>/index.db.
func Open(rootDir string, peers ...Peer) (*Store, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: create root %s: %w", rootDir, err)
	}
	db, err := bolt.Open(filepath.Join(rootDir, "index.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: open index: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("objectstore: create bucket: %w", err)
	}
	return &Store{db: db, rootDir: rootDir, peers: peers, locks: make(map[string]struct{})}, nil
}

// Close closes the metadata index.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) blobPath(name string) string {
	return filepath.Join(s.rootDir, "blobs", name)
}

func (s *Store) lockDir(name string) string {
	return filepath.Join(s.rootDir, "locks", name+".lock")
}

// tryLock creates a sibling lock directory as an advisory per-name
// lock: a second concurrent Put on the same name fails fast rather
// than blocking (spec.md §4.5 "Concurrency").
func (s *Store) tryLock(name string) (func(), error) {
	dir := s.lockDir(name)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, err
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, ferrors.ErrObjectLocked
		}
		return nil, err
	}
	return func() { _ = os.Remove(dir) }, nil
}

// Put writes data under name. The Outcome (spec.md §4.5) is decided by
// comparing data's digest with the existing entry's: a matching digest
// is "same_hash" and leaves the blob file untouched; a different digest
// replaces the blob ("new_hash"); no prior entry is "no_date". The
// stored mtime is not compared, and every Put, same_hash included,
// refreshes it in the metadata. When broadcast is true and peers are
// configured, every peer receives the new bytes after the local write
// succeeds; a same_hash Put is not broadcast.
func (s *Store) Put(ctx context.Context, name string, data []byte, broadcast bool) (Outcome, error) {
	unlock, err := s.tryLock(name)
	if err != nil {
		return "", err
	}
	defer unlock()

	digest := hashBytes(data)
	existing, hasExisting := s.lookup(name)

	outcome := OutcomeNoDate
	switch {
	case hasExisting && existing.Digest == digest:
		outcome = OutcomeSameHash
	case hasExisting:
		outcome = OutcomeNewHash
	}

	if outcome != OutcomeSameHash {
		if err := os.MkdirAll(filepath.Dir(s.blobPath(name)), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(s.blobPath(name), data, 0o644); err != nil {
			return "", fmt.Errorf("objectstore: write blob %s: %w", name, err)
		}
	}

	meta := Metadata{Name: name, Digest: digest, MTime: time.Now(), Size: int64(len(data))}
	if err := s.save(meta); err != nil {
		return "", err
	}

	metrics.ObjectStorePuts.WithLabelValues(string(outcome)).Inc()

	if broadcast && outcome != OutcomeSameHash {
		for _, p := range s.peers {
			if err := p.ReceiveBlob(ctx, name, data); err != nil {
				return outcome, fmt.Errorf("objectstore: broadcast %s: %w", name, err)
			}
		}
	}

	return outcome, nil
}

// Get returns the local path and an open read handle for name.
func (s *Store) Get(name string) (string, io.ReadCloser, error) {
	path := s.blobPath(name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("objectstore: %s: %w", name, os.ErrNotExist)
		}
		return "", nil, err
	}
	return path, f, nil
}

// List returns every tracked blob name matching pattern (a
// filepath.Match-style glob; empty matches everything).
func (s *Store) List(pattern string) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		return b.ForEach(func(k, v []byte) error {
			name := string(k)
			if pattern == "" {
				names = append(names, name)
				return nil
			}
			matched, err := filepath.Match(pattern, name)
			if err != nil {
				return err
			}
			if matched {
				names = append(names, name)
			}
			return nil
		})
	})
	return names, err
}

// Remove deletes every tracked blob whose name matches pattern.
func (s *Store) Remove(pattern string) error {
	names, err := s.List(pattern)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(s.blobPath(name)); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := s.delete(name); err != nil {
			return err
		}
	}
	return nil
}

// Hash returns name's stored content digest.
func (s *Store) Hash(name string) (string, error) {
	m, ok := s.lookup(name)
	if !ok {
		return "", fmt.Errorf("objectstore: %s: %w", name, os.ErrNotExist)
	}
	return m.Digest, nil
}

// MTime returns name's last-write time.
func (s *Store) MTime(name string) (time.Time, error) {
	m, ok := s.lookup(name)
	if !ok {
		return time.Time{}, fmt.Errorf("objectstore: %s: %w", name, os.ErrNotExist)
	}
	return m.MTime, nil
}

// Size returns name's byte length.
func (s *Store) Size(name string) (int64, error) {
	m, ok := s.lookup(name)
	if !ok {
		return 0, fmt.Errorf("objectstore: %s: %w", name, os.ErrNotExist)
	}
	return m.Size, nil
}

func (s *Store) lookup(name string) (Metadata, bool) {
	var m Metadata
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		data := b.Get([]byte(name))
		if data == nil {
			return nil
		}
		found = json.Unmarshal(data, &m) == nil
		return nil
	})
	return m, found
}

func (s *Store) save(m Metadata) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return b.Put([]byte(m.Name), data)
	})
}

func (s *Store) delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).Delete([]byte(name))
	})
}

// hashBytes digests data with sha1, matching spec.md §4.5's round-trip
// property ("hash(N) equals sha1(B)").
func hashBytes(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
