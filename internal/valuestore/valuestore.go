// Package valuestore is the Value Store (VS) component of spec.md §4.1: a
// plain local cache of K → V with no notion of replication. All consistency
// is imposed above it, by the replica manager.
//
// Durability follows the teacher's store package: every write goes to an
// append-only WAL before it touches the in-memory map, and a periodic
// snapshot compacts the WAL so recovery does not replay the log from time
// zero.
package valuestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store is the Value Store for one data center: an in-memory map of key to
// opaque value, durable via WAL + snapshot.
type Store struct {
	mu      sync.RWMutex
	data    map[string][]byte
	wal     *wal
	dataDir string
}

// Open creates or reopens a Store rooted at dataDir: it loads the latest
// snapshot (if any), opens the WAL, and replays entries written since that
// snapshot.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		data:    make(map[string][]byte),
		dataDir: dataDir,
	}

	if err := s.loadSnapshot(); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	w, err := openWAL(filepath.Join(dataDir, "data_item.wal"))
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}
	s.wal = w

	if err := s.replayWAL(); err != nil {
		return nil, fmt.Errorf("replay wal: %w", err)
	}
	return s, nil
}

// Put unconditionally upserts key with value.
func (s *Store) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.append(walEntry{Op: walOpPut, Key: key, Value: value}); err != nil {
		return err
	}
	s.data[key] = value
	return nil
}

// Get returns the value for key, or ok=false if absent.
func (s *Store) Get(key string) (value []byte, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Remove deletes key. Removing an absent key is not an error — VS has no
// notion of "should exist"; that judgment belongs to the replica registry.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	if err := s.wal.append(walEntry{Op: walOpRemove, Key: key}); err != nil {
		return err
	}
	delete(s.data, key)
	return nil
}

// Contains reports whether key is currently held — used by invariant tests
// and by the replica manager to cross-check registry state (invariant 2).
func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Snapshot writes the full in-memory state to disk atomically and truncates
// the WAL, since the snapshot now captures everything written before it.
func (s *Store) Snapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		snap[k] = v
	}

	path := filepath.Join(s.dataDir, "data_item.snapshot")
	tmp := path + ".tmp"

	if err := writeSnapshotFile(tmp, snap); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	log.Debug().Int("keys", len(snap)).Msg("value store snapshot written")
	return s.wal.truncate()
}

// Close releases the WAL file handle.
func (s *Store) Close() error {
	return s.wal.close()
}
