// Package storage implements the embedded key-value persistence layer
// backing the swap engine's storage contract: a read-only artifact store
// plus an append-only magnet descriptor tree, both held in a single Pebble
// database under two key prefixes.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	logging "github.com/ipfs/go-log/v2"

	"github.com/sufferpurrityxd/quantaswap/internal/artifact"
	"github.com/sufferpurrityxd/quantaswap/internal/magnet"
)

var log = logging.Logger("quantaswap-storage")

// artifactPrefix and magnetPrefix separate the two logical trees within the
// single Pebble keyspace.
var (
	artifactPrefix = []byte{0x01}
	magnetPrefix   = []byte{0x02}
	magnetCounter  = []byte{0x03, 0xFF} // reserved key tracking the next insertion counter
)

// ErrNotFound is returned when a magnet lookup misses.
var ErrNotFound = errors.New("storage: not found")

// Store is the embedded KV engine backing the swap engine's Storage
// contract (Exists/Get over the artifact tree) plus the magnet descriptor
// tree, which is exclusively owned by this package's callers — not by
// internal/swap.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a Pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("storage: opening pebble db at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func artifactKey(id artifact.ID) []byte {
	return append(append([]byte{}, artifactPrefix...), id[:]...)
}

// Exists implements swap.Storage: reports whether an artifact payload is
// present for the given raw key (expected to be a 32-byte artifact id).
func (s *Store) Exists(key []byte) bool {
	id, err := artifact.IDFromBytes(key)
	if err != nil {
		log.Debugf("Exists: malformed artifact key: %s", err)
		return false
	}

	_, closer, err := s.db.Get(artifactKey(id))
	if err != nil {
		if !errors.Is(err, pebble.ErrNotFound) {
			log.Warnf("Exists: storage read error: %s", err)
		}
		return false
	}
	closer.Close()
	return true
}

// Get implements swap.Storage: returns the artifact payload for key, if
// present.
func (s *Store) Get(key []byte) ([]byte, bool) {
	id, err := artifact.IDFromBytes(key)
	if err != nil {
		log.Debugf("Get: malformed artifact key: %s", err)
		return nil, false
	}

	val, closer, err := s.db.Get(artifactKey(id))
	if err != nil {
		if !errors.Is(err, pebble.ErrNotFound) {
			log.Warnf("Get: storage read error: %s", err)
		}
		return nil, false
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, true
}

// PutArtifact writes a.Data under a's own identifier.
func (s *Store) PutArtifact(a artifact.Artifact) error {
	if err := s.db.Set(artifactKey(a.ID), a.Data, pebble.Sync); err != nil {
		return fmt.Errorf("storage: writing artifact %s: %w", a.ID, err)
	}
	return nil
}

// PutMagnet appends d to the magnet tree under the next 8-byte
// little-endian insertion counter, gzip-compressing its canonical form —
// compression is reserved for on-disk persistence, never the display form.
func (s *Store) PutMagnet(d *magnet.Descriptor) (uint64, error) {
	compressed, err := d.ToCompressedBytes()
	if err != nil {
		return 0, fmt.Errorf("storage: compressing magnet descriptor: %w", err)
	}

	counter, err := s.nextMagnetCounter()
	if err != nil {
		return 0, err
	}

	key := magnetKey(counter)
	if err := s.db.Set(key, compressed, pebble.Sync); err != nil {
		return 0, fmt.Errorf("storage: writing magnet entry %d: %w", counter, err)
	}
	if err := s.db.Set(magnetCounter, itob(counter+1), pebble.Sync); err != nil {
		return 0, fmt.Errorf("storage: advancing magnet counter: %w", err)
	}
	return counter, nil
}

// GetMagnet reads and decompresses the magnet entry at counter.
func (s *Store) GetMagnet(counter uint64) (*magnet.Descriptor, error) {
	val, closer, err := s.db.Get(magnetKey(counter))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: reading magnet entry %d: %w", counter, err)
	}
	defer closer.Close()

	d, err := magnet.FromCompressedBytes(val)
	if err != nil {
		return nil, fmt.Errorf("storage: decoding magnet entry %d: %w", counter, err)
	}
	return d, nil
}

func (s *Store) nextMagnetCounter() (uint64, error) {
	val, closer, err := s.db.Get(magnetCounter)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: reading magnet counter: %w", err)
	}
	defer closer.Close()
	return btoi(val), nil
}

func magnetKey(counter uint64) []byte {
	return append(append([]byte{}, magnetPrefix...), itob(counter)...)
}

func btoi(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
