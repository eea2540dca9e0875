// Package state implements the verifiable, content-addressed key-value
// store shared by every component that reads or writes chain state: an
// IAVL tree over a Badger-backed KV for the verifiable partition that
// feeds the app hash, a sibling plain KV for nonverifiable data that is
// persisted but never hashed, and an in-memory ephemeral partition that is
// discarded every block.
package state

import (
	"fmt"
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/iavl"
)

// Store is the durable, versioned KV store backing one ABCI application
// instance. A Store is safe for concurrent reads; writes must go through a
// StateDelta obtained via NewDelta and committed with Store.Commit.
type Store struct {
	mu sync.RWMutex

	tree          *iavl.MutableTree
	nonverifiable dbm.DB

	ephemeralMu sync.Mutex
	ephemeral   map[string][]byte
}

// Config selects the on-disk backend for a Store.
type Config struct {
	// Dir is the directory the verifiable and nonverifiable Badger
	// instances are created under (as "verifiable" and "nonverifiable"
	// subdirectories).
	Dir string
	// CacheSize bounds the IAVL tree's in-memory node cache, in nodes.
	CacheSize int
}

// Open opens (creating if absent) the verifiable and nonverifiable Badger
// backends under cfg.Dir and loads the latest committed IAVL version.
func Open(cfg Config) (*Store, error) {
	verifiableDB, err := dbm.NewDB("verifiable", dbm.BadgerDBBackend, cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening verifiable store: %w", err)
	}
	nonverifiableDB, err := dbm.NewDB("nonverifiable", dbm.BadgerDBBackend, cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening nonverifiable store: %w", err)
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 100_000
	}
	tree := iavl.NewMutableTree(verifiableDB, cacheSize, false, cmtlog.NewNopLogger())
	if _, err := tree.Load(); err != nil {
		return nil, fmt.Errorf("loading verifiable tree: %w", err)
	}

	return &Store{
		tree:          tree,
		nonverifiable: nonverifiableDB,
		ephemeral:     make(map[string][]byte),
	}, nil
}

// Height reports the most recently committed version.
func (s *Store) Height() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Version()
}

// AppHash returns the Merkle root of the verifiable partition as of the
// last Commit. It is nil before any commit has happened.
func (s *Store) AppHash() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Hash()
}

// GetVerifiable reads a committed value from the verifiable partition.
func (s *Store) GetVerifiable(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Get(verifiableKey(key))
}

// GetVerifiableAtHeight reads a historical value as of a prior commit.
// Callers use this for proof construction and for replaying state at a
// height other than the current one.
func (s *Store) GetVerifiableAtHeight(key string, height int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	immutable, err := s.tree.GetImmutable(height)
	if err != nil {
		return nil, fmt.Errorf("loading version %d: %w", height, err)
	}
	return immutable.Get(verifiableKey(key))
}

// IterateVerifiablePrefix walks every committed verifiable key beginning
// with prefix, in ascending key order, invoking fn with the prefix
// stripped back off. Iteration stops early if fn returns an error.
func (s *Store) IterateVerifiablePrefix(prefix string, fn func(key string, value []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := verifiableKey(prefix)
	end := prefixUpperBound(start)
	var iterErr error
	_, err := s.tree.IterateRange(start, end, true, func(key, value []byte) bool {
		trimmed := string(key[len(verifiablePrefix):])
		if iterErr = fn(trimmed, value); iterErr != nil {
			return true
		}
		return false
	})
	if err != nil {
		return fmt.Errorf("iterating prefix %q: %w", prefix, err)
	}
	return iterErr
}

// prefixUpperBound returns the lexicographically smallest key that is
// strictly greater than every key beginning with prefix, or nil if prefix
// is all 0xff bytes (meaning "no upper bound").
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// GetNonverifiable reads a value from the nonverifiable partition.
func (s *Store) GetNonverifiable(key string) ([]byte, error) {
	return s.nonverifiable.Get(nonverifiableKey(key))
}

// Ephemeral returns the current value of an ephemeral key, if set since
// the last ClearEphemeral.
func (s *Store) Ephemeral(key string) ([]byte, bool) {
	s.ephemeralMu.Lock()
	defer s.ephemeralMu.Unlock()
	v, ok := s.ephemeral[key]
	return v, ok
}

// SetEphemeral records a value that never reaches disk or the app hash.
// Used for per-proposal caches such as the block-assembly fingerprint
// (Block Assembly & Grouping).
func (s *Store) SetEphemeral(key string, value []byte) {
	s.ephemeralMu.Lock()
	defer s.ephemeralMu.Unlock()
	s.ephemeral[key] = value
}

// ClearEphemeral discards all ephemeral state. Called once per height,
// after FinalizeBlock has consumed whatever it needed from the current
// proposal's cache.
func (s *Store) ClearEphemeral() {
	s.ephemeralMu.Lock()
	defer s.ephemeralMu.Unlock()
	s.ephemeral = make(map[string][]byte)
}

// NewDelta opens a speculative overlay on top of the store's latest
// committed state. Writes accumulate in the delta until Commit is called;
// they are invisible to other readers until then.
func (s *Store) NewDelta() *StateDelta {
	return newDelta(s, nil)
}

// Commit applies a delta's writes to the verifiable and nonverifiable
// partitions and advances the IAVL tree to a new version, returning the
// new app hash.
func (s *Store) Commit(delta *StateDelta) ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, change := range delta.verifiableWrites {
		if change.deleted {
			if _, _, err := s.tree.Remove(verifiableKey(key)); err != nil {
				return nil, 0, fmt.Errorf("removing %q: %w", key, err)
			}
			continue
		}
		if _, err := s.tree.Set(verifiableKey(key), change.value); err != nil {
			return nil, 0, fmt.Errorf("setting %q: %w", key, err)
		}
	}

	batch := s.nonverifiable.NewBatch()
	defer batch.Close()
	for key, change := range delta.nonverifiableWrites {
		if change.deleted {
			if err := batch.Delete(nonverifiableKey(key)); err != nil {
				return nil, 0, fmt.Errorf("deleting %q: %w", key, err)
			}
			continue
		}
		if err := batch.Set(nonverifiableKey(key), change.value); err != nil {
			return nil, 0, fmt.Errorf("writing %q: %w", key, err)
		}
	}
	if err := batch.Write(); err != nil {
		return nil, 0, fmt.Errorf("flushing nonverifiable batch: %w", err)
	}

	hash, version, err := s.tree.SaveVersion()
	if err != nil {
		return nil, 0, fmt.Errorf("saving version: %w", err)
	}
	return hash, version, nil
}

// Close releases the underlying Badger handles.
func (s *Store) Close() error {
	if err := s.nonverifiable.Close(); err != nil {
		return err
	}
	return nil
}
