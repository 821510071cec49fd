package store

import (
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
)

var ErrKeyNotFound = errors.New("key not found")

// Store is the persistent key/value backbone. Every mutating operation runs
// through Update, which admits one writer at a time and commits its staged
// writes as a single pebble batch: either the whole operation lands or none
// of it does.
type Store struct {
	db *pebble.DB
	mu sync.Mutex
}

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get reads committed state.
func (s *Store) Get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}

	out := append([]byte(nil), value...)
	_ = closer.Close()

	return out, nil
}

func (s *Store) Has(key []byte) (bool, error) {
	if _, err := s.Get(key); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// Update runs fn against a staged batch. If fn returns an error the batch is
// discarded and nothing is applied; otherwise the batch commits durably.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewIndexedBatch()
	defer batch.Close()

	if err := fn(&Tx{batch: batch}); err != nil {
		return err
	}

	return batch.Commit(pebble.Sync)
}

// IteratePrefix walks committed keys under prefix in order. fn returns false
// to stop early.
func (s *Store) IteratePrefix(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)

		next, err := fn(key, value)
		if err != nil {
			return err
		}
		if !next {
			return nil
		}
	}

	return iter.Error()
}

// Tx is the staged view used inside Update. Reads see committed state plus
// the tx's own writes.
type Tx struct {
	batch *pebble.Batch
}

func (t *Tx) Get(key []byte) ([]byte, error) {
	value, closer, err := t.batch.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}

	out := append([]byte(nil), value...)
	_ = closer.Close()

	return out, nil
}

func (t *Tx) Has(key []byte) (bool, error) {
	if _, err := t.Get(key); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (t *Tx) Set(key, value []byte) error {
	return t.batch.Set(key, value, nil)
}

func (t *Tx) Delete(key []byte) error {
	return t.batch.Delete(key, nil)
}

func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}

	return nil
}
