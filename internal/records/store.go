package records

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/2beens/fittrack/internal/kvstore"
)

type Record interface {
	RecordID() string
}

// cloner is implemented by records holding slices or pointers.
type cloner[T any] interface {
	Clone() T
}

func cloneRecord[T any](rec T) T {
	if c, ok := any(rec).(cloner[T]); ok {
		return c.Clone()
	}
	return rec
}

// Store owns the in-memory, insertion-ordered collection persisted under one
// key. Every mutation writes the whole collection exactly once.
type Store[T Record] struct {
	kv  kvstore.Store
	key string

	mutex  sync.RWMutex
	items  []T
	loaded bool
}

func NewStore[T Record](kv kvstore.Store, key string) *Store[T] {
	return &Store[T]{
		kv:  kv,
		key: key,
	}
}

func (s *Store[T]) Key() string {
	return s.key
}

func (s *Store[T]) Loaded() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.loaded
}

// Load reads the collection. A missing key yields an empty collection. A
// malformed payload also yields an empty collection, plus a *DecodeError.
func (s *Store[T]) Load(ctx context.Context) error {
	payload, err := s.kv.Get(ctx, s.key)
	if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		return fmt.Errorf("load [%s]: %w", s.key, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.loaded = true
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		s.items = nil
		return nil
	}

	items, err := decodeCollection[T](payload)
	if err != nil {
		s.items = nil
		return &DecodeError{Key: s.key, Err: err}
	}
	s.items = items
	return nil
}

func (s *Store[T]) Add(ctx context.Context, rec T) error {
	id := rec.RecordID()
	if id == "" {
		return ErrEmptyID
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.loaded {
		return ErrNotLoaded
	}
	if s.indexOf(id) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	s.items = append(s.items, cloneRecord(rec))
	return s.persist(ctx)
}

// Remove drops the record with the given id. An unknown id is not an error;
// the (unchanged) collection is still written.
func (s *Store[T]) Remove(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.loaded {
		return ErrNotLoaded
	}

	kept := make([]T, 0, len(s.items))
	for _, item := range s.items {
		if item.RecordID() != id {
			kept = append(kept, item)
		}
	}
	s.items = kept
	return s.persist(ctx)
}

// Update applies patch to the record with the given id. The id itself cannot
// be changed by the patch.
func (s *Store[T]) Update(ctx context.Context, id string, patch func(*T)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.loaded {
		return ErrNotLoaded
	}

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	updated := cloneRecord(s.items[i])
	patch(&updated)
	if updated.RecordID() != id {
		return fmt.Errorf("update [%s]: record id cannot change", id)
	}
	s.items[i] = updated
	return s.persist(ctx)
}

func (s *Store[T]) List() []T {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]T, len(s.items))
	for i, item := range s.items {
		out[i] = cloneRecord(item)
	}
	return out
}

func (s *Store[T]) Get(id string) (T, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return cloneRecord(s.items[i]), true
	}
	var zero T
	return zero, false
}

func (s *Store[T]) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.items)
}

func (s *Store[T]) indexOf(id string) int {
	for i, item := range s.items {
		if item.RecordID() == id {
			return i
		}
	}
	return -1
}

// persist must be called with the write lock held.
func (s *Store[T]) persist(ctx context.Context) error {
	payload, err := encodeCollection(s.items)
	if err != nil {
		return &WriteError{Key: s.key, Err: fmt.Errorf("encode: %w", err)}
	}
	if err := s.kv.Set(ctx, s.key, payload); err != nil {
		return &WriteError{Key: s.key, Err: err}
	}
	return nil
}
