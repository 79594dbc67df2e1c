package records

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/2beens/fittrack/internal/kvstore"
)

// Document is a singleton record persisted under one key, e.g. the profile.
type Document[T any] struct {
	kv  kvstore.Store
	key string

	mutex  sync.RWMutex
	value  T
	loaded bool
}

func NewDocument[T any](kv kvstore.Store, key string) *Document[T] {
	return &Document[T]{
		kv:  kv,
		key: key,
	}
}

func (d *Document[T]) Key() string {
	return d.key
}

// Load reads the document; absent or malformed payloads yield the zero value
// (the latter with a *DecodeError).
func (d *Document[T]) Load(ctx context.Context) error {
	payload, err := d.kv.Get(ctx, d.key)
	if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		return fmt.Errorf("load [%s]: %w", d.key, err)
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	var zero T
	d.loaded = true
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		d.value = zero
		return nil
	}

	v, err := decodeDocument[T](payload)
	if err != nil {
		d.value = zero
		return &DecodeError{Key: d.key, Err: err}
	}
	d.value = v
	return nil
}

func (d *Document[T]) Get() T {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.value
}

func (d *Document[T]) Save(ctx context.Context, v T) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.value = v
	d.loaded = true

	payload, err := encodeDocument(v)
	if err != nil {
		return &WriteError{Key: d.key, Err: fmt.Errorf("encode: %w", err)}
	}
	if err := d.kv.Set(ctx, d.key, payload); err != nil {
		return &WriteError{Key: d.key, Err: err}
	}
	return nil
}
