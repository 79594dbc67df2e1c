package records

import (
	"context"
	"sync"
)

const keySeparator = "||"

type Loader interface {
	Load(ctx context.Context) error
}

// CollectionKey returns the persistence key of a collection. Unpartitioned
// collections share one key for every owner.
func CollectionKey(baseKey, owner string, partition bool) string {
	if !partition || owner == "" {
		return baseKey
	}
	return baseKey + keySeparator + owner
}

// Registry opens one store per collection key and keeps it in memory once
// loaded.
type Registry[S Loader] struct {
	baseKey   string
	partition bool
	open      func(key string) S

	mutex  sync.Mutex
	stores map[string]S
}

func NewRegistry[S Loader](baseKey string, partition bool, open func(key string) S) *Registry[S] {
	return &Registry[S]{
		baseKey:   baseKey,
		partition: partition,
		open:      open,
		stores:    make(map[string]S),
	}
}

// Open returns the loaded store for owner. The first open of a key with a
// malformed payload returns the (empty) store together with the
// *DecodeError. A read failure is returned without caching, so the next
// call retries.
func (r *Registry[S]) Open(ctx context.Context, owner string) (S, error) {
	key := CollectionKey(r.baseKey, owner, r.partition)

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if s, ok := r.stores[key]; ok {
		return s, nil
	}

	s := r.open(key)
	if err := s.Load(ctx); err != nil {
		if IsDecodeError(err) {
			r.stores[key] = s
			return s, err
		}
		var zero S
		return zero, err
	}

	r.stores[key] = s
	return s, nil
}

func (r *Registry[S]) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.stores)
}
