package kvstore

import (
	"context"
	"errors"
)

//go:generate mockgen -source=$GOFILE -destination=kvstoremock/store.go -package=kvstoremock

var ErrKeyNotFound = errors.New("key not found")

// Store is the string key-value persistence contract every record collection
// is written through. Get returns ErrKeyNotFound for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Lister is implemented by backends able to enumerate their keys. Used by
// the migration tool.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}
