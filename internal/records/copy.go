package records

import (
	"context"
	"fmt"

	"github.com/2beens/fittrack/internal/kvstore"
)

// CopyCollection decodes the collection under key in from and writes it,
// re-encoded, to the same key in to. It returns the number of records copied.
func CopyCollection[T Record](ctx context.Context, from, to kvstore.Store, key string) (int, error) {
	payload, err := from.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read [%s]: %w", key, err)
	}

	items, err := decodeCollection[T](payload)
	if err != nil {
		return 0, &DecodeError{Key: key, Err: err}
	}

	encoded, err := encodeCollection(items)
	if err != nil {
		return 0, &WriteError{Key: key, Err: fmt.Errorf("encode: %w", err)}
	}
	if err := to.Set(ctx, key, encoded); err != nil {
		return 0, &WriteError{Key: key, Err: err}
	}
	return len(items), nil
}

func CopyDocument[T any](ctx context.Context, from, to kvstore.Store, key string) error {
	payload, err := from.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read [%s]: %w", key, err)
	}

	v, err := decodeDocument[T](payload)
	if err != nil {
		return &DecodeError{Key: key, Err: err}
	}

	encoded, err := encodeDocument(v)
	if err != nil {
		return &WriteError{Key: key, Err: fmt.Errorf("encode: %w", err)}
	}
	if err := to.Set(ctx, key, encoded); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}
