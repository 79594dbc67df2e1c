package records

import (
	"encoding/json"

	"github.com/2beens/fittrack/pkg"
)

func encodeCollection[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return pkg.BytesToString(b), nil
}

func decodeCollection[T any](payload string) ([]T, error) {
	var items []T
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func encodeDocument[T any](v T) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return pkg.BytesToString(b), nil
}

func decodeDocument[T any](payload string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(payload), &v)
	return v, err
}
