package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
)

// EncodeValue serializes v with encoding/gob. Values are encoded as their
// concrete type, so DecodeValue must be called with the same T.
func EncodeValue[T any](v T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("gob encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// DecodeValue is the inverse of EncodeValue. Empty input yields the zero
// value of T.
func DecodeValue[T any](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		var zero T
		return zero, fmt.Errorf("gob decode %T: %w", zero, err)
	}
	return v, nil
}

// SaveValue encodes v and stores it under key.
func SaveValue[T any](ctx context.Context, s StateStore, key string, v T) error {
	data, err := EncodeValue(v)
	if err != nil {
		return err
	}
	return s.Save(ctx, key, data)
}

// LoadValue loads and decodes the value under key. A missing key returns
// ErrStateNotFound; a value that cannot be decoded returns the decode error.
func LoadValue[T any](ctx context.Context, s StateStore, key string) (T, error) {
	var zero T
	data, err := s.Load(ctx, key)
	if err != nil {
		return zero, err
	}
	return DecodeValue[T](data)
}
