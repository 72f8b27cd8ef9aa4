package persistence

import (
	"context"
	"errors"
	"testing"
)

type viewportRecord struct {
	X, Y, Zoom float64
}

func TestEncodeDecodeValue(t *testing.T) {
	data, err := EncodeValue(viewportRecord{X: 1, Y: -2, Zoom: 1.5})
	if err != nil {
		t.Fatalf("EncodeValue failed: %v", err)
	}
	got, err := DecodeValue[viewportRecord](data)
	if err != nil {
		t.Fatalf("DecodeValue failed: %v", err)
	}
	if got != (viewportRecord{X: 1, Y: -2, Zoom: 1.5}) {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestDecodeValue_EmptyIsZero(t *testing.T) {
	got, err := DecodeValue[map[string]bool](nil)
	if err != nil {
		t.Fatalf("DecodeValue failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil map, got %v", got)
	}
}

func TestDecodeValue_CorruptData(t *testing.T) {
	if _, err := DecodeValue[map[string]bool]([]byte("not gob")); err == nil {
		t.Fatalf("expected error decoding garbage")
	}
}

func TestLoadValue_Missing(t *testing.T) {
	_, err := LoadValue[viewportRecord](context.Background(), NewInMemoryStore(), "viewport:none")
	if !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}
}
