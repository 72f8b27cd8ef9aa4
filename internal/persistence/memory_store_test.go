package persistence

import (
	"context"
	"testing"
)

func TestInMemoryStore_Contract(t *testing.T) {
	runStateStoreContract(t, NewInMemoryStore())
}

func TestInMemoryStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	buf := []byte("abc")
	if err := store.Save(ctx, "k", buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	buf[0] = 'x'

	got, err := store.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("stored value changed through caller slice: %q", got)
	}

	got[1] = 'y'
	again, _ := store.Load(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value changed through returned slice: %q", again)
	}
}
