package orm

import (
	"testing"

	"github.com/iov-one/issuance/store"
)

func TestSequenceIncrements(t *testing.T) {
	db := store.MemStore()
	s := NewSequence("test", "seq")

	for i := int64(1); i < 10; i++ {
		val, err := s.NextInt(db)
		if err != nil {
			t.Fatalf("cannot acquire next value: %s", err)
		}
		if val != i {
			t.Fatalf("want %d, got %d", i, val)
		}
	}
}

func TestSequenceStatePersists(t *testing.T) {
	db := store.MemStore()

	a := NewSequence("test", "seq")
	if _, err := a.NextInt(db); err != nil {
		t.Fatalf("cannot acquire next value: %s", err)
	}

	// a fresh instance over the same store continues the series
	b := NewSequence("test", "seq")
	val, err := b.NextInt(db)
	if err != nil {
		t.Fatalf("cannot acquire next value: %s", err)
	}
	if val != 2 {
		t.Fatalf("want 2, got %d", val)
	}
}

func TestSequencesAreIndependent(t *testing.T) {
	db := store.MemStore()
	a := NewSequence("test", "a")
	b := NewSequence("test", "b")

	if _, err := a.NextInt(db); err != nil {
		t.Fatalf("cannot acquire next value: %s", err)
	}
	val, err := b.NextInt(db)
	if err != nil {
		t.Fatalf("cannot acquire next value: %s", err)
	}
	if val != 1 {
		t.Fatalf("sequences must not share state, got %d", val)
	}
}
