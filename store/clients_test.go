package store

import "testing"

func TestMemoryClientRegistryStoreLoadDelete(t *testing.T) {
	r := NewMemoryClientRegistry()
	state := SessionState{ClientID: "c1", SessionExpiry: 3600}
	r.Store(state)

	got, ok := r.Load("c1")
	if !ok || got.ClientID != "c1" {
		t.Fatalf("Load() = %v, %v, want the stored session", got, ok)
	}

	r.Delete("c1")
	if _, ok := r.Load("c1"); ok {
		t.Fatal("Load() after Delete should miss")
	}
}

func TestMemoryClientRegistryClientIDs(t *testing.T) {
	r := NewMemoryClientRegistry()
	r.Store(SessionState{ClientID: "c1"})
	r.Store(SessionState{ClientID: "c2"})

	ids := r.ClientIDs()
	if len(ids) != 2 {
		t.Fatalf("ClientIDs() = %v, want 2 entries", ids)
	}
}
