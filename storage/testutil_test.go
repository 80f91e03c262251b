package storage

import (
	"testing"

	"chatrelay/bus"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := Open(dataDir)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return store
}

func mustAppend(t *testing.T, store *Store, env bus.Envelope) {
	t.Helper()

	if env.Type == "" {
		env.Type = bus.TypeText
	}
	if err := store.AppendEnvelope(env); err != nil {
		t.Fatalf("append envelope %q: %v", env.ID, err)
	}
}
