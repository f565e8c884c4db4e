package testsupport

import (
	"testing"

	"newscastd/internal/artifact"
	"newscastd/internal/config"
	"newscastd/internal/state"
)

// MustOpenState opens a state.Store for tests and registers cleanup.
func MustOpenState(t testing.TB, cfg *config.Config) *state.Store {
	t.Helper()

	store, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenArtifacts opens an artifact.Store rooted under the test data dir.
func MustOpenArtifacts(t testing.TB, cfg *config.Config) *artifact.Store {
	t.Helper()

	store, err := artifact.NewStore(cfg)
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}
	return store
}
