package testsupport

import (
	"testing"

	"reconform/internal/config"
	"reconform/internal/tracking"
)

// MustOpenStore opens a tracking.Store for tests and registers
// cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *tracking.Store {
	t.Helper()

	store, err := tracking.OpenPath(cfg.Paths.DatabasePath)
	if err != nil {
		t.Fatalf("tracking.OpenPath: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
