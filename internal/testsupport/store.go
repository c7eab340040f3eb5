package testsupport

import (
	"context"
	"testing"

	"longrec/internal/config"
	"longrec/internal/durationcache"
	"longrec/internal/logging"
)

// MustOpenCache opens the duration cache of cfg for tests and registers
// cleanup.
func MustOpenCache(t testing.TB, cfg *config.Config) *durationcache.Store {
	t.Helper()

	store, err := durationcache.Open(context.Background(), cfg.DurationCachePath(), logging.NewNop())
	if err != nil {
		t.Fatalf("durationcache.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
