package testsupport

import (
	"testing"

	"vid2deck/internal/catalog"
	"vid2deck/internal/config"
)

// MustOpenCatalog opens the catalog configured by cfg and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
