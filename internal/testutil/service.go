package testutil

import (
	"testing"

	"chatvault/internal/archive"
	"chatvault/internal/guildconfig"
)

// NewTestService creates an archive service over a temporary directory with
// an in-memory guild store and the fixed clock. It returns the service, its
// store and its archive root.
func NewTestService(t *testing.T) (*archive.Service, *guildconfig.MemoryStore, string) {
	t.Helper()

	root := t.TempDir()
	store := guildconfig.NewMemoryStore()
	svc, err := archive.NewService(root, store, archive.NewNopLogger(), FixedClock())
	if err != nil {
		t.Fatalf("failed to create archive service: %v", err)
	}
	return svc, store, root
}
