package repo_test

import (
	"testing"

	"github.com/hamed0406/stockwatch/internal/repo"
	"github.com/hamed0406/stockwatch/internal/repo/memory"
	pg "github.com/hamed0406/stockwatch/internal/repo/postgres"
	"github.com/hamed0406/stockwatch/internal/repo/sqlite"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.BlobStore = memory.New()
	var _ repo.BlobStore = (*sqlite.Store)(nil)
	var _ repo.BlobStore = (*pg.Store)(nil)
}
