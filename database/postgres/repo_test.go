package postgres_test

import (
	"testing"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/database/internal/catalogtest"
)

func TestRepo_Catalog(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	catalogtest.Run(t, func(t *testing.T) storagegate.Catalog {
		return setupTestRepo(t)
	})
}
