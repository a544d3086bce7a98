package sqlite_test

import (
	"testing"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/database/internal/catalogtest"
)

func TestRepo_Catalog(t *testing.T) {
	catalogtest.Run(t, func(t *testing.T) storagegate.Catalog {
		return setupTestRepo(t)
	})
}
