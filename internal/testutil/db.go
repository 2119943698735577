// Package testutil holds helpers shared by store, router and handler tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/psds-microservice/support-relay/internal/config"
	"github.com/psds-microservice/support-relay/internal/database"
	"gorm.io/gorm"
)

// NewDB returns a migrated sqlite database in the test's temp dir.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(context.Background(), sqlDB, config.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
