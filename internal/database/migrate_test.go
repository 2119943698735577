package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/psds-microservice/support-relay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSQLiteIsIdempotent(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = config.DriverSQLite
	cfg.DB.Path = filepath.Join(t.TempDir(), "relay.db")
	ctx := context.Background()

	require.NoError(t, MigrateUp(ctx, cfg))
	require.NoError(t, MigrateUp(ctx, cfg))

	db, err := Open(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.True(t, db.Migrator().HasTable("support_targets"))
	assert.True(t, db.Migrator().HasTable("tickets"))
}

func TestMigrateRejectsUnknownDriver(t *testing.T) {
	err := Migrate(context.Background(), nil, "mysql")
	require.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = "oracle"
	_, err := Open(cfg)
	require.Error(t, err)
}
