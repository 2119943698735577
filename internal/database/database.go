package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/psds-microservice/support-relay/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open открывает gorm-подключение к postgres или sqlite (DB_DRIVER).
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DB.Path)
	default:
		return nil, fmt.Errorf("database: unknown driver %q", cfg.DB.Driver)
	}
	return open(dialector, cfg.DB.Driver == config.DriverSQLite)
}

// OpenSQLite opens a sqlite file directly; used by tests and single-node setups.
func OpenSQLite(path string) (*gorm.DB, error) {
	return open(sqlite.Open(path), true)
}

func open(dialector gorm.Dialector, single bool) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if single {
		// sqlite: один писатель, иначе "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
