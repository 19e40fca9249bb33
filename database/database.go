// Package database opens the Postgres connection and keeps the schema
// migrated.
package database

import (
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"weathernotify.app/config"
	"weathernotify.app/errors"
	"weathernotify.app/models"
)

// InitDB opens the gorm connection described by the config.
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{})
	if err != nil {
		return nil, errors.NewDatabaseError("failed to open database connection", err)
	}

	slog.Info("database connection established", "host", cfg.Host, "database", cfg.Name)
	return db, nil
}

// RunMigrations brings the schema up to date for every persisted model.
func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Subscription{},
		&models.EmailLog{},
	)
	if err != nil {
		return errors.NewDatabaseError("failed to run migrations", err)
	}

	slog.Info("database migrations applied")
	return nil
}

// CloseDB closes the underlying connection pool.
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
