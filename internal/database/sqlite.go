package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/unihubs/campushub/backend/internal/board"
	"github.com/unihubs/campushub/backend/internal/hubs"
	"github.com/unihubs/campushub/backend/internal/maillink"
	"github.com/unihubs/campushub/backend/internal/profiles"
	"github.com/unihubs/campushub/backend/internal/signup"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&profiles.UserProfile{},
		&hubs.Hub{},
		&hubs.Membership{},
		&board.Post{},
		&board.Comment{},
		&signup.Stash{},
		&maillink.SignInLink{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
