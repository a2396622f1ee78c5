package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/platform/logger"
)

// NewSQLite opens a sqlite database at path, migrates and seeds it. Used for
// local development without a Postgres instance; tests point it at a
// throwaway file.
func NewSQLite(path string, log *logger.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		if log != nil {
			log.Error("Failed to open sqlite database", "path", path, "error", err)
		}
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	if err := Seed(gdb); err != nil {
		return nil, fmt.Errorf("sqlite seed: %w", err)
	}
	return gdb, nil
}
