package db

import (
	"github.com/glebarez/sqlite"
	"github.com/pysugar/antigravity-nexus/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the pool database and runs migrations. The logger stays on
// Warn so decrypted secrets never end up in SQL trace output.
func InitDB(dbPath string) (*gorm.DB, error) {
	database, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := database.AutoMigrate(&models.Account{}); err != nil {
		return nil, err
	}

	return database, nil
}
