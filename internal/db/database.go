package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tally-claim/internal/metrics"
	"tally-claim/internal/models"
)

// InitDB opens the claim audit database and migrates its schema.
func InitDB(dsn string, log *logrus.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	database, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// one run writes one row
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetConnMaxLifetime(time.Minute)

	if err := database.AutoMigrate(&models.ClaimRecord{}); err != nil {
		metrics.DBConnectionStatus.Set(0)
		return nil, fmt.Errorf("AutoMigrate failed: %w", err)
	}

	metrics.DBConnectionStatus.Set(1)
	log.Info("✅ [Database] Claim audit database connected")
	return database, nil
}

// Close releases the underlying connection pool.
func Close(database *gorm.DB) {
	if database == nil {
		return
	}
	if sqlDB, err := database.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
