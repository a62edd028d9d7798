// Package history journals actuations to postgres.
package history

import (
	"fmt"
	"log"
	"time"

	"github.com/prite36/smartfarm-controller/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Repository struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the history schema.
func Open(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewRepository(db)
}

func NewRepository(db *gorm.DB) (*Repository, error) {
	log.Println("[history] Auto-migrating database schema...")
	if err := db.AutoMigrate(&models.ActuationHistory{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Record inserts one journal row.
func (r *Repository) Record(entry *models.ActuationHistory) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save %s history: %w", entry.Actuator, err)
	}
	return nil
}

// Recent returns the newest rows first.
func (r *Repository) Recent(limit int) ([]models.ActuationHistory, error) {
	var rows []models.ActuationHistory
	err := r.db.Order("started_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// WateringSince sums the automatic watering cycles completed since t.
func (r *Repository) WateringSince(t time.Time) (count int64, volumeL float64, err error) {
	cycles := func(db *gorm.DB) *gorm.DB {
		return db.Model(&models.ActuationHistory{}).
			Where("actuator = ? AND status = ? AND source = ?", models.ActuatorValve, models.StatusCompleted, models.SourceAutomation).
			Where("started_at >= ?", t)
	}
	if err = r.db.Scopes(cycles).Count(&count).Error; err != nil {
		return 0, 0, err
	}
	err = r.db.Scopes(cycles).Select("COALESCE(SUM(volume_l), 0)").Scan(&volumeL).Error
	return count, volumeL, err
}

// Close releases the underlying connection pool.
func (r *Repository) Close() {
	if sqlDB, err := r.db.DB(); err == nil {
		sqlDB.Close()
	}
}
