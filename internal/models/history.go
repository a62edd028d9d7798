package models

import (
	"time"

	"gorm.io/gorm"
)

type ActuationStatus string

const (
	StatusStarted   ActuationStatus = "started"
	StatusCompleted ActuationStatus = "completed"
	StatusFailed    ActuationStatus = "failed"
)

// Actuation sources.
const (
	SourceAutomation = "automation"
	SourceDashboard  = "dashboard"
	SourceBoard      = "board"
)

// ActuationHistory is one row of the actuation journal: a watering cycle,
// a curtain move, or a manual command.
type ActuationHistory struct {
	gorm.Model
	CycleID     string          `gorm:"type:varchar(36);index;not null"`
	Actuator    Actuator        `gorm:"type:varchar(20);not null"`
	Command     string          `gorm:"type:varchar(40);not null"`
	Source      string          `gorm:"type:varchar(20);not null"`
	Status      ActuationStatus `gorm:"type:varchar(20);not null"`
	StartedAt   time.Time       `gorm:"not null"`
	EndedAt     *time.Time
	DurationSec float64
	VolumeL     float64
	SoilPct     float64
	VPD         float64
	Notes       string
}

func (ActuationHistory) TableName() string {
	return "actuation_history"
}
