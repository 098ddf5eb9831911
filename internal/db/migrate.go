package db

import (
	"fmt"

	"github.com/gatehouse/gatehouse/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.RecruitmentCycle{},
		&models.PhaseConfig{},
		&models.Application{},
		&models.PhaseReview{},
		&models.RankingGeneration{},
		&models.RankedApplicant{},
		&models.CutoffDecision{},
		&models.RecruitmentSlot{},
		&models.SlotBooking{},
		&models.RecruitmentEvent{},
		&models.EventRsvp{},
		&models.Notification{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
