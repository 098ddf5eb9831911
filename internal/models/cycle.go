// Package models defines the GORM models for the Gatehouse recruitment core.
package models

import (
	"time"

	"github.com/google/uuid"
)

// RecruitmentCycle is one recruitment season. At most one cycle is active
// at any time; activation is an atomic swap handled by the cycle registry.
type RecruitmentCycle struct {
	ID               uuid.UUID `gorm:"type:char(36);primaryKey"`
	Name             string    `gorm:"not null"`
	Slug             string    `gorm:"size:64;uniqueIndex;not null"`
	PortalOpenAt     time.Time `gorm:"not null"`
	ApplicationDueAt time.Time `gorm:"not null"`
	PortalCloseAt    time.Time `gorm:"not null"`
	IsActive         bool      `gorm:"default:false;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PhaseConfig holds per-phase settings for a cycle. Once Status is
// "finalized" no reviews, rankings, or cutoffs may mutate that phase.
type PhaseConfig struct {
	ID                uint      `gorm:"primaryKey;autoIncrement"`
	CycleID           uuid.UUID `gorm:"type:char(36);uniqueIndex:uniq_cycle_phase;not null"`
	Phase             string    `gorm:"size:32;uniqueIndex:uniq_cycle_phase;not null"`
	Status            string    `gorm:"size:16;default:open"`
	RequiredReviewers int       `gorm:"default:2"`
	FinalizedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Phase identifiers. Each phase reviews applicants at its eligible stages
// and advances them to the next stage on cutoff.
const (
	PhaseApplication     = "application"
	PhaseInterviewRound1 = "interview_round1"
	PhaseInterviewRound2 = "interview_round2"
)

// PhaseConfig statuses.
const (
	PhaseOpen      = "open"
	PhaseFinalized = "finalized"
)
