package models

import (
	"time"

	"github.com/google/uuid"
)

// Application stages, in pipeline order. Transitions are monotonic forward
// except for administrative override and applicant withdrawal.
const (
	StageNotStarted      = "not_started"
	StageDraft           = "draft"
	StageSubmitted       = "submitted"
	StageUnderReview     = "under_review"
	StageInterviewRound1 = "interview_round1"
	StageInterviewRound2 = "interview_round2"
	StageAccepted        = "accepted"
	StageRejected        = "rejected"
	StageWithdrawn       = "withdrawn"
)

// Applicant tracks. Chosen once at draft start and immutable thereafter.
const (
	TrackBusiness    = "business"
	TrackEngineering = "engineering"
)

// Application is one applicant's record within a cycle. Answers and Files
// are schema-agnostic key→value maps serialized as JSON; the question
// schema validates them at submit time, not at storage time.
type Application struct {
	ID          uuid.UUID `gorm:"type:char(36);primaryKey"`
	CycleID     uuid.UUID `gorm:"type:char(36);uniqueIndex:uniq_cycle_applicant;not null"`
	Email       string    `gorm:"size:255;uniqueIndex:uniq_cycle_applicant;not null"`
	Track       string    `gorm:"size:16;not null"`
	Stage       string    `gorm:"size:24;default:not_started;index"`
	Answers     string    `gorm:"type:text"`
	Files       string    `gorm:"type:text"`
	SubmittedAt *time.Time
	WithdrawnAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PhaseReview is one reviewer's scores and notes for one applicant in one
// phase. Unique per (cycle, phase, applicant, reviewer); resubmission by
// the same reviewer replaces the prior review.
type PhaseReview struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	CycleID       uuid.UUID `gorm:"type:char(36);uniqueIndex:uniq_review;not null"`
	Phase         string    `gorm:"size:32;uniqueIndex:uniq_review;not null"`
	ApplicationID uuid.UUID `gorm:"type:char(36);uniqueIndex:uniq_review;index;not null"`
	ReviewerEmail string    `gorm:"size:255;uniqueIndex:uniq_review;not null"`
	Score         float64   `gorm:"not null"`
	Category      string    `gorm:"size:32"`
	Notes         string    `gorm:"type:text"`
	CompletedAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
