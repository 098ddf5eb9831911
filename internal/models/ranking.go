package models

import (
	"time"

	"github.com/google/uuid"
)

// RankingGeneration stamps one run of the ranking engine for a (cycle,
// phase). Regeneration writes a new generation and deletes the prior one
// wholesale, so repeated runs with identical inputs are idempotent.
type RankingGeneration struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	CycleID     uuid.UUID `gorm:"type:char(36);uniqueIndex:uniq_gen;not null"`
	Phase       string    `gorm:"size:32;uniqueIndex:uniq_gen;not null"`
	GeneratedAt time.Time `gorm:"not null"`
	ReviewCount int

	Entries []RankedApplicant `gorm:"foreignKey:GenerationID;constraint:OnDelete:CASCADE"`
}

// RankedApplicant is one row of a generated ranking: aggregate score,
// position, and the tie-break key the position was derived from.
// Applicants with zero reviews carry Unscored=true and sort last.
type RankedApplicant struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	GenerationID  uint      `gorm:"index;not null"`
	ApplicationID uuid.UUID `gorm:"type:char(36);index;not null"`
	Email         string    `gorm:"size:255;not null"`
	Track         string    `gorm:"size:16;index;not null"`
	Score         float64
	Unscored      bool `gorm:"default:false"`
	Rank          int  `gorm:"not null"`
	TieBreak      string
	ReviewCount   int
}

// CutoffDecision is the audit record for one applicant's outcome of a
// cutoff application: what the criteria computed, whether a manual
// override replaced it, and why.
type CutoffDecision struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	CycleID        uuid.UUID `gorm:"type:char(36);index;not null"`
	Phase          string    `gorm:"size:32;index;not null"`
	ApplicationID  uuid.UUID `gorm:"type:char(36);index;not null"`
	Action         string    `gorm:"size:16;not null"` // advance or reject
	Overridden     bool      `gorm:"default:false"`
	OverrideReason string    `gorm:"type:text"`
	FromStage      string    `gorm:"size:24"`
	ToStage        string    `gorm:"size:24"`
	DecidedBy      string    `gorm:"size:255"`
	CreatedAt      time.Time
}

// Cutoff actions.
const (
	ActionAdvance = "advance"
	ActionReject  = "reject"
)
