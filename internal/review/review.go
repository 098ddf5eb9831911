// Package review collects per-reviewer scores per phase and computes
// phase completeness against the required-reviewer threshold.
package review

import (
	"errors"
	"fmt"
	"time"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EligibleStages returns the application stages a phase reviews.
func EligibleStages(phase string) []string {
	switch phase {
	case models.PhaseApplication:
		return []string{models.StageSubmitted, models.StageUnderReview}
	case models.PhaseInterviewRound1:
		return []string{models.StageInterviewRound1}
	case models.PhaseInterviewRound2:
		return []string{models.StageInterviewRound2}
	}
	return nil
}

// NextStage returns the stage an applicant advances to when passing a
// phase's cutoff.
func NextStage(phase string) (string, error) {
	switch phase {
	case models.PhaseApplication:
		return models.StageInterviewRound1, nil
	case models.PhaseInterviewRound1:
		return models.StageInterviewRound2, nil
	case models.PhaseInterviewRound2:
		return models.StageAccepted, nil
	}
	return "", apperr.Validation("phase", "%q is not a known phase", phase)
}

// EnsurePhase returns the phase config for (cycle, phase), creating an
// open one with the default reviewer threshold if absent.
func EnsurePhase(db *gorm.DB, cycleID uuid.UUID, phase string) (*models.PhaseConfig, error) {
	if EligibleStages(phase) == nil {
		return nil, apperr.Validation("phase", "%q is not a known phase", phase)
	}
	var pc models.PhaseConfig
	err := db.Where("cycle_id = ? AND phase = ?", cycleID, phase).First(&pc).Error
	if err == nil {
		return &pc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("review: load phase config: %w", err)
	}
	pc = models.PhaseConfig{CycleID: cycleID, Phase: phase, Status: models.PhaseOpen, RequiredReviewers: 2}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&pc).Error; err != nil {
		return nil, fmt.Errorf("review: create phase config: %w", err)
	}
	// Re-read in case a concurrent create won.
	if err := db.Where("cycle_id = ? AND phase = ?", cycleID, phase).First(&pc).Error; err != nil {
		return nil, fmt.Errorf("review: reload phase config: %w", err)
	}
	return &pc, nil
}

// SetRequiredReviewers updates a phase's reviewer threshold.
func SetRequiredReviewers(db *gorm.DB, cycleID uuid.UUID, phase string, n int) error {
	if n < 1 {
		return apperr.Validation("required_reviewers", "must be >= 1")
	}
	pc, err := EnsurePhase(db, cycleID, phase)
	if err != nil {
		return err
	}
	if pc.Status == models.PhaseFinalized {
		return apperr.Conflict(apperr.ReasonPhaseFinalized, "phase %s is finalized", phase)
	}
	if err := db.Model(pc).Update("required_reviewers", n).Error; err != nil {
		return fmt.Errorf("review: set required reviewers: %w", err)
	}
	return nil
}

// Reopen unlocks a finalized phase. Rare administrative action, not part
// of the normal flow.
func Reopen(db *gorm.DB, cycleID uuid.UUID, phase string) error {
	pc, err := EnsurePhase(db, cycleID, phase)
	if err != nil {
		return err
	}
	if pc.Status != models.PhaseFinalized {
		return nil
	}
	if err := db.Model(pc).Updates(map[string]interface{}{
		"status":       models.PhaseOpen,
		"finalized_at": nil,
	}).Error; err != nil {
		return fmt.Errorf("review: reopen phase: %w", err)
	}
	return nil
}

// RecordOpts holds one reviewer's scores for one applicant in one phase.
type RecordOpts struct {
	CycleID       uuid.UUID
	Phase         string
	ApplicationID uuid.UUID
	ReviewerEmail string
	Score         float64
	Category      string
	Notes         string
}

// Record upserts a review keyed by (cycle, phase, applicant, reviewer).
// Resubmission by the same reviewer replaces their prior review. Fails
// with "phase locked" against a finalized phase and rejects applicants
// whose stage the phase does not review.
func Record(db *gorm.DB, opts RecordOpts) (*models.PhaseReview, error) {
	if opts.ReviewerEmail == "" {
		return nil, apperr.Validation("reviewer", "is required")
	}
	pc, err := EnsurePhase(db, opts.CycleID, opts.Phase)
	if err != nil {
		return nil, err
	}
	if pc.Status == models.PhaseFinalized {
		return nil, apperr.Conflict(apperr.ReasonPhaseFinalized,
			"phase %s is locked, no further reviews accepted", opts.Phase)
	}

	var app models.Application
	if err := db.Where("id = ? AND cycle_id = ?", opts.ApplicationID, opts.CycleID).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("review: application not found: %s", opts.ApplicationID)
		}
		return nil, fmt.Errorf("review: load application: %w", err)
	}
	eligible := false
	for _, s := range EligibleStages(opts.Phase) {
		if app.Stage == s {
			eligible = true
			break
		}
	}
	if !eligible {
		return nil, apperr.Conflict(apperr.ReasonWrongStage,
			"application is %s, not reviewable in phase %s", app.Stage, opts.Phase)
	}

	r := models.PhaseReview{
		CycleID:       opts.CycleID,
		Phase:         opts.Phase,
		ApplicationID: opts.ApplicationID,
		ReviewerEmail: opts.ReviewerEmail,
		Score:         opts.Score,
		Category:      opts.Category,
		Notes:         opts.Notes,
		CompletedAt:   time.Now(),
	}
	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "cycle_id"}, {Name: "phase"}, {Name: "application_id"}, {Name: "reviewer_email"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"score", "category", "notes", "completed_at", "updated_at"}),
	}).Create(&r).Error
	if err != nil {
		return nil, fmt.Errorf("review: record: %w", err)
	}
	return &r, nil
}

// ForApplicant returns all reviews of one applicant in one phase.
func ForApplicant(db *gorm.DB, cycleID uuid.UUID, phase string, appID uuid.UUID) ([]models.PhaseReview, error) {
	var reviews []models.PhaseReview
	if err := db.Where("cycle_id = ? AND phase = ? AND application_id = ?", cycleID, phase, appID).
		Order("reviewer_email ASC").Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("review: for applicant: %w", err)
	}
	return reviews, nil
}

// Completeness summarizes review progress for one phase.
type Completeness struct {
	Phase             string
	RequiredReviewers int
	TotalApplicants   int
	FullyReviewed     int
}

// GetCompleteness counts applicants at a phase-eligible stage whose review
// count meets the phase's required-reviewer threshold.
func GetCompleteness(db *gorm.DB, cycleID uuid.UUID, phase string) (*Completeness, error) {
	pc, err := EnsurePhase(db, cycleID, phase)
	if err != nil {
		return nil, err
	}

	var apps []models.Application
	if err := db.Where("cycle_id = ? AND stage IN ?", cycleID, EligibleStages(phase)).
		Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("review: list eligible applicants: %w", err)
	}

	type countRow struct {
		ApplicationID uuid.UUID
		N             int
	}
	var counts []countRow
	if err := db.Model(&models.PhaseReview{}).
		Select("application_id, COUNT(*) as n").
		Where("cycle_id = ? AND phase = ?", cycleID, phase).
		Group("application_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("review: count reviews: %w", err)
	}
	byApp := make(map[uuid.UUID]int, len(counts))
	for _, c := range counts {
		byApp[c.ApplicationID] = c.N
	}

	done := 0
	for _, a := range apps {
		if byApp[a.ID] >= pc.RequiredReviewers {
			done++
		}
	}
	return &Completeness{
		Phase:             phase,
		RequiredReviewers: pc.RequiredReviewers,
		TotalApplicants:   len(apps),
		FullyReviewed:     done,
	}, nil
}
