// Package application implements the applicant state machine: draft,
// submission, stage advancement, and withdrawal.
package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/gatehouse/gatehouse/internal/question"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ValidTransitions maps each stage to its legal forward successors.
// Withdrawal is handled separately: it is reachable from any non-terminal
// stage and is terminal.
var ValidTransitions = map[string][]string{
	models.StageNotStarted:      {models.StageDraft},
	models.StageDraft:           {models.StageSubmitted},
	models.StageSubmitted:       {models.StageUnderReview},
	models.StageUnderReview:     {models.StageInterviewRound1, models.StageRejected},
	models.StageInterviewRound1: {models.StageInterviewRound2, models.StageRejected},
	models.StageInterviewRound2: {models.StageAccepted, models.StageRejected},
}

// IsTerminal reports whether a stage has no successors.
func IsTerminal(stage string) bool {
	switch stage {
	case models.StageAccepted, models.StageRejected, models.StageWithdrawn:
		return true
	}
	return false
}

// CanTransition reports whether from→to is a legal forward transition.
func CanTransition(from, to string) bool {
	for _, next := range ValidTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func validTrack(track string) bool {
	return track == models.TrackBusiness || track == models.TrackEngineering
}

// Get returns the applicant's application in a cycle.
func Get(db *gorm.DB, cycleID uuid.UUID, email string) (*models.Application, error) {
	var app models.Application
	if err := db.Where("cycle_id = ? AND email = ?", cycleID, email).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("application: not found for %s: %w", email, err)
		}
		return nil, fmt.Errorf("application: get %s: %w", email, err)
	}
	return &app, nil
}

// GetByID returns an application by primary key.
func GetByID(db *gorm.DB, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := db.Where("id = ?", id).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("application: not found: %s: %w", id, err)
		}
		return nil, fmt.Errorf("application: get %s: %w", id, err)
	}
	return &app, nil
}

// StartDraft creates the applicant's application record in draft stage.
// Track is fixed here and immutable afterwards. Calling it again with the
// same track is a no-op returning the existing record.
func StartDraft(db *gorm.DB, cycleID uuid.UUID, email, track string) (*models.Application, error) {
	if email == "" {
		return nil, apperr.Validation("email", "is required")
	}
	if !validTrack(track) {
		return nil, apperr.Validation("track", "%q is not a valid track", track)
	}

	existing, err := Get(db, cycleID, email)
	if err == nil {
		if existing.Track != track {
			return nil, apperr.Conflict(apperr.ReasonTrackImmutable,
				"track is %s and cannot be changed to %s", existing.Track, track)
		}
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	app := models.Application{
		ID:      uuid.New(),
		CycleID: cycleID,
		Email:   email,
		Track:   track,
		Stage:   models.StageDraft,
		Answers: "{}",
		Files:   "{}",
	}
	if err := db.Create(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Concurrent StartDraft; the earlier write wins.
			return Get(db, cycleID, email)
		}
		return nil, fmt.Errorf("application: start draft: %w", err)
	}
	return &app, nil
}

// SaveDraft upserts answers and file references while the application is
// still editable (not_started or draft). Keys not present in the patch are
// preserved.
func SaveDraft(db *gorm.DB, cycleID uuid.UUID, email string, answers, files map[string]string) (*models.Application, error) {
	app, err := Get(db, cycleID, email)
	if err != nil {
		return nil, err
	}
	if app.Stage != models.StageNotStarted && app.Stage != models.StageDraft {
		return nil, apperr.Conflict(apperr.ReasonWrongStage,
			"application is %s and can no longer be edited", app.Stage)
	}

	merged, err := mergeJSONMap(app.Answers, answers)
	if err != nil {
		return nil, fmt.Errorf("application: merge answers: %w", err)
	}
	mergedFiles, err := mergeJSONMap(app.Files, files)
	if err != nil {
		return nil, fmt.Errorf("application: merge files: %w", err)
	}

	updates := map[string]interface{}{
		"answers": merged,
		"files":   mergedFiles,
		"stage":   models.StageDraft,
	}
	if err := db.Model(app).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("application: save draft: %w", err)
	}
	app.Answers = merged
	app.Files = mergedFiles
	app.Stage = models.StageDraft
	return app, nil
}

// Submit validates the draft against the track's question schema and
// transitions draft→submitted. Only the applicant triggers this; every
// later transition is driven by the cutoff engine.
func Submit(db *gorm.DB, cycleID uuid.UUID, email string, schema question.Provider) (*models.Application, error) {
	app, err := Get(db, cycleID, email)
	if err != nil {
		return nil, err
	}
	if app.Stage == models.StageSubmitted {
		return app, nil // idempotent
	}
	if app.Stage != models.StageDraft {
		return nil, apperr.Conflict(apperr.ReasonWrongStage,
			"application is %s, only drafts can be submitted", app.Stage)
	}

	var cyc models.RecruitmentCycle
	if err := db.Where("id = ?", cycleID).First(&cyc).Error; err != nil {
		return nil, fmt.Errorf("application: load cycle: %w", err)
	}
	now := time.Now()
	if now.Before(cyc.PortalOpenAt) || now.After(cyc.ApplicationDueAt) {
		return nil, apperr.Conflict(apperr.ReasonCycleInactive,
			"submissions are accepted between %s and %s",
			cyc.PortalOpenAt.Format(time.RFC3339), cyc.ApplicationDueAt.Format(time.RFC3339))
	}

	answers, err := decodeJSONMap(app.Answers)
	if err != nil {
		return nil, fmt.Errorf("application: decode answers: %w", err)
	}
	files, err := decodeJSONMap(app.Files)
	if err != nil {
		return nil, fmt.Errorf("application: decode files: %w", err)
	}
	if err := question.ValidateAnswers(schema, app.Track, answers, files); err != nil {
		return nil, err
	}

	if err := db.Model(app).Updates(map[string]interface{}{
		"stage":        models.StageSubmitted,
		"submitted_at": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("application: submit: %w", err)
	}
	app.Stage = models.StageSubmitted
	app.SubmittedAt = &now
	return app, nil
}

// AdvanceStage moves an application forward along the pipeline. Callers
// are the cutoff engine and administrators; applicants never invoke it.
// adminOverride permits the rare out-of-order correction.
func AdvanceStage(db *gorm.DB, id uuid.UUID, newStage string, adminOverride bool) (*models.Application, error) {
	app, err := GetByID(db, id)
	if err != nil {
		return nil, err
	}
	if !adminOverride {
		if IsTerminal(app.Stage) {
			return nil, apperr.Conflict(apperr.ReasonWrongStage,
				"application is %s, a terminal stage", app.Stage)
		}
		if !CanTransition(app.Stage, newStage) {
			return nil, apperr.Conflict(apperr.ReasonWrongStage,
				"cannot move from %s to %s", app.Stage, newStage)
		}
	}
	if err := db.Model(app).Update("stage", newStage).Error; err != nil {
		return nil, fmt.Errorf("application: advance to %s: %w", newStage, err)
	}
	app.Stage = newStage
	return app, nil
}

// Withdraw marks the application withdrawn. Legal from any non-terminal
// stage; withdrawing twice is a no-op.
func Withdraw(db *gorm.DB, cycleID uuid.UUID, email string) (*models.Application, error) {
	app, err := Get(db, cycleID, email)
	if err != nil {
		return nil, err
	}
	if app.Stage == models.StageWithdrawn {
		return app, nil
	}
	if IsTerminal(app.Stage) {
		return nil, apperr.Conflict(apperr.ReasonWrongStage,
			"application is already %s", app.Stage)
	}
	now := time.Now()
	if err := db.Model(app).Updates(map[string]interface{}{
		"stage":        models.StageWithdrawn,
		"withdrawn_at": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("application: withdraw: %w", err)
	}
	app.Stage = models.StageWithdrawn
	app.WithdrawnAt = &now
	return app, nil
}

// MarkUnderReview moves every submitted application in a cycle to
// under_review. Admin action taken when application review begins.
func MarkUnderReview(db *gorm.DB, cycleID uuid.UUID) (int64, error) {
	res := db.Model(&models.Application{}).
		Where("cycle_id = ? AND stage = ?", cycleID, models.StageSubmitted).
		Update("stage", models.StageUnderReview)
	if res.Error != nil {
		return 0, fmt.Errorf("application: mark under review: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Answers decodes the application's answers map.
func Answers(app *models.Application) (map[string]string, error) {
	return decodeJSONMap(app.Answers)
}

// Files decodes the application's file reference map.
func Files(app *models.Application) (map[string]string, error) {
	return decodeJSONMap(app.Files)
}

func decodeJSONMap(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

func mergeJSONMap(raw string, patch map[string]string) (string, error) {
	m, err := decodeJSONMap(raw)
	if err != nil {
		return "", err
	}
	for k, v := range patch {
		m[k] = v
	}
	out, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
