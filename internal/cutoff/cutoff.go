// Package cutoff converts a generated ranking plus threshold criteria and
// manual overrides into advance/reject stage transitions, finalizing the
// phase in the same transaction.
package cutoff

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/gatehouse/gatehouse/internal/ranking"
	"github.com/gatehouse/gatehouse/internal/review"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Criteria is one track's advancement threshold: advance the top N ranked
// applicants, or everyone scoring at least MinScore. Exactly one must be
// set.
type Criteria struct {
	TopN     int
	MinScore *float64
}

func (c Criteria) validate(track string) error {
	if c.TopN > 0 && c.MinScore != nil {
		return apperr.Validation("criteria", "track %s: set top_n or min_score, not both", track)
	}
	if c.TopN <= 0 && c.MinScore == nil {
		return apperr.Validation("criteria", "track %s: top_n or min_score is required", track)
	}
	return nil
}

// Override replaces the criteria-computed outcome for one applicant. The
// reason is persisted for audit.
type Override struct {
	ApplicationID uuid.UUID
	Action        string // models.ActionAdvance or models.ActionReject
	Reason        string
}

// ApplyOpts holds parameters for one cutoff application.
type ApplyOpts struct {
	CycleID           uuid.UUID
	Phase             string
	Criteria          map[string]Criteria // keyed by track; tracks may differ
	Overrides         []Override
	SendNotifications bool
	DecidedBy         string
}

// Result summarizes a committed cutoff.
type Result struct {
	Advanced  int
	Rejected  int
	Overrides int
	NextStage string
}

// Apply computes the advance/reject set from the latest ranking, applies
// overrides with highest precedence, and commits every stage transition,
// the decision audit rows, the notification outbox rows, and the phase
// finalization in one transaction. Partial application is never
// observable. Re-applying to a finalized phase fails with "phase
// finalized", which makes cutoff a one-shot auditable event.
func Apply(db *gorm.DB, opts ApplyOpts) (*Result, error) {
	pc, err := review.EnsurePhase(db, opts.CycleID, opts.Phase)
	if err != nil {
		return nil, err
	}
	if pc.Status == models.PhaseFinalized {
		return nil, apperr.Conflict(apperr.ReasonPhaseFinalized,
			"phase %s is already finalized", opts.Phase)
	}
	nextStage, err := review.NextStage(opts.Phase)
	if err != nil {
		return nil, err
	}
	for track, c := range opts.Criteria {
		if err := c.validate(track); err != nil {
			return nil, err
		}
	}

	gen, err := ranking.Latest(db, opts.CycleID, opts.Phase)
	if err != nil {
		return nil, apperr.Conflict(apperr.ReasonNoRanking,
			"no ranking generated for phase %s; generate rankings first", opts.Phase)
	}

	overrideByApp := make(map[uuid.UUID]Override, len(opts.Overrides))
	for _, o := range opts.Overrides {
		if o.Action != models.ActionAdvance && o.Action != models.ActionReject {
			return nil, apperr.Validation("override", "action %q must be advance or reject", o.Action)
		}
		if strings.TrimSpace(o.Reason) == "" {
			return nil, apperr.Validation("override", "a reason is required for %s", o.ApplicationID)
		}
		overrideByApp[o.ApplicationID] = o
	}

	// Compute per-track outcomes from the ranking. Track rank is the
	// position within the applicant's own track, not the global rank.
	actions := make(map[uuid.UUID]string, len(gen.Entries))
	trackRank := map[string]int{}
	var unattended []string
	for _, e := range gen.Entries {
		if _, overridden := overrideByApp[e.ApplicationID]; overridden {
			continue
		}
		if e.Unscored {
			// Unscored applicants require an explicit decision; silently
			// rejecting them would hide reviewer gaps.
			unattended = append(unattended, e.Email)
			continue
		}
		c, ok := opts.Criteria[e.Track]
		if !ok {
			return nil, apperr.Validation("criteria", "no criteria for track %s", e.Track)
		}
		trackRank[e.Track]++
		advance := false
		if c.TopN > 0 {
			advance = trackRank[e.Track] <= c.TopN
		} else {
			advance = e.Score >= *c.MinScore
		}
		if advance {
			actions[e.ApplicationID] = models.ActionAdvance
		} else {
			actions[e.ApplicationID] = models.ActionReject
		}
	}
	if len(unattended) > 0 {
		return nil, apperr.Validation("unscored",
			"applicants with no reviews need a manual override: %s", strings.Join(unattended, ", "))
	}
	for id, o := range overrideByApp {
		actions[id] = o.Action
	}

	res := &Result{NextStage: nextStage, Overrides: len(opts.Overrides)}
	err = db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, e := range gen.Entries {
			action, ok := actions[e.ApplicationID]
			if !ok {
				continue
			}
			var app models.Application
			if err := tx.Where("id = ?", e.ApplicationID).First(&app).Error; err != nil {
				return fmt.Errorf("cutoff: load application %s: %w", e.ApplicationID, err)
			}
			if app.Stage == models.StageWithdrawn {
				continue // withdrew after the ranking was generated
			}

			toStage := nextStage
			if action == models.ActionReject {
				toStage = models.StageRejected
			}
			if err := tx.Model(&models.Application{}).Where("id = ?", app.ID).
				Update("stage", toStage).Error; err != nil {
				return fmt.Errorf("cutoff: move %s to %s: %w", app.Email, toStage, err)
			}

			o, overridden := overrideByApp[e.ApplicationID]
			decision := models.CutoffDecision{
				CycleID:       opts.CycleID,
				Phase:         opts.Phase,
				ApplicationID: app.ID,
				Action:        action,
				Overridden:    overridden,
				FromStage:     app.Stage,
				ToStage:       toStage,
				DecidedBy:     opts.DecidedBy,
			}
			if overridden {
				decision.OverrideReason = o.Reason
			}
			if err := tx.Create(&decision).Error; err != nil {
				return fmt.Errorf("cutoff: record decision for %s: %w", app.Email, err)
			}

			if opts.SendNotifications {
				kind := models.NotifyCutoffAdvance
				if action == models.ActionReject {
					kind = models.NotifyCutoffReject
				}
				ctxJSON, _ := json.Marshal(map[string]string{
					"phase":      opts.Phase,
					"from_stage": app.Stage,
					"to_stage":   toStage,
				})
				n := models.Notification{
					Recipient: app.Email,
					Kind:      kind,
					Context:   string(ctxJSON),
					Status:    models.NotifyPending,
				}
				if err := tx.Create(&n).Error; err != nil {
					return fmt.Errorf("cutoff: enqueue notification for %s: %w", app.Email, err)
				}
			}

			if action == models.ActionAdvance {
				res.Advanced++
			} else {
				res.Rejected++
			}
		}

		upd := tx.Model(&models.PhaseConfig{}).
			Where("cycle_id = ? AND phase = ? AND status = ?", opts.CycleID, opts.Phase, models.PhaseOpen).
			Updates(map[string]interface{}{
				"status":       models.PhaseFinalized,
				"finalized_at": now,
			})
		if upd.Error != nil {
			return fmt.Errorf("cutoff: finalize phase: %w", upd.Error)
		}
		if upd.RowsAffected == 0 {
			// A concurrent Apply finalized first; abort so nothing commits.
			return apperr.Conflict(apperr.ReasonPhaseFinalized,
				"phase %s was finalized concurrently", opts.Phase)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Decisions returns the audit rows for a finalized phase, newest first.
func Decisions(db *gorm.DB, cycleID uuid.UUID, phase string) ([]models.CutoffDecision, error) {
	var out []models.CutoffDecision
	if err := db.Where("cycle_id = ? AND phase = ?", cycleID, phase).
		Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("cutoff: decisions: %w", err)
	}
	return out, nil
}
