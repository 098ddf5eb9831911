// Package cycle implements the recruitment cycle registry, including the
// single-active-cycle invariant.
package cycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a cycle.
type CreateOpts struct {
	Name             string
	Slug             string
	PortalOpenAt     time.Time
	ApplicationDueAt time.Time
	PortalCloseAt    time.Time
}

// UpdateOpts holds optional fields for updating a cycle. Nil fields are
// left unchanged.
type UpdateOpts struct {
	Name             *string
	PortalOpenAt     *time.Time
	ApplicationDueAt *time.Time
	PortalCloseAt    *time.Time
}

func validateDates(open, due, close time.Time) error {
	if open.After(due) {
		return apperr.Validation("application_due_at", "must not be before portal_open_at")
	}
	if due.After(close) {
		return apperr.Validation("portal_close_at", "must not be before application_due_at")
	}
	return nil
}

// Create inserts a new cycle. New cycles start inactive.
func Create(db *gorm.DB, opts CreateOpts) (*models.RecruitmentCycle, error) {
	if opts.Name == "" {
		return nil, apperr.Validation("name", "is required")
	}
	if opts.Slug == "" {
		return nil, apperr.Validation("slug", "is required")
	}
	if err := validateDates(opts.PortalOpenAt, opts.ApplicationDueAt, opts.PortalCloseAt); err != nil {
		return nil, err
	}

	c := models.RecruitmentCycle{
		ID:               uuid.New(),
		Name:             opts.Name,
		Slug:             opts.Slug,
		PortalOpenAt:     opts.PortalOpenAt,
		ApplicationDueAt: opts.ApplicationDueAt,
		PortalCloseAt:    opts.PortalCloseAt,
	}
	if err := db.Create(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation("slug", "%q is already in use", opts.Slug)
		}
		return nil, fmt.Errorf("cycle: create: %w", err)
	}
	return &c, nil
}

// Get returns a cycle by ID.
func Get(db *gorm.DB, id uuid.UUID) (*models.RecruitmentCycle, error) {
	var c models.RecruitmentCycle
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cycle: not found: %s", id)
		}
		return nil, fmt.Errorf("cycle: get %s: %w", id, err)
	}
	return &c, nil
}

// List returns all cycles, newest first.
func List(db *gorm.DB) ([]models.RecruitmentCycle, error) {
	var cycles []models.RecruitmentCycle
	if err := db.Order("created_at DESC").Find(&cycles).Error; err != nil {
		return nil, fmt.Errorf("cycle: list: %w", err)
	}
	return cycles, nil
}

// Active returns the currently active cycle, or gorm.ErrRecordNotFound
// wrapped if none is active.
func Active(db *gorm.DB) (*models.RecruitmentCycle, error) {
	var c models.RecruitmentCycle
	if err := db.Where("is_active = ?", true).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cycle: no active cycle: %w", err)
		}
		return nil, fmt.Errorf("cycle: active: %w", err)
	}
	return &c, nil
}

// Update applies a patch to a cycle. Date edits are validated against the
// resulting ordering, not just the changed fields.
func Update(db *gorm.DB, id uuid.UUID, opts UpdateOpts) (*models.RecruitmentCycle, error) {
	c, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	if opts.Name != nil {
		c.Name = *opts.Name
	}
	if opts.PortalOpenAt != nil {
		c.PortalOpenAt = *opts.PortalOpenAt
	}
	if opts.ApplicationDueAt != nil {
		c.ApplicationDueAt = *opts.ApplicationDueAt
	}
	if opts.PortalCloseAt != nil {
		c.PortalCloseAt = *opts.PortalCloseAt
	}
	if err := validateDates(c.PortalOpenAt, c.ApplicationDueAt, c.PortalCloseAt); err != nil {
		return nil, err
	}

	if err := db.Save(c).Error; err != nil {
		return nil, fmt.Errorf("cycle: update %s: %w", id, err)
	}
	return c, nil
}

// SetActive atomically deactivates every cycle and activates the target.
// Readers never observe more than one active cycle mid-operation.
func SetActive(db *gorm.DB, id uuid.UUID) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var c models.RecruitmentCycle
		if err := tx.Where("id = ?", id).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("cycle: not found: %s", id)
			}
			return fmt.Errorf("cycle: activate %s: %w", id, err)
		}
		if err := tx.Model(&models.RecruitmentCycle{}).Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("cycle: deactivate others: %w", err)
		}
		if err := tx.Model(&models.RecruitmentCycle{}).Where("id = ?", id).
			Update("is_active", true).Error; err != nil {
			return fmt.Errorf("cycle: activate %s: %w", id, err)
		}
		return nil
	})
}

// DependentCounts summarizes records that would be removed by a cascading
// delete.
type DependentCounts struct {
	Applications int64
	Slots        int64
	Events       int64
}

// Empty reports whether the cycle has no dependent records.
func (d DependentCounts) Empty() bool {
	return d.Applications == 0 && d.Slots == 0 && d.Events == 0
}

func countDependents(db *gorm.DB, id uuid.UUID) (DependentCounts, error) {
	var d DependentCounts
	if err := db.Model(&models.Application{}).Where("cycle_id = ?", id).Count(&d.Applications).Error; err != nil {
		return d, fmt.Errorf("cycle: count applications: %w", err)
	}
	if err := db.Model(&models.RecruitmentSlot{}).Where("cycle_id = ?", id).Count(&d.Slots).Error; err != nil {
		return d, fmt.Errorf("cycle: count slots: %w", err)
	}
	if err := db.Model(&models.RecruitmentEvent{}).Where("cycle_id = ?", id).Count(&d.Events).Error; err != nil {
		return d, fmt.Errorf("cycle: count events: %w", err)
	}
	return d, nil
}

// Delete removes a cycle. If dependent applications, slots, or events
// exist and cascadeConfirmed is false, it fails with a DependencyError
// summarizing what a confirmed call would delete. With cascadeConfirmed
// the cycle and all dependents are removed in one transaction.
func Delete(db *gorm.DB, id uuid.UUID, cascadeConfirmed bool) error {
	if _, err := Get(db, id); err != nil {
		return err
	}

	deps, err := countDependents(db, id)
	if err != nil {
		return err
	}
	if !deps.Empty() && !cascadeConfirmed {
		var summary []string
		if deps.Applications > 0 {
			summary = append(summary, fmt.Sprintf("%d applications", deps.Applications))
		}
		if deps.Slots > 0 {
			summary = append(summary, fmt.Sprintf("%d slots", deps.Slots))
		}
		if deps.Events > 0 {
			summary = append(summary, fmt.Sprintf("%d events", deps.Events))
		}
		return &apperr.DependencyError{Op: "cycle: delete", Summary: summary}
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var appIDs []uuid.UUID
		if err := tx.Model(&models.Application{}).Where("cycle_id = ?", id).
			Pluck("id", &appIDs).Error; err != nil {
			return fmt.Errorf("cycle: list applications: %w", err)
		}
		if len(appIDs) > 0 {
			for _, m := range []interface{}{&models.SlotBooking{}, &models.EventRsvp{}} {
				if err := tx.Where("application_id IN ?", appIDs).Delete(m).Error; err != nil {
					return fmt.Errorf("cycle: cascade delete %T: %w", m, err)
				}
			}
		}
		var genIDs []uint
		if err := tx.Model(&models.RankingGeneration{}).Where("cycle_id = ?", id).
			Pluck("id", &genIDs).Error; err != nil {
			return fmt.Errorf("cycle: list generations: %w", err)
		}
		if len(genIDs) > 0 {
			if err := tx.Where("generation_id IN ?", genIDs).Delete(&models.RankedApplicant{}).Error; err != nil {
				return fmt.Errorf("cycle: cascade delete rankings: %w", err)
			}
		}
		for _, m := range []interface{}{
			&models.RankingGeneration{}, &models.CutoffDecision{}, &models.PhaseReview{},
			&models.PhaseConfig{}, &models.RecruitmentSlot{}, &models.RecruitmentEvent{},
			&models.Application{},
		} {
			if err := tx.Where("cycle_id = ?", id).Delete(m).Error; err != nil {
				return fmt.Errorf("cycle: cascade delete %T: %w", m, err)
			}
		}
		if err := tx.Where("id = ?", id).Delete(&models.RecruitmentCycle{}).Error; err != nil {
			return fmt.Errorf("cycle: delete %s: %w", id, err)
		}
		return nil
	})
}
