// Package ranking turns aggregated phase reviews into a deterministic
// ordered ranking per (cycle, phase).
package ranking

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/gatehouse/gatehouse/internal/review"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Generate replaces the full ranking for (cycle, phase). The aggregate
// score is the mean of each applicant's review scores; applicants with no
// reviews are included as unscored and rank after every scored applicant.
//
// Order is fully deterministic: score descending, then earliest
// SubmittedAt, then email. Two runs with identical review inputs produce
// identical output, which is what makes regeneration idempotent.
func Generate(db *gorm.DB, cycleID uuid.UUID, phase string) (*models.RankingGeneration, error) {
	pc, err := review.EnsurePhase(db, cycleID, phase)
	if err != nil {
		return nil, err
	}
	if pc.Status == models.PhaseFinalized {
		return nil, apperr.Conflict(apperr.ReasonPhaseFinalized,
			"phase %s is finalized, rankings are immutable", phase)
	}

	var apps []models.Application
	if err := db.Where("cycle_id = ? AND stage IN ?", cycleID, review.EligibleStages(phase)).
		Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("ranking: list eligible applicants: %w", err)
	}

	var reviews []models.PhaseReview
	if err := db.Where("cycle_id = ? AND phase = ?", cycleID, phase).
		Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("ranking: list reviews: %w", err)
	}

	type agg struct {
		sum   float64
		count int
	}
	byApp := make(map[uuid.UUID]*agg, len(apps))
	for _, r := range reviews {
		a := byApp[r.ApplicationID]
		if a == nil {
			a = &agg{}
			byApp[r.ApplicationID] = a
		}
		a.sum += r.Score
		a.count++
	}

	entries := make([]models.RankedApplicant, 0, len(apps))
	for _, app := range apps {
		e := models.RankedApplicant{
			ApplicationID: app.ID,
			Email:         app.Email,
			Track:         app.Track,
			TieBreak:      tieBreakKey(&app),
		}
		if a := byApp[app.ID]; a != nil && a.count > 0 {
			e.Score = a.sum / float64(a.count)
			e.ReviewCount = a.count
		} else {
			e.Unscored = true
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Unscored != b.Unscored {
			return !a.Unscored // scored applicants first
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.TieBreak < b.TieBreak
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	gen := models.RankingGeneration{
		CycleID:     cycleID,
		Phase:       phase,
		GeneratedAt: time.Now(),
		ReviewCount: len(reviews),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		// Supersede the prior generation wholesale.
		var oldIDs []uint
		if err := tx.Model(&models.RankingGeneration{}).
			Where("cycle_id = ? AND phase = ?", cycleID, phase).
			Pluck("id", &oldIDs).Error; err != nil {
			return fmt.Errorf("ranking: find prior generations: %w", err)
		}
		if len(oldIDs) > 0 {
			if err := tx.Where("generation_id IN ?", oldIDs).Delete(&models.RankedApplicant{}).Error; err != nil {
				return fmt.Errorf("ranking: delete prior entries: %w", err)
			}
			if err := tx.Where("id IN ?", oldIDs).Delete(&models.RankingGeneration{}).Error; err != nil {
				return fmt.Errorf("ranking: delete prior generations: %w", err)
			}
		}
		if err := tx.Create(&gen).Error; err != nil {
			return fmt.Errorf("ranking: create generation: %w", err)
		}
		for i := range entries {
			entries[i].GenerationID = gen.ID
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return fmt.Errorf("ranking: create entries: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	gen.Entries = entries
	return &gen, nil
}

// tieBreakTimeLayout is fixed width so lexicographic order on the key
// matches chronological order. Variable-width fractional seconds would
// sort "12:00:00Z" after "12:00:00.5Z".
const tieBreakTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// tieBreakKey builds the deterministic secondary sort key: earliest
// submission first, email as the final discriminator.
func tieBreakKey(app *models.Application) string {
	submitted := "9999-12-31T23:59:59.999999999Z"
	if app.SubmittedAt != nil {
		submitted = app.SubmittedAt.UTC().Format(tieBreakTimeLayout)
	}
	return submitted + "|" + app.Email
}

// Latest returns the current ranking generation for (cycle, phase) with
// its entries in rank order, or an error wrapping gorm.ErrRecordNotFound
// if none has been generated.
func Latest(db *gorm.DB, cycleID uuid.UUID, phase string) (*models.RankingGeneration, error) {
	var gen models.RankingGeneration
	err := db.Where("cycle_id = ? AND phase = ?", cycleID, phase).
		Order("generated_at DESC").First(&gen).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ranking: none generated for %s/%s: %w", cycleID, phase, err)
		}
		return nil, fmt.Errorf("ranking: latest: %w", err)
	}
	if err := db.Where("generation_id = ?", gen.ID).Order("`rank` ASC").
		Find(&gen.Entries).Error; err != nil {
		return nil, fmt.Errorf("ranking: load entries: %w", err)
	}
	return &gen, nil
}
