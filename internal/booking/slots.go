// Package booking implements recruitment slots and applicant bookings,
// enforcing capacity and single-booking-per-kind under concurrency.
package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SlotOpts holds parameters for creating one slot.
type SlotOpts struct {
	CycleID         uuid.UUID
	Kind            string
	StartTime       time.Time
	DurationMinutes int
	HostName        string
	HostEmail       string
	Location        string
	MeetingURL      string
	MaxBookings     int
	ForTrack        string // empty = any track
}

func validKind(kind string) bool {
	switch kind {
	case models.SlotCoffeeChat, models.SlotInterviewRound1, models.SlotInterviewRound2:
		return true
	}
	return false
}

func (o SlotOpts) validate() error {
	if !validKind(o.Kind) {
		return apperr.Validation("kind", "%q is not a slot kind", o.Kind)
	}
	if o.StartTime.IsZero() {
		return apperr.Validation("start_time", "is required")
	}
	if o.DurationMinutes <= 0 {
		return apperr.Validation("duration_minutes", "must be > 0")
	}
	if o.MaxBookings < 1 {
		return apperr.Validation("max_bookings", "must be >= 1")
	}
	if o.ForTrack != "" && o.ForTrack != models.TrackBusiness && o.ForTrack != models.TrackEngineering {
		return apperr.Validation("for_track", "%q is not a track", o.ForTrack)
	}
	return nil
}

// CreateSlot inserts one bookable slot.
func CreateSlot(db *gorm.DB, opts SlotOpts) (*models.RecruitmentSlot, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	s := models.RecruitmentSlot{
		ID:              uuid.New(),
		CycleID:         opts.CycleID,
		Kind:            opts.Kind,
		StartTime:       opts.StartTime,
		DurationMinutes: opts.DurationMinutes,
		HostName:        opts.HostName,
		HostEmail:       opts.HostEmail,
		Location:        opts.Location,
		MeetingURL:      opts.MeetingURL,
		MaxBookings:     opts.MaxBookings,
		ForTrack:        opts.ForTrack,
	}
	if err := db.Create(&s).Error; err != nil {
		return nil, fmt.Errorf("booking: create slot: %w", err)
	}
	return &s, nil
}

// BulkCreateSlots creates back-to-back slots of one shape: count slots of
// the given duration starting at first, each hosted by the same host.
func BulkCreateSlots(db *gorm.DB, opts SlotOpts, first time.Time, count int) ([]models.RecruitmentSlot, error) {
	if count < 1 {
		return nil, apperr.Validation("count", "must be >= 1")
	}
	opts.StartTime = first
	if err := opts.validate(); err != nil {
		return nil, err
	}

	slots := make([]models.RecruitmentSlot, count)
	step := time.Duration(opts.DurationMinutes) * time.Minute
	for i := 0; i < count; i++ {
		slots[i] = models.RecruitmentSlot{
			ID:              uuid.New(),
			CycleID:         opts.CycleID,
			Kind:            opts.Kind,
			StartTime:       first.Add(time.Duration(i) * step),
			DurationMinutes: opts.DurationMinutes,
			HostName:        opts.HostName,
			HostEmail:       opts.HostEmail,
			Location:        opts.Location,
			MeetingURL:      opts.MeetingURL,
			MaxBookings:     opts.MaxBookings,
			ForTrack:        opts.ForTrack,
		}
	}
	if err := db.Create(&slots).Error; err != nil {
		return nil, fmt.Errorf("booking: bulk create slots: %w", err)
	}
	return slots, nil
}

// GetSlot returns a slot by ID.
func GetSlot(db *gorm.DB, id uuid.UUID) (*models.RecruitmentSlot, error) {
	var s models.RecruitmentSlot
	if err := db.Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("booking: slot not found: %s", id)
		}
		return nil, fmt.Errorf("booking: get slot %s: %w", id, err)
	}
	return &s, nil
}

// kindEligible reports whether an applicant at the given stage may book a
// slot kind. Coffee chats are open to any stage; interview slots require
// the matching stage.
func kindEligible(kind, stage string) bool {
	switch kind {
	case models.SlotCoffeeChat:
		return true
	case models.SlotInterviewRound1, models.SlotInterviewRound2:
		return stage == kind
	}
	return false
}

// ListAvailable returns the slots the applicant can currently book:
// kind/track eligible, in the future, and with remaining capacity.
func ListAvailable(db *gorm.DB, cycleID uuid.UUID, app *models.Application) ([]models.RecruitmentSlot, error) {
	var slots []models.RecruitmentSlot
	q := db.Where("cycle_id = ? AND start_time > ? AND booked_count < max_bookings", cycleID, time.Now()).
		Where("for_track = ? OR for_track = ?", "", app.Track).
		Order("start_time ASC")
	if err := q.Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("booking: list slots: %w", err)
	}
	out := slots[:0]
	for _, s := range slots {
		if kindEligible(s.Kind, app.Stage) {
			out = append(out, s)
		}
	}
	return out, nil
}
