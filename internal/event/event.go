// Package event manages recruitment events: RSVPs against optional
// capacity and live check-ins during the event window. It mirrors the
// booking package's capacity discipline: the rsvp_count column is only
// moved by conditional updates, and the unique index on
// (event_id, application_id, active) is the backstop against duplicate
// active RSVPs.
package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gatehouse/gatehouse/internal/apperr"
	"github.com/gatehouse/gatehouse/internal/models"
)

// CreateOpts holds the fields for a new event.
type CreateOpts struct {
	CycleID        uuid.UUID
	Name           string
	Description    string
	Location       string
	StartAt        time.Time
	EndAt          time.Time
	RsvpEnabled    bool
	CheckInEnabled bool
	Capacity       int
}

func (o CreateOpts) validate() error {
	if o.Name == "" {
		return apperr.Validation("name", "required")
	}
	if o.StartAt.IsZero() || o.EndAt.IsZero() {
		return apperr.Validation("startAt", "start and end times are required")
	}
	if !o.EndAt.After(o.StartAt) {
		return apperr.Validation("endAt", "must be after startAt")
	}
	if o.Capacity < 0 {
		return apperr.Validation("capacity", "must be zero (unbounded) or positive")
	}
	return nil
}

// Create stores a new event.
func Create(db *gorm.DB, opts CreateOpts) (*models.RecruitmentEvent, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	ev := models.RecruitmentEvent{
		ID:             uuid.New(),
		CycleID:        opts.CycleID,
		Name:           opts.Name,
		Description:    opts.Description,
		Location:       opts.Location,
		StartAt:        opts.StartAt,
		EndAt:          opts.EndAt,
		RsvpEnabled:    opts.RsvpEnabled,
		CheckInEnabled: opts.CheckInEnabled,
		Capacity:       opts.Capacity,
	}
	if err := db.Create(&ev).Error; err != nil {
		return nil, fmt.Errorf("event: create: %w", err)
	}
	return &ev, nil
}

// Get loads one event by ID.
func Get(db *gorm.DB, id uuid.UUID) (*models.RecruitmentEvent, error) {
	var ev models.RecruitmentEvent
	if err := db.First(&ev, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("event: not found: %s", id)
		}
		return nil, fmt.Errorf("event: get %s: %w", id, err)
	}
	return &ev, nil
}

// List returns a cycle's events in start order.
func List(db *gorm.DB, cycleID uuid.UUID) ([]models.RecruitmentEvent, error) {
	var evs []models.RecruitmentEvent
	err := db.Where("cycle_id = ?", cycleID).Order("start_at ASC").Find(&evs).Error
	if err != nil {
		return nil, fmt.Errorf("event: list: %w", err)
	}
	return evs, nil
}

// Rsvp records an applicant's RSVP. A repeated RSVP returns the existing
// active record unchanged. When the event has a capacity, the seat is
// reserved with a conditional increment so a full event can never
// over-admit under concurrency.
func Rsvp(db *gorm.DB, eventID uuid.UUID, app *models.Application) (*models.EventRsvp, error) {
	var out models.EventRsvp
	err := db.Transaction(func(tx *gorm.DB) error {
		var ev models.RecruitmentEvent
		if err := tx.First(&ev, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("event: not found: %s", eventID)
			}
			return fmt.Errorf("event: load %s: %w", eventID, err)
		}
		if !ev.RsvpEnabled {
			return apperr.Conflict(apperr.ReasonEventClosed, "event %q does not take RSVPs", ev.Name)
		}
		if !time.Now().Before(ev.EndAt) {
			return apperr.Conflict(apperr.ReasonEventClosed, "event %q has ended", ev.Name)
		}

		var existing models.EventRsvp
		err := tx.Where("event_id = ? AND application_id = ? AND active IS NOT NULL",
			eventID, app.ID).First(&existing).Error
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("event: check existing rsvp: %w", err)
		}

		if ev.Capacity > 0 {
			res := tx.Model(&models.RecruitmentEvent{}).
				Where("id = ? AND rsvp_count < capacity", ev.ID).
				Update("rsvp_count", gorm.Expr("rsvp_count + 1"))
			if res.Error != nil {
				return fmt.Errorf("event: reserve seat: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return apperr.Conflict(apperr.ReasonEventFull, "event %q is at capacity (%d)", ev.Name, ev.Capacity)
			}
		} else {
			res := tx.Model(&models.RecruitmentEvent{}).Where("id = ?", ev.ID).
				Update("rsvp_count", gorm.Expr("rsvp_count + 1"))
			if res.Error != nil {
				return fmt.Errorf("event: count rsvp: %w", res.Error)
			}
		}

		active := true
		out = models.EventRsvp{
			ID:            uuid.New(),
			EventID:       ev.ID,
			ApplicationID: app.ID,
			Active:        &active,
			RsvpAt:        time.Now(),
		}
		if err := tx.Create(&out).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict(apperr.ReasonAlreadyBooked, "already RSVPed to event %q", ev.Name)
			}
			return fmt.Errorf("event: create rsvp: %w", err)
		}
		if err := tx.Create(&models.Notification{
			Recipient: app.Email,
			Kind:      models.NotifyRsvpConfirmed,
			Context:   fmt.Sprintf(`{"event":%q,"start_at":%q}`, ev.Name, ev.StartAt.Format(time.RFC3339)),
			Status:    models.NotifyPending,
		}).Error; err != nil {
			return fmt.Errorf("event: enqueue notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveRsvp returns an applicant's standing RSVP for an event, or an
// error when none exists.
func ActiveRsvp(db *gorm.DB, eventID, applicationID uuid.UUID) (*models.EventRsvp, error) {
	var r models.EventRsvp
	err := db.Where("event_id = ? AND application_id = ? AND active IS NOT NULL",
		eventID, applicationID).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("event: rsvp not found for event %s", eventID)
		}
		return nil, fmt.Errorf("event: load rsvp: %w", err)
	}
	return &r, nil
}

// CancelRsvp withdraws an active RSVP and frees the seat. Cancelling an
// already-cancelled RSVP is a no-op.
func CancelRsvp(db *gorm.DB, rsvpID uuid.UUID) (*models.EventRsvp, error) {
	var out models.EventRsvp
	err := db.Transaction(func(tx *gorm.DB) error {
		var r models.EventRsvp
		if err := tx.First(&r, "id = ?", rsvpID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("event: rsvp not found: %s", rsvpID)
			}
			return fmt.Errorf("event: load rsvp %s: %w", rsvpID, err)
		}
		if r.Active == nil {
			out = r
			return nil
		}
		now := time.Now()
		r.Active = nil
		r.CancelledAt = &now
		if err := tx.Model(&models.EventRsvp{}).Where("id = ?", r.ID).
			Updates(map[string]interface{}{"active": nil, "cancelled_at": now}).Error; err != nil {
			return fmt.Errorf("event: cancel rsvp %s: %w", r.ID, err)
		}
		res := tx.Model(&models.RecruitmentEvent{}).
			Where("id = ? AND rsvp_count > 0", r.EventID).
			Update("rsvp_count", gorm.Expr("rsvp_count - 1"))
		if res.Error != nil {
			return fmt.Errorf("event: release seat: %w", res.Error)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Proof carries whatever evidence the check-in client captured. All fields
// are optional and stored opaquely; nothing here is verified server side.
type Proof struct {
	PhotoRef string
	Lat      *float64
	Lng      *float64
}

// CheckIn records a live check-in. The event must have check-in enabled and
// be in progress. An applicant with no prior RSVP gets one created on the
// spot; a repeated check-in returns the existing record unchanged.
func CheckIn(db *gorm.DB, eventID uuid.UUID, app *models.Application, proof Proof) (*models.EventRsvp, error) {
	var out models.EventRsvp
	err := db.Transaction(func(tx *gorm.DB) error {
		var ev models.RecruitmentEvent
		if err := tx.First(&ev, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("event: not found: %s", eventID)
			}
			return fmt.Errorf("event: load %s: %w", eventID, err)
		}
		if !ev.CheckInEnabled {
			return apperr.Conflict(apperr.ReasonEventClosed, "event %q does not take check-ins", ev.Name)
		}
		now := time.Now()
		if now.Before(ev.StartAt) || !now.Before(ev.EndAt) {
			return apperr.Conflict(apperr.ReasonEventClosed, "event %q is not in progress", ev.Name)
		}

		var r models.EventRsvp
		err := tx.Where("event_id = ? AND application_id = ? AND active IS NOT NULL",
			eventID, app.ID).First(&r).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			active := true
			r = models.EventRsvp{
				ID:            uuid.New(),
				EventID:       ev.ID,
				ApplicationID: app.ID,
				Active:        &active,
				RsvpAt:        now,
			}
			if err := tx.Create(&r).Error; err != nil {
				return fmt.Errorf("event: auto rsvp: %w", err)
			}
			// Late walk-ins count toward the total even past capacity.
			if err := tx.Model(&models.RecruitmentEvent{}).Where("id = ?", ev.ID).
				Update("rsvp_count", gorm.Expr("rsvp_count + 1")).Error; err != nil {
				return fmt.Errorf("event: count walk-in: %w", err)
			}
		case err != nil:
			return fmt.Errorf("event: load rsvp: %w", err)
		}

		if r.CheckedInAt != nil {
			out = r
			return nil
		}
		r.CheckedInAt = &now
		r.AttendedAt = &now
		r.ProofPhotoRef = proof.PhotoRef
		r.ProofLat = proof.Lat
		r.ProofLng = proof.Lng
		if err := tx.Model(&models.EventRsvp{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
			"checked_in_at":   now,
			"attended_at":     now,
			"proof_photo_ref": proof.PhotoRef,
			"proof_lat":       proof.Lat,
			"proof_lng":       proof.Lng,
		}).Error; err != nil {
			return fmt.Errorf("event: record check-in: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Attendance returns a per-event summary for admins.
type Attendance struct {
	RsvpCount    int64
	CheckedIn    int64
	CancelledRsv int64
}

// Attendees lists an event's active RSVPs, checked-in first.
func Attendees(db *gorm.DB, eventID uuid.UUID) ([]models.EventRsvp, error) {
	var rs []models.EventRsvp
	err := db.Where("event_id = ? AND active IS NOT NULL", eventID).
		Order("checked_in_at IS NULL, rsvp_at ASC").Find(&rs).Error
	if err != nil {
		return nil, fmt.Errorf("event: attendees: %w", err)
	}
	return rs, nil
}

// Summarize counts an event's RSVPs, check-ins, and cancellations.
func Summarize(db *gorm.DB, eventID uuid.UUID) (*Attendance, error) {
	var a Attendance
	base := db.Model(&models.EventRsvp{}).Where("event_id = ?", eventID)
	if err := base.Session(&gorm.Session{}).Where("active IS NOT NULL").Count(&a.RsvpCount).Error; err != nil {
		return nil, fmt.Errorf("event: count rsvps: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Where("checked_in_at IS NOT NULL").Count(&a.CheckedIn).Error; err != nil {
		return nil, fmt.Errorf("event: count check-ins: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Where("active IS NULL").Count(&a.CancelledRsv).Error; err != nil {
		return nil, fmt.Errorf("event: count cancellations: %w", err)
	}
	return &a, nil
}
