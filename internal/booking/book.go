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

// DefaultCancelWindow is how long before a slot's start time cancellation
// closes, unless configured otherwise.
const DefaultCancelWindow = 5 * time.Hour

// Book claims a seat on a slot for an applicant. Capacity and the
// one-confirmed-booking-per-kind invariant are both enforced at commit
// time inside one transaction: the capacity check is a conditional
// increment whose RowsAffected is inspected, and the per-kind check is
// backed by the unique (application, kind, active) index, so two
// concurrent requests for the last seat cannot both succeed.
//
// Failures carry a specific reason: "slot full" vs "already booked" vs
// stage/track ineligibility.
func Book(db *gorm.DB, slotID uuid.UUID, app *models.Application) (*models.SlotBooking, error) {
	var b models.SlotBooking

	err := db.Transaction(func(tx *gorm.DB) error {
		var slot models.RecruitmentSlot
		if err := tx.Where("id = ?", slotID).First(&slot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("booking: slot not found: %s", slotID)
			}
			return fmt.Errorf("booking: load slot: %w", err)
		}

		if time.Now().After(slot.StartTime) {
			return apperr.Conflict(apperr.ReasonSlotFull, "slot has already started")
		}
		if !kindEligible(slot.Kind, app.Stage) {
			return apperr.Conflict(apperr.ReasonWrongStage,
				"stage %s cannot book %s slots", app.Stage, slot.Kind)
		}
		if slot.ForTrack != "" && slot.ForTrack != app.Track {
			return apperr.Conflict(apperr.ReasonWrongStage,
				"slot is reserved for the %s track", slot.ForTrack)
		}

		// Conditional increment: succeeds only while capacity remains.
		res := tx.Model(&models.RecruitmentSlot{}).
			Where("id = ? AND booked_count < max_bookings", slot.ID).
			Update("booked_count", gorm.Expr("booked_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("booking: reserve seat: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict(apperr.ReasonSlotFull,
				"slot is fully booked (%d/%d)", slot.MaxBookings, slot.MaxBookings)
		}

		active := true
		b = models.SlotBooking{
			ID:            uuid.New(),
			SlotID:        slot.ID,
			ApplicationID: app.ID,
			SlotKind:      slot.Kind,
			Active:        &active,
			Status:        models.BookingConfirmed,
			BookedAt:      time.Now(),
		}
		if err := tx.Create(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict(apperr.ReasonAlreadyBooked,
					"a confirmed %s booking already exists", slot.Kind)
			}
			return fmt.Errorf("booking: create booking: %w", err)
		}
		if err := tx.Create(&models.Notification{
			Recipient: app.Email,
			Kind:      models.NotifyBookingConfirmed,
			Context: fmt.Sprintf(`{"kind":%q,"start_time":%q,"location":%q}`,
				slot.Kind, slot.StartTime.Format(time.RFC3339), slot.Location),
			Status: models.NotifyPending,
		}).Error; err != nil {
			return fmt.Errorf("booking: enqueue notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBooking returns a booking with its slot preloaded.
func GetBooking(db *gorm.DB, id uuid.UUID) (*models.SlotBooking, error) {
	var b models.SlotBooking
	if err := db.Preload("Slot").Where("id = ?", id).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("booking: not found: %s", id)
		}
		return nil, fmt.Errorf("booking: get %s: %w", id, err)
	}
	return &b, nil
}

// ListForApplicant returns an applicant's bookings, newest first.
func ListForApplicant(db *gorm.DB, appID uuid.UUID) ([]models.SlotBooking, error) {
	var out []models.SlotBooking
	if err := db.Preload("Slot").Where("application_id = ?", appID).
		Order("booked_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("booking: list for applicant: %w", err)
	}
	return out, nil
}

// Cancel releases a confirmed booking. Permitted only while now is before
// the slot's start time minus the cancellation window; inside the window
// it fails with "too late to cancel". Cancelling an already-cancelled
// booking is a no-op. The row is never deleted.
func Cancel(db *gorm.DB, bookingID uuid.UUID, window time.Duration) (*models.SlotBooking, error) {
	if window <= 0 {
		window = DefaultCancelWindow
	}
	var b models.SlotBooking

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Slot").Where("id = ?", bookingID).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("booking: not found: %s", bookingID)
			}
			return fmt.Errorf("booking: load %s: %w", bookingID, err)
		}
		if b.Status == models.BookingCancelled {
			return nil // idempotent
		}
		if !time.Now().Before(b.Slot.StartTime.Add(-window)) {
			return apperr.Conflict(apperr.ReasonTooLateCancel,
				"cancellation closed %s before the slot starts", window)
		}

		now := time.Now()
		if err := tx.Model(&models.SlotBooking{}).Where("id = ?", b.ID).
			Updates(map[string]interface{}{
				"status":       models.BookingCancelled,
				"active":       nil,
				"cancelled_at": now,
			}).Error; err != nil {
			return fmt.Errorf("booking: cancel %s: %w", b.ID, err)
		}
		// Free the seat; guard against underflow on replayed cancels.
		if err := tx.Model(&models.RecruitmentSlot{}).
			Where("id = ? AND booked_count > 0", b.SlotID).
			Update("booked_count", gorm.Expr("booked_count - 1")).Error; err != nil {
			return fmt.Errorf("booking: release seat: %w", err)
		}
		var app models.Application
		if err := tx.Select("email").Where("id = ?", b.ApplicationID).First(&app).Error; err != nil {
			return fmt.Errorf("booking: load applicant: %w", err)
		}
		if err := tx.Create(&models.Notification{
			Recipient: app.Email,
			Kind:      models.NotifyBookingCancelled,
			Context: fmt.Sprintf(`{"kind":%q,"start_time":%q}`,
				b.SlotKind, b.Slot.StartTime.Format(time.RFC3339)),
			Status: models.NotifyPending,
		}).Error; err != nil {
			return fmt.Errorf("booking: enqueue notification: %w", err)
		}
		b.Status = models.BookingCancelled
		b.Active = nil
		b.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}
