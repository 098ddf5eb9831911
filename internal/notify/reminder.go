package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gatehouse/gatehouse/internal/models"
)

// EnqueueSlotReminders writes a reminder outbox row for every confirmed
// booking whose slot starts within the lead window and has not been
// reminded yet. Each booking is stamped with reminder_sent_at in the same
// transaction as its outbox row, so reruns never double-remind.
func EnqueueSlotReminders(db *gorm.DB, lead time.Duration) (int, error) {
	now := time.Now()
	horizon := now.Add(lead)

	var bookings []models.SlotBooking
	err := db.Preload("Slot").
		Joins("JOIN recruitment_slots ON recruitment_slots.id = slot_bookings.slot_id").
		Where("slot_bookings.status = ?", models.BookingConfirmed).
		Where("slot_bookings.reminder_sent_at IS NULL").
		Where("recruitment_slots.start_time > ? AND recruitment_slots.start_time <= ?", now, horizon).
		Find(&bookings).Error
	if err != nil {
		return 0, fmt.Errorf("notify: find due bookings: %w", err)
	}

	enqueued := 0
	for _, b := range bookings {
		b := b
		err := db.Transaction(func(tx *gorm.DB) error {
			// Re-check under the transaction; a concurrent run may have
			// claimed this booking already.
			res := tx.Model(&models.SlotBooking{}).
				Where("id = ? AND reminder_sent_at IS NULL", b.ID).
				Update("reminder_sent_at", now)
			if res.Error != nil {
				return fmt.Errorf("notify: stamp reminder on %s: %w", b.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return nil
			}

			var app models.Application
			if err := tx.Select("email").Where("id = ?", b.ApplicationID).First(&app).Error; err != nil {
				return fmt.Errorf("notify: load applicant for %s: %w", b.ID, err)
			}
			ctxJSON, _ := json.Marshal(map[string]string{
				"kind":       b.SlotKind,
				"start_time": b.Slot.StartTime.Format(time.RFC3339),
			})
			if err := Enqueue(tx, app.Email, models.NotifySlotReminder, string(ctxJSON)); err != nil {
				return err
			}
			enqueued++
			return nil
		})
		if err != nil {
			return enqueued, err
		}
	}
	return enqueued, nil
}
