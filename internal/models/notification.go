package models

import "time"

// Notification statuses.
const (
	NotifyPending = "pending"
	NotifySent    = "sent"
	NotifyFailed  = "failed"
)

// Notification kinds.
const (
	NotifyCutoffAdvance    = "cutoff_advance"
	NotifyCutoffReject     = "cutoff_reject"
	NotifyBookingConfirmed = "booking_confirmed"
	NotifyBookingCancelled = "booking_cancelled"
	NotifyRsvpConfirmed    = "rsvp_confirmed"
	NotifySlotReminder     = "slot_reminder"
)

// Notification is an outbox row. Core operations enqueue rows after their
// transaction commits; the flusher delivers them and records the outcome.
// Delivery failure never affects the core state that enqueued the row.
type Notification struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Recipient string    `gorm:"size:255;not null"`
	Kind      string    `gorm:"size:32;index;not null"`
	Context   string    `gorm:"type:text"` // JSON payload for the sender
	Status    string    `gorm:"size:16;default:pending;index"`
	Attempts  int       `gorm:"default:0"`
	LastError string    `gorm:"type:text"`
	SentAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
