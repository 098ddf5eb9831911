package models

import (
	"time"

	"github.com/google/uuid"
)

// Slot kinds. Coffee chats are open to any stage; interview slots are
// offered only to applicants whose stage matches the round.
const (
	SlotCoffeeChat      = "coffee_chat"
	SlotInterviewRound1 = "interview_round1"
	SlotInterviewRound2 = "interview_round2"
)

// Booking statuses.
const (
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
)

// RecruitmentSlot is a bookable time window. BookedCount is maintained by
// conditional updates inside the booking transaction; it never exceeds
// MaxBookings.
type RecruitmentSlot struct {
	ID              uuid.UUID `gorm:"type:char(36);primaryKey"`
	CycleID         uuid.UUID `gorm:"type:char(36);index;not null"`
	Kind            string    `gorm:"size:24;index;not null"`
	StartTime       time.Time `gorm:"not null;index"`
	DurationMinutes int       `gorm:"not null"`
	HostName        string    `gorm:"size:128"`
	HostEmail       string    `gorm:"size:255"`
	Location        string    `gorm:"size:255"`
	MeetingURL      string    `gorm:"size:512"`
	MaxBookings     int       `gorm:"not null;default:1"`
	BookedCount     int       `gorm:"not null;default:0"`
	ForTrack        string    `gorm:"size:16"` // empty = any track
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SlotBooking is an applicant's claim on a slot. Rows are never deleted;
// cancellation is a status change. Active mirrors the confirmed status as
// a nullable flag so the (application, kind, active) unique index enforces
// at most one confirmed booking per kind while permitting any number of
// cancelled ones (NULLs never collide).
type SlotBooking struct {
	ID              uuid.UUID `gorm:"type:char(36);primaryKey"`
	SlotID          uuid.UUID `gorm:"type:char(36);index;not null"`
	ApplicationID   uuid.UUID `gorm:"type:char(36);uniqueIndex:uniq_active_kind;not null"`
	SlotKind        string    `gorm:"size:24;uniqueIndex:uniq_active_kind;not null"`
	Active          *bool     `gorm:"uniqueIndex:uniq_active_kind"`
	Status          string    `gorm:"size:16;default:confirmed"`
	BookedAt        time.Time `gorm:"not null"`
	CancelledAt     *time.Time
	ReminderSentAt  *time.Time
	CalendarEventID string    `gorm:"size:128"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Slot RecruitmentSlot `gorm:"foreignKey:SlotID"`
}
