package models

import (
	"time"

	"github.com/google/uuid"
)

// RecruitmentEvent is an attendable event (info session, social) with
// optional RSVP capacity and an optional live check-in window.
type RecruitmentEvent struct {
	ID             uuid.UUID `gorm:"type:char(36);primaryKey"`
	CycleID        uuid.UUID `gorm:"type:char(36);index;not null"`
	Name           string    `gorm:"not null"`
	Description    string    `gorm:"type:text"`
	Location       string    `gorm:"size:255"`
	StartAt        time.Time `gorm:"not null"`
	EndAt          time.Time `gorm:"not null"`
	RsvpEnabled    bool      `gorm:"default:true"`
	CheckInEnabled bool      `gorm:"default:false"`
	Capacity       int       `gorm:"default:0"` // 0 = unbounded
	RsvpCount      int       `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EventRsvp ties an applicant to an event. Check-in fields are recorded on
// the same row; a check-in with no prior RSVP auto-creates one. Active
// works like SlotBooking.Active: non-NULL while the RSVP stands, NULL once
// cancelled, so the unique index admits re-RSVPs after cancellation.
type EventRsvp struct {
	ID            uuid.UUID `gorm:"type:char(36);primaryKey"`
	EventID       uuid.UUID `gorm:"type:char(36);uniqueIndex:uniq_event_applicant;not null"`
	ApplicationID uuid.UUID `gorm:"type:char(36);uniqueIndex:uniq_event_applicant;not null"`
	Active        *bool     `gorm:"uniqueIndex:uniq_event_applicant"`
	RsvpAt        time.Time
	CancelledAt   *time.Time
	CheckedInAt   *time.Time
	AttendedAt    *time.Time
	ProofPhotoRef string    `gorm:"size:512"`
	ProofLat      *float64
	ProofLng      *float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
