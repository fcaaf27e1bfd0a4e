package models

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusWaitlisted BookingStatus = "waitlisted"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

// Booking is a participant's claim on a session. Waitlisted bookings carry a
// dense position 1..K unique within the session; confirmed and cancelled
// bookings carry no position. Cancellation is a soft removal so the row
// stays around for attendance history.
type Booking struct {
	ID            string        `gorm:"primaryKey;type:uuid" json:"id"`
	SessionID     string        `gorm:"not null;index;uniqueIndex:idx_bookings_waitlist_position,where:status = 'waitlisted',priority:1" json:"session_id"`
	EventID       string        `gorm:"index;not null" json:"event_id"`
	EnrollmentID  string        `gorm:"index;not null" json:"enrollment_id"`
	ParticipantID string        `gorm:"index;not null" json:"participant_id"`
	Status        BookingStatus `gorm:"type:varchar(16);not null;default:'confirmed'" json:"status"`

	WaitlistPosition *int       `gorm:"uniqueIndex:idx_bookings_waitlist_position,where:status = 'waitlisted',priority:2" json:"waitlist_position,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`

	Timestamps
}

// Attendance records that a booking was attended, at most once per booking.
type Attendance struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	BookingID  string    `gorm:"uniqueIndex;not null" json:"booking_id"`
	SessionID  string    `gorm:"index;not null" json:"session_id"`
	RecordedAt time.Time `gorm:"autoCreateTime" json:"recorded_at"`
}
