package models

import "time"

type EnrollmentStatus string

const (
	EnrollmentStatusApproved  EnrollmentStatus = "approved"
	EnrollmentStatusWithdrawn EnrollmentStatus = "withdrawn"
)

// Enrollment is a participant's claim on an event. Rows are never deleted;
// withdrawing flips Active off and keeps the row as audit trail.
//
// The partial unique index on (participant_id, event_id) WHERE active is the
// second line of defense behind the event row lock: if the lock is ever
// bypassed, the constraint fires at commit and the violation is translated
// into a conflict result instead of a duplicate enrollment.
type Enrollment struct {
	ID            string           `gorm:"primaryKey;type:uuid" json:"id"`
	ParticipantID string           `gorm:"not null;uniqueIndex:idx_enrollments_one_active,where:active,priority:1" json:"participant_id"`
	EventID       string           `gorm:"not null;index;uniqueIndex:idx_enrollments_one_active,where:active,priority:2" json:"event_id"`
	Active        bool             `gorm:"not null;default:true" json:"active"`
	Status        EnrollmentStatus `gorm:"type:varchar(16);not null;default:'approved'" json:"status"`
	CostPaid      int64            `gorm:"not null;default:0" json:"cost_paid"`
	RefundGranted int64            `gorm:"not null;default:0" json:"refund_granted"`
	WithdrawnAt   *time.Time       `json:"withdrawn_at,omitempty"`

	Timestamps
}
