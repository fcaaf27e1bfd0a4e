package models

import "time"

// EventStatus drives which operations are legal on an event.
type EventStatus string

const (
	EventStatusDraft      EventStatus = "draft"
	EventStatusOpen       EventStatus = "open"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusArchived   EventStatus = "archived"
)

// Event is a capacity-bounded competitive instance.
type Event struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	Slug        string      `gorm:"uniqueIndex;not null" json:"slug"`
	Name        string      `gorm:"not null" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	OrganizerID string      `gorm:"index;not null" json:"organizer_id"`
	Capacity    int         `gorm:"not null;default:0" json:"capacity"` // 0 = unlimited
	Cost        int64       `gorm:"not null;default:0" json:"cost"`
	Status      EventStatus `gorm:"type:varchar(16);not null;default:'draft'" json:"status"`
	StartTime   time.Time   `gorm:"not null" json:"start_time"`
	EndTime     time.Time   `json:"end_time"`

	// Set once a reward sweep finished the whole event without failures.
	// A crash mid-sweep leaves it NULL so the reward worker picks the
	// event up again; every grant is idempotent, so the rerun is safe.
	RewardsDistributedAt *time.Time `gorm:"index" json:"rewards_distributed_at,omitempty"`

	Timestamps

	Sessions []Session `json:"sessions,omitempty" gorm:"foreignKey:EventID"`

	// Calculated fields (not stored in DB)
	EnrolledCount  int64 `json:"enrolled_count,omitempty" gorm:"-"`
	AvailableSlots int64 `json:"available_slots,omitempty" gorm:"-"`
}

// Session is a scheduled slot within an event. Rows are ingested from the
// external scheduling component; this service only books against them.
type Session struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	EventID   string    `gorm:"index;not null" json:"event_id"`
	Name      string    `json:"name"`
	Capacity  int       `gorm:"not null" json:"capacity"`
	StartTime time.Time `gorm:"not null" json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Timestamps
}
