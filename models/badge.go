package models

import "time"

// BadgeType codes granted by the reward distributor per placement tier.
const (
	BadgeTypeChampion    = "CHAMPION"
	BadgeTypeRunnerUp    = "RUNNER_UP"
	BadgeTypePodium      = "PODIUM"
	BadgeTypeParticipant = "PARTICIPANT"
)

// Badge is a one-per-(participant, event, type) award. The composite unique
// index is the idempotency guard: a second grant attempt hits the constraint
// and is swallowed as already-granted.
type Badge struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	ParticipantID string    `gorm:"not null;uniqueIndex:idx_badges_participant_event_type,priority:1" json:"participant_id"`
	EventID       string    `gorm:"not null;index;uniqueIndex:idx_badges_participant_event_type,priority:2" json:"event_id"`
	BadgeType     string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_badges_participant_event_type,priority:3" json:"badge_type"`
	Name          string    `gorm:"not null" json:"name"`
	AwardedAt     time.Time `gorm:"autoCreateTime" json:"awarded_at"`
	Metadata      string    `gorm:"type:jsonb" json:"metadata,omitempty"`
}
