package models

import "time"

// Participation is the one-per-(participant, event) outcome record, written
// exactly once at event completion. Placement is NULL for participants who
// finished unranked; they still receive the participant reward tier.
type Participation struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	ParticipantID string `gorm:"not null;uniqueIndex:idx_participations_participant_event,priority:1" json:"participant_id"`
	EventID       string `gorm:"not null;index;uniqueIndex:idx_participations_participant_event,priority:2" json:"event_id"`
	Placement     *int   `json:"placement,omitempty"`

	// Set in the same transaction as this participant's reward grants and
	// skill update; a rerun of the distributor skips rewarded rows entirely.
	RewardedAt *time.Time `gorm:"index" json:"rewarded_at,omitempty"`

	Timestamps
}
