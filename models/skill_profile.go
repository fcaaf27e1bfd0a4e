package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SkillLevels is the structured rating state stored as jsonb. Rows written
// before the profile was normalized hold a bare number (the current level);
// Scan accepts both shapes and Value always emits the structured object, so
// legacy rows converge on the next write.
type SkillLevels struct {
	Baseline        float64 `json:"baseline"`
	CurrentLevel    float64 `json:"current_level"`
	CumulativeDelta float64 `json:"cumulative_delta"`
	UpdateCount     int64   `json:"update_count"`
}

func (l *SkillLevels) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*l = SkillLevels{}
		return nil
	default:
		return fmt.Errorf("skill levels: unsupported column type %T", value)
	}

	// Legacy shape: a bare scalar meaning the current level.
	var scalar float64
	if err := json.Unmarshal(raw, &scalar); err == nil {
		*l = SkillLevels{Baseline: scalar, CurrentLevel: scalar}
		return nil
	}

	var structured SkillLevels
	if err := json.Unmarshal(raw, &structured); err != nil {
		return fmt.Errorf("skill levels: decode: %w", err)
	}
	*l = structured
	return nil
}

func (l SkillLevels) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// SkillProfile is a participant's smoothed per-skill rating. Mutated in
// place by the skill rating updater only, always under the row lock of the
// owning profile.
type SkillProfile struct {
	ID            string      `gorm:"primaryKey;type:uuid" json:"id"`
	ParticipantID string      `gorm:"not null;uniqueIndex:idx_skill_profiles_participant_skill,priority:1" json:"participant_id"`
	Skill         string      `gorm:"type:varchar(64);not null;uniqueIndex:idx_skill_profiles_participant_skill,priority:2" json:"skill"`
	Levels        SkillLevels `gorm:"type:jsonb" json:"levels"`

	Timestamps
}
