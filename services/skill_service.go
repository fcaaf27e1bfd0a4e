package services

import (
	"errors"

	"competition-ledger-system/config"
	"competition-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SkillService applies bounded exponential-moving-average updates to a
// participant's per-skill rating.
type SkillService struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewSkillService(db *gorm.DB, cfg *config.Config) *SkillService {
	return &SkillService{DB: db, Cfg: cfg}
}

// Smooth blends the current level with new evidence:
//
//	new = clamp(current*(1-alpha) + evidence*alpha, min, max)
func Smooth(current, evidence, alpha, min, max float64) float64 {
	next := current*(1-alpha) + evidence*alpha
	if next < min {
		return min
	}
	if next > max {
		return max
	}
	return next
}

// ApplyOutcome updates the participant's rating for the configured default
// skill in its own transaction.
func (s *SkillService) ApplyOutcome(participantID string, evidence float64) (*models.SkillProfile, error) {
	var profile *models.SkillProfile
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		p, err := s.applyInTx(tx, participantID, s.Cfg.Skill.DefaultSkill, evidence)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// applyInTx mutates the profile under its row lock so that two outcomes for
// the same participant processed concurrently cannot lose an update. Reads
// tolerate the legacy bare-scalar shape (models.SkillLevels.Scan) and every
// write emits the structured shape, normalizing old rows as they are touched.
func (s *SkillService) applyInTx(tx *gorm.DB, participantID, skill string, evidence float64) (*models.SkillProfile, error) {
	var profile models.SkillProfile
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("participant_id = ? AND skill = ?", participantID, skill).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		baseline := Smooth(s.Cfg.Skill.MinLevel, evidence, s.Cfg.Skill.Alpha, s.Cfg.Skill.MinLevel, s.Cfg.Skill.MaxLevel)
		profile = models.SkillProfile{
			ID:            uuid.NewString(),
			ParticipantID: participantID,
			Skill:         skill,
			Levels: models.SkillLevels{
				Baseline:        s.Cfg.Skill.MinLevel,
				CurrentLevel:    baseline,
				CumulativeDelta: baseline - s.Cfg.Skill.MinLevel,
				UpdateCount:     1,
			},
		}
		// Savepoint around the insert: losing a first-update race to the
		// (participant, skill) index must not poison the caller's
		// transaction. The loser re-reads under the lock and applies its
		// evidence on top of the winner's row.
		createErr := tx.Transaction(func(inner *gorm.DB) error {
			return inner.Create(&profile).Error
		})
		if createErr == nil {
			return &profile, nil
		}
		if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return nil, createErr
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("participant_id = ? AND skill = ?", participantID, skill).
			First(&profile).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	prev := profile.Levels.CurrentLevel
	next := Smooth(prev, evidence, s.Cfg.Skill.Alpha, s.Cfg.Skill.MinLevel, s.Cfg.Skill.MaxLevel)
	profile.Levels.CurrentLevel = next
	profile.Levels.CumulativeDelta += next - prev
	profile.Levels.UpdateCount++

	if err := tx.Model(&profile).Update("levels", profile.Levels).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfile returns the participant's profile for the default skill.
func (s *SkillService) GetProfile(participantID string) (*models.SkillProfile, error) {
	var profile models.SkillProfile
	err := s.DB.Where("participant_id = ? AND skill = ?", participantID, s.Cfg.Skill.DefaultSkill).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
