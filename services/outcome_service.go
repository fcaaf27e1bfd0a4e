package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"competition-ledger-system/config"
	"competition-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutcomeService records final placements and distributes their rewards.
// Every grant carries an idempotency key derived from (event, participant),
// so re-running a distribution after a crash mid-sweep cannot duplicate any
// effect.
type OutcomeService struct {
	DB     *gorm.DB
	Cfg    *config.Config
	Ledger *LedgerService
	Skill  *SkillService
}

func NewOutcomeService(db *gorm.DB, cfg *config.Config, ledger *LedgerService, skill *SkillService) *OutcomeService {
	return &OutcomeService{DB: db, Cfg: cfg, Ledger: ledger, Skill: skill}
}

// RecordOutcome writes the participation row exactly once. A second call for
// the same (participant, event) pair is rejected as already-recorded;
// outcomes are write-once, never overwritten.
func (s *OutcomeService) RecordOutcome(participantID, eventID string, placement *int) (*models.Participation, error) {
	var event models.Event
	if err := s.DB.Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if event.Status != models.EventStatusInProgress && event.Status != models.EventStatusCompleted {
		return nil, ErrEventNotCompleted
	}

	part := models.Participation{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		EventID:       eventID,
		Placement:     placement,
	}
	if err := s.DB.Create(&part).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrOutcomeAlreadyRecorded
		}
		return nil, err
	}
	return &part, nil
}

// RewardSummary reports one distribution sweep over an event.
type RewardSummary struct {
	EventID  string   `json:"event_id"`
	Granted  int      `json:"granted"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
}

// DistributeRewards sweeps every participation of a completed event and
// grants currency, experience, a badge and the skill-rating update for each.
// Each participant is its own atomic unit: one failure is reported in the
// summary and does not abort the rest of the sweep.
func (s *OutcomeService) DistributeRewards(eventID string) (*RewardSummary, error) {
	var event models.Event
	if err := s.DB.Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if event.Status != models.EventStatusCompleted {
		return nil, ErrEventNotCompleted
	}

	var participations []models.Participation
	if err := s.DB.Where("event_id = ?", eventID).Order("created_at ASC").Find(&participations).Error; err != nil {
		return nil, err
	}

	summary := RewardSummary{EventID: eventID}
	for _, part := range participations {
		if part.RewardedAt != nil {
			summary.Skipped++
			continue
		}
		if err := s.rewardParticipant(&event, &part); err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %v", part.ParticipantID, err))
			log.Printf("[Rewards] event %s participant %s: %v", eventID, part.ParticipantID, err)
			continue
		}
		summary.Granted++
	}

	if summary.Failed == 0 {
		now := time.Now()
		if err := s.DB.Model(&event).Update("rewards_distributed_at", &now).Error; err != nil {
			return nil, err
		}
	}
	return &summary, nil
}

// rewardParticipant grants one participant's rewards atomically. The
// participation's rewarded_at flag commits with the grants, so the skill
// update, the one non-keyed effect, is applied at most once as well.
func (s *OutcomeService) rewardParticipant(event *models.Event, part *models.Participation) error {
	tier := s.Cfg.TierForPlacement(part.Placement)

	return s.DB.Transaction(func(tx *gorm.DB) error {
		// Lock the participation row; a concurrent sweep of the same event
		// must not reward the same participant twice.
		var locked models.Participation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", part.ID).
			First(&locked).Error; err != nil {
			return err
		}
		if locked.RewardedAt != nil {
			return nil
		}

		if tier.Currency > 0 {
			key := fmt.Sprintf("reward:%s:%s:currency", event.ID, part.ParticipantID)
			if _, err := s.Ledger.Credit(tx, part.ParticipantID, tier.Currency, key, "placement_reward"); err != nil {
				return err
			}
		}

		if tier.XP > 0 {
			key := fmt.Sprintf("reward:%s:%s:xp", event.ID, part.ParticipantID)
			if _, err := s.Ledger.GrantRating(tx, part.ParticipantID, tier.XP, key, "placement_reward"); err != nil {
				return err
			}
		}

		if tier.Badge != "" {
			badge := models.Badge{
				ID:            uuid.NewString(),
				ParticipantID: part.ParticipantID,
				EventID:       event.ID,
				BadgeType:     tier.Badge,
				Name:          tier.Name,
				Metadata:      fmt.Sprintf(`{"event_id":%q}`, event.ID),
			}
			// Already-granted means the constraint fires; swallow it.
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "participant_id"}, {Name: "event_id"}, {Name: "badge_type"},
				},
				DoNothing: true,
			}).Create(&badge).Error; err != nil {
				return err
			}
		}

		if _, err := s.Skill.applyInTx(tx, part.ParticipantID, s.Cfg.Skill.DefaultSkill, tier.Evidence); err != nil {
			return err
		}

		now := time.Now()
		return tx.Model(&models.Participation{}).
			Where("id = ?", part.ID).
			Update("rewarded_at", &now).Error
	})
}
