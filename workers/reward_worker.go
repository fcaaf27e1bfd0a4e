package workers

import (
	"context"
	"log"
	"time"

	"competition-ledger-system/models"
	"competition-ledger-system/services"

	"gorm.io/gorm"
)

// RewardWorker polls for completed events whose reward sweep has not
// finished and re-runs the distribution. Every grant is idempotent, so a
// sweep interrupted by a crash simply gets picked up again on the next tick
// with no duplicate effects.
type RewardWorker struct {
	DB       *gorm.DB
	Outcomes *services.OutcomeService
}

func NewRewardWorker(db *gorm.DB, outcomes *services.OutcomeService) *RewardWorker {
	return &RewardWorker{DB: db, Outcomes: outcomes}
}

// Poll runs until the context is cancelled.
func (w *RewardWorker) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[RewardWorker] stopping")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *RewardWorker) sweep() {
	var events []models.Event
	// Only events that still have unrewarded participations: an event with
	// no outcomes yet has nothing to sweep and stays untouched.
	err := w.DB.Where("status = ? AND rewards_distributed_at IS NULL", models.EventStatusCompleted).
		Where("EXISTS (SELECT 1 FROM participations p WHERE p.event_id = events.id AND p.rewarded_at IS NULL AND p.deleted_at IS NULL)").
		Order("updated_at ASC").
		Limit(20).
		Find(&events).Error
	if err != nil {
		log.Printf("[RewardWorker] DB error: %v", err)
		return
	}

	for _, ev := range events {
		summary, err := w.Outcomes.DistributeRewards(ev.ID)
		if err != nil {
			log.Printf("[RewardWorker] event %s: %v", ev.ID, err)
			continue
		}
		if summary.Granted > 0 || summary.Failed > 0 {
			log.Printf("[RewardWorker] event %s: granted=%d skipped=%d failed=%d",
				ev.ID, summary.Granted, summary.Skipped, summary.Failed)
		}
	}
}
