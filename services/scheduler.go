// services/scheduler.go
package services

import (
	"log"
	"time"

	"competition-ledger-system/models"

	"github.com/go-co-op/gocron/v2"
)

// CompleteElapsedEvents moves in-progress events past their end time to
// completed. The update re-checks the status so a transition committed
// between the read and the write is not clobbered.
func (s *EventService) CompleteElapsedEvents() {
	var events []models.Event
	now := time.Now()
	err := s.DB.Where("status = ? AND end_time <= ?", models.EventStatusInProgress, now).
		Find(&events).Error
	if err != nil {
		log.Printf("[Scheduler] DB error: %v", err)
		return
	}

	for _, ev := range events {
		res := s.DB.Model(&models.Event{}).
			Where("id = ? AND status = ?", ev.ID, models.EventStatusInProgress).
			Update("status", models.EventStatusCompleted)
		if res.Error != nil {
			log.Printf("[Scheduler] Failed to complete event %s: %v", ev.ID, res.Error)
		} else if res.RowsAffected > 0 {
			log.Printf("[Scheduler] Event completed: %s", ev.Name)
		}
	}
}

// StartCompletionScheduler runs the completion sweep once a minute.
// Completed events are what the reward worker sweeps, so this is the
// hand-off point from live play to the reward path.
func (s *EventService) StartCompletionScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(s.CompleteElapsedEvents),
	)
}

// StartAuditScheduler runs the invariant sweep on the configured interval.
func (s *AuditService) StartAuditScheduler() {
	interval := time.Duration(s.Cfg.Audit.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			report, err := s.RunAndArchive()
			if err != nil {
				log.Printf("[Auditor] sweep failed: %v", err)
				return
			}
			if len(report.Violations) == 0 {
				log.Printf("[Auditor] sweep clean")
			} else {
				log.Printf("[Auditor] sweep found %d violations", len(report.Violations))
			}
		}),
	)
}
