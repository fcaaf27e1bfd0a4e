package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"competition-ledger-system/config"
	"competition-ledger-system/utils"

	"gorm.io/gorm"
)

// AuditService re-validates every ledger invariant over the live data set
// with aggregate queries. It is read-only, never on the request path, and
// safe to run concurrently with live traffic. A non-empty report means a
// guard (lock or constraint) failed and needs diagnosis.
type AuditService struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewAuditService(db *gorm.DB, cfg *config.Config) *AuditService {
	return &AuditService{DB: db, Cfg: cfg}
}

type Violation struct {
	Invariant string `json:"invariant"`
	Detail    string `json:"detail"`
}

type AuditReport struct {
	RanAt      time.Time   `json:"ran_at"`
	Violations []Violation `json:"violations"`
}

func (r *AuditReport) add(invariant, format string, args ...interface{}) {
	r.Violations = append(r.Violations, Violation{
		Invariant: invariant,
		Detail:    fmt.Sprintf(format, args...),
	})
}

// Run executes the full sweep and returns the report.
func (s *AuditService) Run() (*AuditReport, error) {
	report := &AuditReport{RanAt: time.Now()}

	checks := []func(*AuditReport) error{
		s.checkActiveEnrollments,
		s.checkBalances,
		s.checkSessionCapacity,
		s.checkWaitlistPositions,
		s.checkParticipations,
		s.checkBadges,
		s.checkIdempotencyKeys,
		s.checkSkillBounds,
	}
	for _, check := range checks {
		if err := check(report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// RunAndArchive runs the sweep, logs violations and, when an archive bucket
// is configured, uploads the JSON report to object storage.
func (s *AuditService) RunAndArchive() (*AuditReport, error) {
	report, err := s.Run()
	if err != nil {
		return nil, err
	}
	for _, v := range report.Violations {
		log.Printf("[Auditor] invariant %s violated: %s", v.Invariant, v.Detail)
	}

	if s.Cfg.Audit.ArchiveBucket != "" {
		body, err := json.Marshal(report)
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("audits/%s.json", report.RanAt.UTC().Format("2006-01-02T15-04-05"))
		if err := utils.UploadJSON(s.Cfg.Audit.ArchiveBucket, key, body); err != nil {
			log.Printf("[Auditor] archive upload failed: %v", err)
		}
	}
	return report, nil
}

// At most one active enrollment per (participant, event).
func (s *AuditService) checkActiveEnrollments(report *AuditReport) error {
	var rows []struct {
		ParticipantID string
		EventID       string
		N             int64
	}
	err := s.DB.Raw(`
		SELECT participant_id, event_id, COUNT(*) AS n
		FROM enrollments
		WHERE active AND deleted_at IS NULL
		GROUP BY participant_id, event_id
		HAVING COUNT(*) > 1`).Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, r := range rows {
		report.add("one_active_enrollment", "participant %s has %d active enrollments in event %s", r.ParticipantID, r.N, r.EventID)
	}
	return nil
}

// Account balance never negative.
func (s *AuditService) checkBalances(report *AuditReport) error {
	var rows []struct {
		ParticipantID string
		Balance       int64
	}
	err := s.DB.Raw(`SELECT participant_id, balance FROM accounts WHERE balance < 0`).Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, r := range rows {
		report.add("non_negative_balance", "participant %s has balance %d", r.ParticipantID, r.Balance)
	}
	return nil
}

// Confirmed bookings per session never exceed capacity.
func (s *AuditService) checkSessionCapacity(report *AuditReport) error {
	var rows []struct {
		SessionID string
		Capacity  int64
		N         int64
	}
	err := s.DB.Raw(`
		SELECT s.id AS session_id, s.capacity, COUNT(b.id) AS n
		FROM sessions s
		JOIN bookings b ON b.session_id = s.id AND b.status = 'confirmed' AND b.deleted_at IS NULL
		GROUP BY s.id, s.capacity
		HAVING COUNT(b.id) > s.capacity`).Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, r := range rows {
		report.add("session_capacity", "session %s has %d confirmed bookings for capacity %d", r.SessionID, r.N, r.Capacity)
	}
	return nil
}

// Waitlist positions unique and contiguous from 1 per session.
func (s *AuditService) checkWaitlistPositions(report *AuditReport) error {
	var dupes []struct {
		SessionID string
		Position  int64
		N         int64
	}
	err := s.DB.Raw(`
		SELECT session_id, waitlist_position AS position, COUNT(*) AS n
		FROM bookings
		WHERE status = 'waitlisted' AND deleted_at IS NULL
		GROUP BY session_id, waitlist_position
		HAVING COUNT(*) > 1`).Scan(&dupes).Error
	if err != nil {
		return err
	}
	for _, r := range dupes {
		report.add("waitlist_unique_position", "session %s has %d waitlisted bookings at position %d", r.SessionID, r.N, r.Position)
	}

	var gaps []struct {
		SessionID string
		MinPos    int64
		MaxPos    int64
		N         int64
	}
	err = s.DB.Raw(`
		SELECT session_id, MIN(waitlist_position) AS min_pos, MAX(waitlist_position) AS max_pos, COUNT(*) AS n
		FROM bookings
		WHERE status = 'waitlisted' AND deleted_at IS NULL
		GROUP BY session_id
		HAVING MIN(waitlist_position) <> 1 OR MAX(waitlist_position) <> COUNT(*)`).Scan(&gaps).Error
	if err != nil {
		return err
	}
	for _, r := range gaps {
		report.add("waitlist_contiguous", "session %s waitlist spans %d..%d over %d bookings", r.SessionID, r.MinPos, r.MaxPos, r.N)
	}
	return nil
}

// At most one participation per (participant, event).
func (s *AuditService) checkParticipations(report *AuditReport) error {
	var rows []struct {
		ParticipantID string
		EventID       string
		N             int64
	}
	err := s.DB.Raw(`
		SELECT participant_id, event_id, COUNT(*) AS n
		FROM participations
		WHERE deleted_at IS NULL
		GROUP BY participant_id, event_id
		HAVING COUNT(*) > 1`).Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, r := range rows {
		report.add("one_participation", "participant %s has %d participations in event %s", r.ParticipantID, r.N, r.EventID)
	}
	return nil
}

// At most one badge per (participant, event, type).
func (s *AuditService) checkBadges(report *AuditReport) error {
	var rows []struct {
		ParticipantID string
		EventID       string
		BadgeType     string
		N             int64
	}
	err := s.DB.Raw(`
		SELECT participant_id, event_id, badge_type, COUNT(*) AS n
		FROM badges
		GROUP BY participant_id, event_id, badge_type
		HAVING COUNT(*) > 1`).Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, r := range rows {
		report.add("one_badge", "participant %s has %d %s badges for event %s", r.ParticipantID, r.N, r.BadgeType, r.EventID)
	}
	return nil
}

// At most one ledger/rating transaction per idempotency key.
func (s *AuditService) checkIdempotencyKeys(report *AuditReport) error {
	for _, table := range []string{"ledger_transactions", "rating_transactions"} {
		var rows []struct {
			IdempotencyKey string
			N              int64
		}
		err := s.DB.Raw(fmt.Sprintf(`
			SELECT idempotency_key, COUNT(*) AS n
			FROM %s
			GROUP BY idempotency_key
			HAVING COUNT(*) > 1`, table)).Scan(&rows).Error
		if err != nil {
			return err
		}
		for _, r := range rows {
			report.add("unique_idempotency_key", "%s key %s appears %d times", table, r.IdempotencyKey, r.N)
		}
	}
	return nil
}

// Skill level always within the configured bounds. Legacy rows
// store a bare number instead of the structured object; read both shapes.
func (s *AuditService) checkSkillBounds(report *AuditReport) error {
	var rows []struct {
		ParticipantID string
		Skill         string
		Level         float64
	}
	err := s.DB.Raw(`
		SELECT participant_id, skill,
			CASE WHEN jsonb_typeof(levels) = 'number'
				THEN levels::text::float
				ELSE (levels->>'current_level')::float
			END AS level
		FROM skill_profiles
		WHERE deleted_at IS NULL
			AND (CASE WHEN jsonb_typeof(levels) = 'number'
				THEN levels::text::float
				ELSE (levels->>'current_level')::float
			END) NOT BETWEEN ? AND ?`,
		s.Cfg.Skill.MinLevel, s.Cfg.Skill.MaxLevel).Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, r := range rows {
		report.add("skill_level_bounds", "participant %s skill %s level %.2f outside [%.2f, %.2f]",
			r.ParticipantID, r.Skill, r.Level, s.Cfg.Skill.MinLevel, s.Cfg.Skill.MaxLevel)
	}
	return nil
}
