package services

import (
	"errors"
	"fmt"
	"time"

	"competition-ledger-system/config"
	"competition-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnrollmentService admits and withdraws participants. All multi-step
// decisions happen after the relevant row lock is held; lock order is fixed
// as event before enrollment before session, so concurrent enroll/withdraw
// traffic on one event cannot deadlock.
type EnrollmentService struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Ledger   *LedgerService
	Bookings *BookingService
}

func NewEnrollmentService(db *gorm.DB, cfg *config.Config, ledger *LedgerService, bookings *BookingService) *EnrollmentService {
	return &EnrollmentService{DB: db, Cfg: cfg, Ledger: ledger, Bookings: bookings}
}

// Enroll admits the participant into the event: event row lock, then status,
// duplicate and capacity checks, then the debit, the enrollment row and its
// session bookings, all in one transaction. Any failure rolls everything
// back; partial enrollment is never observable.
func (s *EnrollmentService) Enroll(participantID, eventID string) (*models.Enrollment, error) {
	var enrollment *models.Enrollment
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// The event lock serializes every enroll/withdraw on this event and
		// must come before any read used for a decision below.
		var event models.Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", eventID).
			First(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		if event.Status != models.EventStatusOpen {
			return ErrEventNotOpen
		}

		// Duplicate check under the lock, never before it.
		var active int64
		if err := tx.Model(&models.Enrollment{}).
			Where("participant_id = ? AND event_id = ? AND active", participantID, eventID).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrAlreadyEnrolled
		}

		if event.Capacity > 0 {
			var enrolled int64
			if err := tx.Model(&models.Enrollment{}).
				Where("event_id = ? AND active AND status = ?", eventID, models.EnrollmentStatusApproved).
				Count(&enrolled).Error; err != nil {
				return err
			}
			if enrolled >= int64(event.Capacity) {
				return ErrEventFull
			}
		}

		// The attempt counter makes re-enrollment after a withdrawal a fresh
		// charge while keeping a racing duplicate of the same attempt on the
		// same idempotency key.
		var attempts int64
		if err := tx.Model(&models.Enrollment{}).
			Where("participant_id = ? AND event_id = ?", participantID, eventID).
			Count(&attempts).Error; err != nil {
			return err
		}
		debitKey := fmt.Sprintf("enroll:%s:%s:%d", eventID, participantID, attempts)

		if event.Cost > 0 {
			if _, err := s.Ledger.Debit(tx, participantID, event.Cost, debitKey, "enrollment_fee"); err != nil {
				return err
			}
		}

		enr := models.Enrollment{
			ID:            uuid.NewString(),
			ParticipantID: participantID,
			EventID:       eventID,
			Active:        true,
			Status:        models.EnrollmentStatusApproved,
			CostPaid:      event.Cost,
		}
		if err := tx.Create(&enr).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Constraint backstop fired despite the lock.
				return ErrAlreadyEnrolled
			}
			return err
		}

		// Auto-book every session under the event. Deterministic order keeps
		// session lock acquisition consistent across callers.
		var sessions []models.Session
		if err := tx.Where("event_id = ?", eventID).Order("id ASC").Find(&sessions).Error; err != nil {
			return err
		}
		for i := range sessions {
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", sessions[i].ID).
				First(&sessions[i]).Error; err != nil {
				return err
			}
			if _, err := s.Bookings.bookInTx(tx, &sessions[i], participantID, enr.ID); err != nil {
				return err
			}
		}

		enrollment = &enr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

// Withdraw deactivates the enrollment, credits the policy refund and removes
// the dependent bookings. The lock is on the enrollment row, not the whole
// event: concurrent withdraws of the same enrollment serialize there, and
// the second one observes "already withdrawn".
func (s *EnrollmentService) Withdraw(participantID, eventID string) (*models.Enrollment, error) {
	var withdrawn *models.Enrollment
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var enr models.Enrollment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("participant_id = ? AND event_id = ? AND active", participantID, eventID).
			First(&enr).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Distinguish never-enrolled from already-withdrawn.
			var any int64
			if err := tx.Model(&models.Enrollment{}).
				Where("participant_id = ? AND event_id = ?", participantID, eventID).
				Count(&any).Error; err != nil {
				return err
			}
			if any > 0 {
				return ErrAlreadyWithdrawn
			}
			return ErrNotEnrolled
		}
		if err != nil {
			return err
		}

		// Re-validate after the lock: the row we waited on may have been
		// withdrawn while we blocked.
		if !enr.Active || enr.Status == models.EnrollmentStatusWithdrawn {
			return ErrAlreadyWithdrawn
		}

		refund := enr.CostPaid * s.Cfg.Rewards.WithdrawRefundPercent / 100
		if refund > 0 {
			refundKey := fmt.Sprintf("refund:%s", enr.ID)
			if _, err := s.Ledger.Credit(tx, participantID, refund, refundKey, "withdraw_refund"); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := tx.Model(&enr).Updates(map[string]interface{}{
			"active":         false,
			"status":         models.EnrollmentStatusWithdrawn,
			"refund_granted": refund,
			"withdrawn_at":   &now,
		}).Error; err != nil {
			return err
		}
		enr.Active = false
		enr.Status = models.EnrollmentStatusWithdrawn
		enr.RefundGranted = refund
		enr.WithdrawnAt = &now

		if err := s.Bookings.cancelForEnrollmentInTx(tx, enr.ID); err != nil {
			return err
		}

		withdrawn = &enr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// ActiveEnrollments lists an event's live enrollments, newest first.
func (s *EnrollmentService) ActiveEnrollments(eventID string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := s.DB.Where("event_id = ? AND active", eventID).
		Order("created_at DESC").
		Find(&enrollments).Error
	return enrollments, err
}
