package services

import (
	"errors"
	"time"

	"competition-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingService books participants into sessions and keeps each session's
// waitlist dense: positions always form 1..K with no gaps or duplicates
// among currently-waitlisted bookings.
type BookingService struct {
	DB *gorm.DB
}

func NewBookingService(db *gorm.DB) *BookingService {
	return &BookingService{DB: db}
}

// Book confirms the participant into the session when a slot is free,
// otherwise appends a waitlisted booking at position max+1. The confirmed
// count and the max position are both read under the session row lock, so
// two concurrent bookings cannot claim the same slot or position.
func (s *BookingService) Book(sessionID, participantID, enrollmentID string) (*models.Booking, error) {
	var booking *models.Booking
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var session models.Session
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", sessionID).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		b, err := s.bookInTx(tx, &session, participantID, enrollmentID)
		if err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// bookInTx requires the caller to hold the session row lock.
func (s *BookingService) bookInTx(tx *gorm.DB, session *models.Session, participantID, enrollmentID string) (*models.Booking, error) {
	var confirmed int64
	if err := tx.Model(&models.Booking{}).
		Where("session_id = ? AND status = ?", session.ID, models.BookingStatusConfirmed).
		Count(&confirmed).Error; err != nil {
		return nil, err
	}

	booking := models.Booking{
		ID:            uuid.NewString(),
		SessionID:     session.ID,
		EventID:       session.EventID,
		EnrollmentID:  enrollmentID,
		ParticipantID: participantID,
		Status:        models.BookingStatusConfirmed,
	}

	if confirmed >= int64(session.Capacity) {
		var maxPos int
		if err := tx.Model(&models.Booking{}).
			Where("session_id = ? AND status = ?", session.ID, models.BookingStatusWaitlisted).
			Select("COALESCE(MAX(waitlist_position), 0)").
			Scan(&maxPos).Error; err != nil {
			return nil, err
		}
		next := maxPos + 1
		booking.Status = models.BookingStatusWaitlisted
		booking.WaitlistPosition = &next
	}

	if err := tx.Create(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// Cancel soft-removes a booking. Cancelling a confirmed booking promotes the
// lowest-positioned waitlisted booking and compacts the remaining positions,
// all inside the same session lock scope, so two concurrent cancellations
// can never promote the same candidate.
func (s *BookingService) Cancel(bookingID string) (*models.Booking, error) {
	var cancelled *models.Booking
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.Where("id = ?", bookingID).First(&booking).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}

		// Lock the session before re-reading the booking for the decision.
		var session models.Session
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", booking.SessionID).
			First(&session).Error; err != nil {
			return err
		}

		b, err := s.cancelInTx(tx, booking.ID)
		if err != nil {
			return err
		}
		cancelled = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// cancelInTx requires the caller to hold the session row lock.
func (s *BookingService) cancelInTx(tx *gorm.DB, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	if err := tx.Where("id = ?", bookingID).First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil, ErrBookingAlreadyCancelled
	}

	wasConfirmed := booking.Status == models.BookingStatusConfirmed
	freedPosition := booking.WaitlistPosition

	now := time.Now()
	if err := tx.Model(&booking).Updates(map[string]interface{}{
		"status":            models.BookingStatusCancelled,
		"waitlist_position": nil,
		"cancelled_at":      &now,
	}).Error; err != nil {
		return nil, err
	}
	booking.Status = models.BookingStatusCancelled
	booking.WaitlistPosition = nil
	booking.CancelledAt = &now

	if wasConfirmed {
		if err := s.promoteNextInTx(tx, booking.SessionID); err != nil {
			return nil, err
		}
	} else if freedPosition != nil {
		// A waitlisted booking left the middle of the queue: close the gap.
		if err := s.shiftPositionsInTx(tx, booking.SessionID, *freedPosition); err != nil {
			return nil, err
		}
	}

	return &booking, nil
}

// promoteNextInTx confirms the lowest-positioned waitlisted booking for the
// session and compacts everyone behind it by one.
func (s *BookingService) promoteNextInTx(tx *gorm.DB, sessionID string) error {
	var next models.Booking
	err := tx.Where("session_id = ? AND status = ?", sessionID, models.BookingStatusWaitlisted).
		Order("waitlist_position ASC").
		First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil // empty waitlist, nothing to promote
	}
	if err != nil {
		return err
	}

	promotedFrom := 0
	if next.WaitlistPosition != nil {
		promotedFrom = *next.WaitlistPosition
	}

	if err := tx.Model(&next).Updates(map[string]interface{}{
		"status":            models.BookingStatusConfirmed,
		"waitlist_position": nil,
	}).Error; err != nil {
		return err
	}

	return s.shiftPositionsInTx(tx, sessionID, promotedFrom)
}

// shiftPositionsInTx moves every waitlisted booking behind the freed
// position up by one, keeping positions contiguous from 1.
func (s *BookingService) shiftPositionsInTx(tx *gorm.DB, sessionID string, freedPosition int) error {
	return tx.Model(&models.Booking{}).
		Where("session_id = ? AND status = ? AND waitlist_position > ?",
			sessionID, models.BookingStatusWaitlisted, freedPosition).
		Update("waitlist_position", gorm.Expr("waitlist_position - 1")).Error
}

// cancelForEnrollmentInTx soft-removes every live booking under an
// enrollment, promoting and compacting per session. Used by withdraw.
func (s *BookingService) cancelForEnrollmentInTx(tx *gorm.DB, enrollmentID string) error {
	var bookings []models.Booking
	if err := tx.Where("enrollment_id = ? AND status <> ?", enrollmentID, models.BookingStatusCancelled).
		Order("session_id ASC").
		Find(&bookings).Error; err != nil {
		return err
	}
	for _, b := range bookings {
		var session models.Session
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", b.SessionID).
			First(&session).Error; err != nil {
			return err
		}
		if _, err := s.cancelInTx(tx, b.ID); err != nil {
			if errors.Is(err, ErrBookingAlreadyCancelled) {
				continue
			}
			return err
		}
	}
	return nil
}

// RecordAttendance creates exactly one attendance record per booking. A
// duplicate attempt hits the unique index and is reported as the existing
// record, not an error.
func (s *BookingService) RecordAttendance(bookingID string) (*models.Attendance, error) {
	var booking models.Booking
	if err := s.DB.Where("id = ?", bookingID).First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	att := models.Attendance{
		ID:        uuid.NewString(),
		BookingID: booking.ID,
		SessionID: booking.SessionID,
	}
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "booking_id"}},
		DoNothing: true,
	}).Create(&att).Error
	if err != nil {
		return nil, err
	}

	var saved models.Attendance
	if err := s.DB.Where("booking_id = ?", booking.ID).First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

// Waitlist returns the session's waitlisted bookings in position order.
func (s *BookingService) Waitlist(sessionID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.DB.Where("session_id = ? AND status = ?", sessionID, models.BookingStatusWaitlisted).
		Order("waitlist_position ASC").
		Find(&bookings).Error
	return bookings, err
}
