package services

import (
	"errors"
	"log"
	"time"

	"competition-ledger-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func parseRFC3339(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

// respondError maps the typed result taxonomy onto HTTP statuses:
// validation 422, missing resources 404, conflicts 409 (a retry with
// different timing might succeed), insufficient funds 402, everything
// unexpected 500 with the cause logged, never retried here.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrNotEnrolled),
		errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrEventNotOpen), errors.Is(err, ErrEventNotCompleted):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrAlreadyEnrolled),
		errors.Is(err, ErrEventFull),
		errors.Is(err, ErrAlreadyWithdrawn),
		errors.Is(err, ErrBookingAlreadyCancelled),
		errors.Is(err, ErrOutcomeAlreadyRecorded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrInsufficientFunds):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Printf("[HTTP] %s %s failed: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

// --- Enrollment handlers ---

func (s *EnrollmentService) EnrollHandler(c *fiber.Ctx) error {
	eventID := c.Params("id")
	var req struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.ParticipantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participant_id is required"})
	}

	if _, err := s.Ledger.EnsureAccount(req.ParticipantID); err != nil {
		return respondError(c, err)
	}
	enrollment, err := s.Enroll(req.ParticipantID, eventID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(enrollment)
}

func (s *EnrollmentService) WithdrawHandler(c *fiber.Ctx) error {
	eventID := c.Params("id")
	var req struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	enrollment, err := s.Withdraw(req.ParticipantID, eventID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(enrollment)
}

func (s *EnrollmentService) ListHandler(c *fiber.Ctx) error {
	enrollments, err := s.ActiveEnrollments(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(enrollments)
}

// --- Booking handlers ---

func (s *BookingService) BookHandler(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	var req struct {
		ParticipantID string `json:"participant_id"`
		EnrollmentID  string `json:"enrollment_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	booking, err := s.Book(sessionID, req.ParticipantID, req.EnrollmentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(booking)
}

func (s *BookingService) CancelHandler(c *fiber.Ctx) error {
	booking, err := s.Cancel(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(booking)
}

func (s *BookingService) AttendanceHandler(c *fiber.Ctx) error {
	att, err := s.RecordAttendance(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(att)
}

func (s *BookingService) WaitlistHandler(c *fiber.Ctx) error {
	bookings, err := s.Waitlist(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(bookings)
}

// --- Outcome / reward handlers ---

func (s *OutcomeService) RecordOutcomeHandler(c *fiber.Ctx) error {
	eventID := c.Params("id")
	var req struct {
		ParticipantID string `json:"participant_id"`
		Placement     *int   `json:"placement"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	part, err := s.RecordOutcome(req.ParticipantID, eventID, req.Placement)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(part)
}

func (s *OutcomeService) DistributeHandler(c *fiber.Ctx) error {
	summary, err := s.DistributeRewards(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

func (s *OutcomeService) BadgesHandler(c *fiber.Ctx) error {
	var badges []models.Badge
	if err := s.DB.Where("participant_id = ?", c.Params("id")).
		Order("awarded_at DESC").
		Find(&badges).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(badges)
}

// --- Ledger / skill handlers ---

func (s *LedgerService) BalanceHandler(c *fiber.Ctx) error {
	participantID := c.Params("id")
	balance, err := s.GetBalance(participantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"participant_id": participantID, "balance": balance})
}

func (s *SkillService) ProfileHandler(c *fiber.Ctx) error {
	profile, err := s.GetProfile(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// --- Event handlers ---

func (s *EventService) CreateHandler(c *fiber.Ctx) error {
	var in CreateEventInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	event, err := s.CreateEvent(in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(event)
}

func (s *EventService) UpdateStatusHandler(c *fiber.Ctx) error {
	var req struct {
		Status models.EventStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	event, err := s.UpdateStatus(c.Params("id"), req.Status)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(event)
}

func (s *EventService) AddSessionHandler(c *fiber.Ctx) error {
	eventID := c.Params("id")
	var req struct {
		Name      string `json:"name"`
		Capacity  int    `json:"capacity"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	start, err := parseRFC3339(req.StartTime)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid start_time (use RFC3339)"})
	}
	end, err := parseRFC3339(req.EndTime)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid end_time (use RFC3339)"})
	}

	session, err := s.AddSession(eventID, req.Name, req.Capacity, start, end)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

func (s *EventService) GetHandler(c *fiber.Ctx) error {
	event, err := s.GetEvent(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(event)
}

func (s *EventService) ListOpenHandler(c *fiber.Ctx) error {
	events, err := s.ListOpenEvents()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(events)
}

// --- Audit handler ---

func (s *AuditService) RunHandler(c *fiber.Ctx) error {
	report, err := s.RunAndArchive()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}
