package services

import "errors"

// Business-rule failures are returned as typed sentinel values and mapped to
// HTTP statuses at the handler boundary; only unexpected infrastructure
// failures bubble up as plain errors.
var (
	// validation (no lock taken)
	ErrEventNotFound   = errors.New("event not found")
	ErrEventNotOpen    = errors.New("event is not accepting enrollments")
	ErrSessionNotFound = errors.New("session not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrAccountNotFound = errors.New("account not found")

	// conflicts (detected under lock or via constraint at commit)
	ErrAlreadyEnrolled         = errors.New("participant already enrolled")
	ErrEventFull               = errors.New("event is at capacity")
	ErrNotEnrolled             = errors.New("participant is not enrolled")
	ErrAlreadyWithdrawn        = errors.New("enrollment already withdrawn")
	ErrBookingAlreadyCancelled = errors.New("booking already cancelled")
	ErrOutcomeAlreadyRecorded  = errors.New("outcome already recorded")
	ErrEventNotCompleted       = errors.New("event is not completed")

	// funds (zero-rows-affected signal from the conditional update)
	ErrInsufficientFunds = errors.New("insufficient funds")
)
