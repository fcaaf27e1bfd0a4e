package services

import (
	"errors"
	"fmt"

	"competition-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerService owns account balances. Every mutation is a single
// conditional update paired with an idempotent transaction row; there is no
// read-modify-write path anywhere in this file.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// EnsureAccount creates the participant's account row if missing (idempotent).
func (s *LedgerService) EnsureAccount(participantID string) (*models.Account, error) {
	var acc models.Account
	err := s.DB.Where("participant_id = ?", participantID).First(&acc).Error
	if err == nil {
		return &acc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	acc = models.Account{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
	}
	if err := s.DB.Create(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost the creation race; the row exists now
			if err := s.DB.Where("participant_id = ?", participantID).First(&acc).Error; err != nil {
				return nil, err
			}
			return &acc, nil
		}
		return nil, err
	}
	return &acc, nil
}

func (s *LedgerService) GetBalance(participantID string) (int64, error) {
	var acc models.Account
	if err := s.DB.Where("participant_id = ?", participantID).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return acc.Balance, nil
}

// Debit subtracts amount from the participant's balance, failing with
// ErrInsufficientFunds when the balance does not cover it. The update is a
// single statement guarded by "balance >= amount" so the database itself
// serializes concurrent attempts; a losing writer sees zero affected rows.
//
// A duplicate idempotency key means the debit was already applied: the call
// returns the existing transaction row and touches nothing.
func (s *LedgerService) Debit(tx *gorm.DB, participantID string, amount int64, idempotencyKey, reason string) (*models.LedgerTransaction, error) {
	if amount < 0 {
		return nil, fmt.Errorf("debit amount must be non-negative, got %d", amount)
	}
	return s.apply(tx, participantID, -amount, idempotencyKey, reason)
}

// Credit adds amount to the participant's balance, idempotent on the key.
func (s *LedgerService) Credit(tx *gorm.DB, participantID string, amount int64, idempotencyKey, reason string) (*models.LedgerTransaction, error) {
	if amount < 0 {
		return nil, fmt.Errorf("credit amount must be non-negative, got %d", amount)
	}
	return s.apply(tx, participantID, amount, idempotencyKey, reason)
}

func (s *LedgerService) apply(tx *gorm.DB, participantID string, amount int64, idempotencyKey, reason string) (*models.LedgerTransaction, error) {
	if tx == nil {
		var row *models.LedgerTransaction
		err := s.DB.Transaction(func(inner *gorm.DB) error {
			r, err := s.applyInTx(inner, participantID, amount, idempotencyKey, reason)
			if err != nil {
				return err
			}
			row = r
			return nil
		})
		if err != nil {
			return nil, err
		}
		return row, nil
	}
	return s.applyInTx(tx, participantID, amount, idempotencyKey, reason)
}

func (s *LedgerService) applyInTx(tx *gorm.DB, participantID string, amount int64, idempotencyKey, reason string) (*models.LedgerTransaction, error) {
	// Already-applied check before touching anything: a retried request
	// must not move money twice.
	var existing models.LedgerTransaction
	err := tx.Where("idempotency_key = ?", idempotencyKey).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var acc models.Account
	if err := tx.Where("participant_id = ?", participantID).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	row := models.LedgerTransaction{
		ID:             uuid.NewString(),
		AccountID:      acc.ID,
		ParticipantID:  participantID,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
		Reason:         reason,
	}
	// The transaction row goes in first, inside a savepoint. A unique
	// violation from a concurrent retry of the same key rolls back only
	// the insert, so the enclosing transaction stays usable for reading
	// the winner's row, and the balance has not moved yet at that point.
	if err := tx.Transaction(func(inner *gorm.DB) error {
		return inner.Create(&row).Error
	}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var winner models.LedgerTransaction
			if err := tx.Where("idempotency_key = ?", idempotencyKey).First(&winner).Error; err != nil {
				return nil, err
			}
			return &winner, nil
		}
		return nil, err
	}

	update := tx.Model(&models.Account{}).
		Where("id = ? AND balance + ? >= 0", acc.ID, amount).
		Update("balance", gorm.Expr("balance + ?", amount))
	if update.Error != nil {
		return nil, update.Error
	}
	if update.RowsAffected == 0 {
		return nil, ErrInsufficientFunds
	}
	return &row, nil
}

// GrantRating appends an idempotent experience grant. Same contract as
// Credit, but against the rating transaction ledger.
func (s *LedgerService) GrantRating(tx *gorm.DB, participantID string, amount int64, idempotencyKey, reason string) (*models.RatingTransaction, error) {
	if tx == nil {
		tx = s.DB
	}

	var existing models.RatingTransaction
	err := tx.Where("idempotency_key = ?", idempotencyKey).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	row := models.RatingTransaction{
		ID:             uuid.NewString(),
		ParticipantID:  participantID,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
		Reason:         reason,
	}
	// Savepoint for the same reason as in applyInTx: the duplicate-key
	// recovery must not poison the caller's transaction.
	if err := tx.Transaction(func(inner *gorm.DB) error {
		return inner.Create(&row).Error
	}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var winner models.RatingTransaction
			if err := tx.Where("idempotency_key = ?", idempotencyKey).First(&winner).Error; err != nil {
				return nil, err
			}
			return &winner, nil
		}
		return nil, err
	}
	return &row, nil
}
