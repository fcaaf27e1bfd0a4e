package models

import "time"

// Account holds a participant's spendable balance.
// Balance is only ever mutated via single conditional updates
// (UPDATE ... WHERE balance >= amount); the check constraint is the
// backstop that keeps a negative balance from being durably committed.
type Account struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	ParticipantID string `gorm:"uniqueIndex;not null" json:"participant_id"`
	Balance       int64  `gorm:"not null;default:0;check:chk_accounts_balance_non_negative,balance >= 0" json:"balance"`

	Timestamps
}

// LedgerTransaction is an append-only, idempotent balance change.
// One row per logical charge/refund/reward; the unique idempotency key
// makes a retried operation a detectable no-op rather than a double apply.
type LedgerTransaction struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID      string    `gorm:"index;not null" json:"account_id"`
	ParticipantID  string    `gorm:"index;not null" json:"participant_id"`
	Amount         int64     `gorm:"not null" json:"amount"` // signed: debits negative, credits positive
	IdempotencyKey string    `gorm:"uniqueIndex;not null" json:"idempotency_key"`
	Reason         string    `gorm:"type:varchar(64);not null" json:"reason"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// RatingTransaction is an append-only, idempotent experience grant.
type RatingTransaction struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ParticipantID  string    `gorm:"index;not null" json:"participant_id"`
	Amount         int64     `gorm:"not null" json:"amount"`
	IdempotencyKey string    `gorm:"uniqueIndex;not null" json:"idempotency_key"`
	Reason         string    `gorm:"type:varchar(64);not null" json:"reason"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
