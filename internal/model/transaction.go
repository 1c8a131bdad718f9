package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindDeposit      TransactionKind = "deposit"
	KindWithdrawal   TransactionKind = "withdrawal"
	KindInvestment   TransactionKind = "investment"
	KindCommission   TransactionKind = "commission"
	KindRefund       TransactionKind = "refund"
	KindSubscription TransactionKind = "subscription"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxCancelled TransactionStatus = "cancelled"
)

// Transaction is one ledger entry: a single money-movement attempt with a
// settlement status. Rows are never deleted; status only ever moves
// pending -> completed | failed | cancelled.
type Transaction struct {
	ID       uint64            `gorm:"primaryKey"`
	UserID   uint64            `gorm:"not null;index"`
	Kind     TransactionKind   `gorm:"size:20;not null"`
	Amount   decimal.Decimal   `gorm:"type:numeric(15,2);not null"`
	Currency string            `gorm:"size:3;not null;default:'EUR'"`
	Status   TransactionStatus `gorm:"size:20;not null;default:'pending'"`
	// ReferenceID correlates at-least-once payment-gateway events.
	ReferenceID  string    `gorm:"size:100;index"`
	InvestmentID *uint64   `gorm:"index"`
	Description  string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	CompletedAt  *time.Time
}

func (Transaction) TableName() string { return "transaction" }
