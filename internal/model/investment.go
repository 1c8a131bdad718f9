package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvestmentStatus string

const (
	InvestmentPending   InvestmentStatus = "pending"
	InvestmentCompleted InvestmentStatus = "completed"
	InvestmentCancelled InvestmentStatus = "cancelled"
	InvestmentFailed    InvestmentStatus = "failed"
	// InvestmentRefunded exists in the status machine but no workflow reaches
	// it yet; refunding a completed investment is a separate flow.
	InvestmentRefunded InvestmentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentWallet PaymentMethod = "wallet"
	PaymentCard   PaymentMethod = "card"
	PaymentBank   PaymentMethod = "bank"
)

// Investment is one investor's pledge toward one project. CommissionAmount
// is fixed at creation time and never recomputed. Exactly two ledger
// Transactions (investment + commission) are created alongside it and share
// its lifecycle.
type Investment struct {
	ID               uint64           `gorm:"primaryKey"`
	InvestorID       uint64           `gorm:"not null;index"`
	ProjectID        uint64           `gorm:"not null;index"`
	Amount           decimal.Decimal  `gorm:"type:numeric(15,2);not null"`
	CommissionAmount decimal.Decimal  `gorm:"type:numeric(15,2);not null"`
	Status           InvestmentStatus `gorm:"size:20;not null;default:'pending'"`
	PaymentMethod    PaymentMethod    `gorm:"size:20;not null;default:'card'"`
	Notes            string           `gorm:"type:text"`
	CreatedAt        time.Time        `gorm:"autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime"`
	CompletedAt      *time.Time
}

func (Investment) TableName() string { return "investment" }
