package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the per-user cached balance used by the pay-from-wallet path.
// It is created lazily on first access and mutated only under a row lock;
// Version backs the optimistic re-check on update.
type Wallet struct {
	ID        uint64          `gorm:"primaryKey"`
	UserID    uint64          `gorm:"not null;uniqueIndex"`
	Balance   decimal.Decimal `gorm:"type:numeric(15,2);not null;default:'0'"`
	Currency  string          `gorm:"size:3;not null;default:'EUR'"`
	Version   uint64          `gorm:"not null;default:0"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallet" }

type WalletTxKind string

const (
	WalletDeposit    WalletTxKind = "deposit"
	WalletWithdraw   WalletTxKind = "withdraw"
	WalletInvestment WalletTxKind = "investment"
)

// WalletTransaction is the append-only audit trail of wallet mutations.
type WalletTransaction struct {
	ID        uint64          `gorm:"primaryKey"`
	WalletID  uint64          `gorm:"not null;index"`
	Kind      WalletTxKind    `gorm:"size:20;not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (WalletTransaction) TableName() string { return "wallet_transaction" }
