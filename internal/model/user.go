package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User carries the identity fields the ledger needs plus the derived
// statistics that are recomputed when investments settle. Authentication
// lives upstream; this service only reads is_staff for capability checks.
type User struct {
	ID       uint64 `gorm:"primaryKey"`
	Username string `gorm:"size:150;uniqueIndex;not null"`
	Email    string `gorm:"size:254"`
	IsStaff  bool   `gorm:"not null;default:false"`

	// Derived, refreshed by the confirmation workflow.
	ProjectsSupported int             `gorm:"not null;default:0"`
	TotalInvested     decimal.Decimal `gorm:"type:numeric(15,2);not null;default:'0'"`
	ActiveCampaigns   int             `gorm:"not null;default:0"`
	FundedProjects    int             `gorm:"not null;default:0"`
	Balance           decimal.Decimal `gorm:"type:numeric(15,2);not null;default:'0'"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string { return "app_user" }
