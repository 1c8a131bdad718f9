package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProjectStatus string

const (
	ProjectDraft    ProjectStatus = "draft"
	ProjectPending  ProjectStatus = "pending"
	ProjectActive   ProjectStatus = "active"
	ProjectFunded   ProjectStatus = "funded"
	ProjectClosed   ProjectStatus = "closed"
	ProjectRejected ProjectStatus = "rejected"
)

// Project holds the funding-side view of a campaign. AmountRaised is
// derived: the sum of completed investments, recomputed on confirmation.
type Project struct {
	ID                uint64          `gorm:"primaryKey"`
	OwnerID           uint64          `gorm:"not null;index"`
	Title             string          `gorm:"size:200;not null"`
	Status            ProjectStatus   `gorm:"size:20;not null;default:'draft'"`
	AmountNeeded      decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	AmountRaised      decimal.Decimal `gorm:"type:numeric(15,2);not null;default:'0'"`
	MinimumInvestment decimal.Decimal `gorm:"type:numeric(15,2);not null;default:'0'"`
	Currency          string          `gorm:"size:3;not null;default:'EUR'"`
	CreatedAt         time.Time       `gorm:"autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime"`
}

func (Project) TableName() string { return "project" }
