package model

import "time"

// OutboxEvent is a notification or domain event written in the same database
// transaction as the ledger mutation that caused it. A poller publishes rows
// to Kafka, so delivery failures never roll back ledger state.
type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	Aggregate   string    `gorm:"size:64;not null"`
	AggregateID uint64    `gorm:"not null"`
	EventType   string    `gorm:"size:64;not null"`
	RecipientID uint64    `gorm:"not null;index"`
	Payload     string    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Processed   bool      `gorm:"not null;default:false"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }
