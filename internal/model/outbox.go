package model

import "time"

// OutboxEvent is written in the same atomic unit as the ledger write and
// published to Kafka by the poller. Balances are never derived from it.
type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	Aggregate   string    `gorm:"size:64;not null"`
	AggregateID string    `gorm:"size:36;not null"`
	EventType   string    `gorm:"size:64;not null"`
	Payload     string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Processed   bool      `gorm:"not null;default:false"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }
