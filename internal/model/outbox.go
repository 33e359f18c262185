package model

import (
	"time"

	"github.com/google/uuid"
)

// outbox_events — transactional outbox. Rows are written in the same
// transaction as the state change they describe and drained to Kafka by
// the background publisher.
type OutboxEvent struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	EventID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	AggregateType string    `gorm:"type:varchar(64);not null"`
	AggregateID   int64     `gorm:"not null"`
	EventType     string    `gorm:"type:varchar(64);not null;index"`
	Payload       []byte    `gorm:"type:jsonb"`

	CreatedAt   time.Time  `gorm:"not null;default:now();index"`
	PublishedAt *time.Time `gorm:"index"`
}
