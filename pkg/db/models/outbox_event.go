package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Hynox-org/aharraa-server/pkg/enums"
)

// OutboxEvent is one row of outbox_events. Rows are inserted in the same
// transaction as the order change they describe and are only ever updated by
// the publisher.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	// Payload holds an outbox.PayloadEnvelope.
	Payload      json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount int             `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string         `gorm:"column:last_error"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time      `gorm:"column:published_at"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// NextAttempt is the attempt number of the publish about to happen.
func (e OutboxEvent) NextAttempt() int { return e.AttemptCount + 1 }
