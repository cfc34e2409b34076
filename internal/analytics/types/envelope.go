package types

import (
	"encoding/json"
	"time"

	"github.com/Hynox-org/aharraa-server/pkg/enums"
)

// Envelope is an order event as received from the orders topic.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	ActorSource   string                    `json:"actor_source,omitempty"`
	Payload       json.RawMessage           `json:"payload"`
}
