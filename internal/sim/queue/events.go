package queue

import (
	"time"

	"github.com/goodhanky/emago/internal/sim/model"
)

type EventType string

const (
	EventOrderStarted   EventType = "ORDER_STARTED"
	EventOrderCancelled EventType = "ORDER_CANCELLED"
	EventOrderProgress  EventType = "ORDER_PROGRESS"
	EventOrderCompleted EventType = "ORDER_COMPLETED"
	EventResourcesSet   EventType = "RESOURCES_SET"
)

// Event is one committed state change, emitted after its transaction.
type Event struct {
	Type     EventType         `json:"type"`
	At       time.Time         `json:"at"`
	PlayerID string            `json:"player_id"`
	PlanetID string            `json:"planet_id,omitempty"`
	Entry    *model.QueueEntry `json:"entry,omitempty"`
	Refund   *model.Resources  `json:"refund,omitempty"`
	Amounts  *model.Resources  `json:"amounts,omitempty"`
	Units    int               `json:"units,omitempty"`
}

type EventLogger interface {
	WriteEvent(ev Event) error
}

// Completion reports what one sweep step applied to a queue entry.
type Completion struct {
	EntryID  string          `json:"entry_id"`
	Kind     model.OrderKind `json:"kind"`
	PlanetID string          `json:"planet_id"`
	PlayerID string          `json:"player_id"`
	Target   string          `json:"target"`

	// Level is the resulting level for buildings and research.
	Level int `json:"level,omitempty"`

	// Units is the number of ships delivered by this step; Delivered is
	// the batch total so far.
	Units         int  `json:"units,omitempty"`
	Delivered     int  `json:"delivered,omitempty"`
	BatchComplete bool `json:"batch_complete"`
}
