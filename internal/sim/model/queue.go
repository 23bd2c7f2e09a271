package model

import "time"

type OrderKind string

const (
	KindBuilding OrderKind = "building"
	KindResearch OrderKind = "research"
	KindShip     OrderKind = "ship"
)

func (k OrderKind) Valid() bool {
	switch k {
	case KindBuilding, KindResearch, KindShip:
		return true
	}
	return false
}

type QueueStatus string

const (
	StatusInProgress QueueStatus = "IN_PROGRESS"
	StatusCompleted  QueueStatus = "COMPLETED"
	StatusCancelled  QueueStatus = "CANCELLED"
)

func (s QueueStatus) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

// QueueEntry is one in-flight order. Cost is locked at creation.
type QueueEntry struct {
	ID       string    `json:"id"`
	Kind     OrderKind `json:"kind"`
	PlanetID string    `json:"planet_id"`
	PlayerID string    `json:"player_id"`

	// Target is the building, tech or ship type name.
	Target      string `json:"target"`
	TargetLevel int    `json:"target_level,omitempty"`

	Quantity           int       `json:"quantity,omitempty"`
	CompletedCount     int       `json:"completed_count,omitempty"`
	CurrentShipEndTime time.Time `json:"current_ship_end_time,omitempty"`

	Cost      Resources   `json:"cost"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
	Status    QueueStatus `json:"status"`
}

// Scope is the uniqueness scope of the entry: the player for research,
// the planet otherwise.
func (e QueueEntry) Scope() string {
	if e.Kind == KindResearch {
		return e.PlayerID
	}
	return e.PlanetID
}

// DueAt is the instant the sweep next has work for this entry.
func (e QueueEntry) DueAt() time.Time {
	if e.Kind == KindShip {
		return e.CurrentShipEndTime
	}
	return e.EndTime
}
