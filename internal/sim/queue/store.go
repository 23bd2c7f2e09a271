package queue

import (
	"context"
	"errors"
	"time"

	"github.com/goodhanky/emago/internal/sim/model"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNotInProgress   = errors.New("queue entry is not in progress")
	ErrQueueActive     = errors.New("an order of this kind is already in progress")
	ErrUsernameTaken   = errors.New("username is already taken")
	ErrInvalidUsername = errors.New("username must be 3-20 letters, digits or underscores")
)

// Store runs fn inside one atomic transaction. A non-nil error from fn
// rolls back every write fn made.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the persistence surface the engine needs. Implementations must
// return ErrNotFound for missing rows and ErrQueueActive when InsertQueue
// would create a second IN_PROGRESS entry in the same scope.
type Tx interface {
	CreatePlayer(p model.Player) error
	GetPlayer(id string) (model.Player, error)

	CreatePlanet(p model.Planet) error
	GetPlanet(id string) (model.Planet, error)
	ListPlanetIDs(playerID string) ([]string, error)
	// UpdatePlanet writes the scalar columns: stored amounts, rates,
	// energy, fields and the last resource update.
	UpdatePlanet(p model.Planet) error
	SetBuildingLevel(planetID string, t model.BuildingType, level int) error
	AddShips(planetID string, t model.ShipType, n int) error

	GetResearchLevels(playerID string) (model.ResearchLevels, error)
	SetResearchLevel(playerID string, t model.TechType, level int) error

	InsertQueue(e model.QueueEntry) error
	GetQueue(id string) (model.QueueEntry, error)
	UpdateQueue(e model.QueueEntry) error
	DeleteQueue(id string) error
	// ActiveQueue returns the IN_PROGRESS entry of kind in scope, if any.
	ActiveQueue(kind model.OrderKind, scope string) (model.QueueEntry, bool, error)
	// DueQueues lists IN_PROGRESS entries whose DueAt is at or before now.
	DueQueues(now time.Time) ([]model.QueueEntry, error)
}
