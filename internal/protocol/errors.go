package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Routing/state.
	ErrNotFound     = "E_NOT_FOUND"
	ErrNoPermission = "E_NO_PERMISSION"
	ErrRateLimit    = "E_RATE_LIMIT"
	ErrConflict     = "E_CONFLICT"
	ErrInternal     = "E_INTERNAL"
)

// Order rejection reasons. These are returned as decision values, never as
// transport failures.
const (
	ReasonQueueActive               = "QUEUE_ACTIVE"
	ReasonPrerequisitesNotMet       = "PREREQUISITES_NOT_MET"
	ReasonLabLevelInsufficient      = "LAB_LEVEL_INSUFFICIENT"
	ReasonShipyardLevelInsufficient = "SHIPYARD_LEVEL_INSUFFICIENT"
	ReasonInsufficientResources     = "INSUFFICIENT_RESOURCES"
	ReasonInvalidQuantity           = "INVALID_QUANTITY"
	ReasonInvalidBuilding           = "INVALID_BUILDING"
	ReasonInvalidTech               = "INVALID_TECH"
	ReasonInvalidShip               = "INVALID_SHIP"
	ReasonNoActiveQueue             = "NO_ACTIVE_QUEUE"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrNotFound:        {},
	ErrNoPermission:    {},
	ErrRateLimit:       {},
	ErrConflict:        {},
	ErrInternal:        {},

	ReasonQueueActive:               {},
	ReasonPrerequisitesNotMet:       {},
	ReasonLabLevelInsufficient:      {},
	ReasonShipyardLevelInsufficient: {},
	ReasonInsufficientResources:     {},
	ReasonInvalidQuantity:           {},
	ReasonInvalidBuilding:           {},
	ReasonInvalidTech:               {},
	ReasonInvalidShip:               {},
	ReasonNoActiveQueue:             {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// HTTPStatus maps a code to the status the HTTP API answers with.
func HTTPStatus(code string) int {
	switch code {
	case "":
		return 200
	case ReasonQueueActive, ErrConflict:
		return 409
	case ErrNotFound, ReasonNoActiveQueue:
		return 404
	case ErrNoPermission:
		return 403
	case ErrRateLimit:
		return 429
	case ErrInternal:
		return 500
	default:
		return 400
	}
}
