package protocol

import "time"

// HTTP request bodies.

type RegisterRequest struct {
	Username string `json:"username"`
}

type StartBuildingRequest struct {
	Building string `json:"building"`
}

type StartResearchRequest struct {
	Tech string `json:"tech"`
}

type StartShipsRequest struct {
	Ship     string `json:"ship"`
	Quantity int    `json:"quantity"`
}

type QuoteRequest struct {
	Kind     string `json:"kind"`
	Target   string `json:"target"`
	Quantity int    `json:"quantity,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// WELCOME (server -> client), first message on the event stream.
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	PlayerID        string         `json:"player_id"`
	ServerTime      time.Time      `json:"server_time"`
	Cursor          uint64         `json:"cursor"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	Buildings string `json:"buildings"`
	Research  string `json:"research"`
	Ships     string `json:"ships"`
}

// EVENT (server -> client). Event holds the committed engine event.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Cursor          uint64 `json:"cursor"`
	Event           any    `json:"event"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
