package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goodhanky/emago/internal/protocol"
	"github.com/goodhanky/emago/internal/sim/catalogs"
)

// PlayerExists reports whether a stream may be opened for playerID.
type PlayerExists func(ctx context.Context, playerID string) (bool, error)

type Server struct {
	hub      *Hub
	exists   PlayerExists
	catalogs protocol.CatalogDigests
	log      *log.Logger

	upgrader websocket.Upgrader

	// pongWait bounds how long a silent client stays connected; pings go
	// out every pingPeriod and each pong extends the read deadline.
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewServer(hub *Hub, cats *catalogs.Catalogs, exists PlayerExists, logger *log.Logger) *Server {
	return &Server{
		hub:    hub,
		exists: exists,
		catalogs: protocol.CatalogDigests{
			Buildings: cats.Buildings.Digest,
			Research:  cats.Research.Digest,
			Ships:     cats.Ships.Digest,
		},
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		pongWait:   60 * time.Second,
		pingPeriod: 54 * time.Second,
	}
}

// Handler serves GET /v1/players/{id}/events.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		playerID := r.PathValue("id")
		if s.exists != nil {
			ok, err := s.exists(r.Context(), playerID)
			if err != nil {
				http.Error(rw, "internal error", http.StatusInternalServerError)
				return
			}
			if !ok {
				http.Error(rw, "unknown player", http.StatusNotFound)
				return
			}
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out := make(chan []byte, 64)
		cursor := s.hub.Subscribe(playerID, out)
		defer s.hub.Unsubscribe(playerID, out)

		if err := writeJSON(conn, protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			PlayerID:        playerID,
			ServerTime:      time.Now().UTC(),
			Cursor:          cursor,
			Catalogs:        s.catalogs,
		}); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			ping := time.NewTicker(s.pingPeriod)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
						cancel()
						return
					}
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.pongWait))
		})
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeEventBatchReq {
				continue
			}
			s.enqueue(out, s.batchReply(playerID, msg))
		}
	}
}

func (s *Server) batchReply(playerID string, msg []byte) any {
	if err := protocol.ValidateJSON(protocol.SchemaEventBatchReq, msg); err != nil {
		return protocol.ErrorMsg{Type: protocol.TypeError, ProtocolVersion: protocol.Version, Code: protocol.ErrProtoBadRequest, Message: err.Error()}
	}
	var req protocol.EventBatchReqMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		return protocol.ErrorMsg{Type: protocol.TypeError, ProtocolVersion: protocol.Version, Code: protocol.ErrProtoBadRequest, Message: err.Error()}
	}
	items, next := s.hub.Since(playerID, req.SinceCursor, req.Limit)
	if items == nil {
		items = []protocol.EventBatchItem{}
	}
	return protocol.EventBatchMsg{
		Type:            protocol.TypeEventBatch,
		ProtocolVersion: protocol.Version,
		ReqID:           req.ReqID,
		Events:          items,
		NextCursor:      next,
	}
}

// enqueue hands a reply to the writer goroutine so only one goroutine
// writes to the connection.
func (s *Server) enqueue(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("ws: marshal reply: %v", err)
		return
	}
	select {
	case out <- b:
	case <-time.After(5 * time.Second):
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
