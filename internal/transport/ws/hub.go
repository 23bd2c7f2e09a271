package ws

import (
	"encoding/json"
	"sync"

	"github.com/goodhanky/emago/internal/protocol"
	"github.com/goodhanky/emago/internal/sim/queue"
)

const (
	defaultBacklog    = 256
	defaultMaxStreams = 4096
)

// Hub fans committed engine events out to the player's open streams and
// keeps a short per-player backlog for EVENT_BATCH_REQ catch-up. Cursors
// come from one hub-wide sequence, so a stream that was evicted and
// recreated never hands out a cursor a client has already seen.
type Hub struct {
	mu         sync.Mutex
	backlog    int
	maxStreams int
	seq        uint64
	players    map[string]*playerStream
}

type playerStream struct {
	cursor uint64
	ring   []protocol.EventBatchItem
	subs   map[chan []byte]struct{}
}

func NewHub(backlog int) *Hub {
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	return &Hub{backlog: backlog, maxStreams: defaultMaxStreams, players: map[string]*playerStream{}}
}

func (h *Hub) stream(playerID string) *playerStream {
	ps := h.players[playerID]
	if ps == nil {
		if len(h.players) >= h.maxStreams {
			h.evictIdle()
		}
		ps = &playerStream{cursor: h.seq, subs: map[chan []byte]struct{}{}}
		h.players[playerID] = ps
	}
	return ps
}

// evictIdle drops the unsubscribed stream with the oldest last event. When
// every stream has a subscriber the map is allowed to grow.
func (h *Hub) evictIdle() {
	var victim string
	var oldest uint64
	found := false
	for id, ps := range h.players {
		if len(ps.subs) > 0 {
			continue
		}
		if !found || ps.cursor < oldest {
			victim, oldest, found = id, ps.cursor, true
		}
	}
	if found {
		delete(h.players, victim)
	}
}

// WriteEvent never blocks: a subscriber whose buffer is full misses the
// live message and can recover it from the backlog.
func (h *Hub) WriteEvent(ev queue.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ps := h.stream(ev.PlayerID)
	h.seq++
	ps.cursor = h.seq
	item := protocol.EventBatchItem{Cursor: ps.cursor, Event: ev}
	ps.ring = append(ps.ring, item)
	if len(ps.ring) > h.backlog {
		ps.ring = ps.ring[len(ps.ring)-h.backlog:]
	}
	if len(ps.subs) == 0 {
		return nil
	}
	b, err := json.Marshal(protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Cursor:          item.Cursor,
		Event:           ev,
	})
	if err != nil {
		return err
	}
	for ch := range ps.subs {
		select {
		case ch <- b:
		default:
		}
	}
	return nil
}

// Subscribe registers out for playerID and returns the current cursor.
func (h *Hub) Subscribe(playerID string, out chan []byte) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps := h.stream(playerID)
	ps.subs[out] = struct{}{}
	return ps.cursor
}

func (h *Hub) Unsubscribe(playerID string, out chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps := h.players[playerID]
	if ps == nil {
		return
	}
	delete(ps.subs, out)
	if len(ps.subs) == 0 && len(ps.ring) == 0 {
		delete(h.players, playerID)
	}
}

// Streams reports how many player streams the hub holds.
func (h *Hub) Streams() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.players)
}

// Since returns up to limit buffered events after cursor and the cursor to
// ask from next.
func (h *Hub) Since(playerID string, cursor uint64, limit int) ([]protocol.EventBatchItem, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps := h.players[playerID]
	if ps == nil {
		return nil, cursor
	}
	if limit <= 0 || limit > h.backlog {
		limit = h.backlog
	}
	var out []protocol.EventBatchItem
	next := cursor
	for _, it := range ps.ring {
		if it.Cursor <= cursor {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, it)
		next = it.Cursor
	}
	return out, next
}

// Subscribers reports the number of open streams, for metrics.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ps := range h.players {
		n += len(ps.subs)
	}
	return n
}
