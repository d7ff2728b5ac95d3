package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Events pushed to query rooms.
const (
	EventNewMessage       = "new_message"
	EventTyping           = "typing"
	EventJoin             = "join"
	EventQueryStatus      = "query_status"
	EventPaymentCompleted = "payment_completed"
	EventPong             = "pong"
)

// Hub maintains query_id -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: each instance subscribes to a room's
// channel while it has at least one local client in that room.
type Hub struct {
	// queryID -> map[clientID]*Client
	rooms    map[int64]map[string]*Client
	subs     map[int64]func() // cancel Redis subscription per room
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    Publisher
	redisSub Subscriber
}

// Publisher publishes room events to other instances.
type Publisher interface {
	PublishQueryEvent(queryID int64, ev RoomEvent) error
}

// Subscriber subscribes to a room channel and invokes handler for incoming events.
type Subscriber interface {
	SubscribeQuery(queryID int64, handler func(RoomEvent)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[int64]map[string]*Client),
		subs:     make(map[int64]func()),
		logger:   logger,
		redis:    pub,
		redisSub: sub,
	}
}

// Register adds a client to its query room. Starts the Redis subscription for the room if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.QueryID] == nil {
		h.rooms[c.QueryID] = make(map[string]*Client)
		if h.redisSub != nil {
			queryID := c.QueryID
			cancel, err := h.redisSub.SubscribeQuery(queryID, func(ev RoomEvent) {
				h.deliver(queryID, ev.Origin, WSMessage{Event: ev.Event, Data: ev.Data})
			})
			if err != nil {
				h.logger.Warn("room subscribe failed", zap.Int64("query_id", queryID), zap.Error(err))
			} else {
				h.subs[queryID] = cancel
			}
		}
	}
	h.rooms[c.QueryID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined room", zap.String("client_id", c.ID), zap.Int64("query_id", c.QueryID))
}

// Unregister removes a client from its room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.QueryID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.rooms, c.QueryID)
			if cancel, ok := h.subs[c.QueryID]; ok {
				cancel()
				delete(h.subs, c.QueryID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left room", zap.String("client_id", c.ID), zap.Int64("query_id", c.QueryID))
}

func encode(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}

// Broadcast sends an event to every client in a room on this instance.
func (h *Hub) Broadcast(queryID int64, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode room event", zap.String("event", event), zap.Error(err))
		return
	}
	h.deliver(queryID, "", WSMessage{Event: event, Data: data})
}

// deliver queues msg for every local client in the room except the one with id origin.
func (h *Hub) deliver(queryID int64, origin string, msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.rooms[queryID] {
		if origin != "" && id == origin {
			continue
		}
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers a server event to a room across all instances.
func (h *Hub) Publish(queryID int64, event string, payload interface{}) {
	h.publish(queryID, "", event, payload)
}

// publish sends through Redis when configured, so the subscription delivers it once to
// local clients as well. Events from a connection are not echoed back to it.
func (h *Hub) publish(queryID int64, origin, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode room event", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis == nil {
		h.deliver(queryID, origin, WSMessage{Event: event, Data: data})
		return
	}
	ev := RoomEvent{Event: event, Origin: origin, Data: data}
	if err := h.redis.PublishQueryEvent(queryID, ev); err != nil {
		h.logger.Warn("publish room event failed, delivering locally", zap.Int64("query_id", queryID), zap.Error(err))
		h.deliver(queryID, origin, WSMessage{Event: event, Data: data})
	}
}

// RoomSize returns the number of local connections in a room.
func (h *Hub) RoomSize(queryID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[queryID])
}

// sendTo sends an event to a single client.
func (h *Hub) sendTo(c *Client, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.rooms[c.QueryID][c.ID]; !ok {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}
