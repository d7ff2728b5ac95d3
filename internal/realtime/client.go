package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the token query parameter authenticates, not cookies
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client represents a single WebSocket connection in a query room.
type Client struct {
	ID       string
	QueryID  int64
	UserID   int64
	Name     string
	UserType string
	hub      *Hub
	conn     *websocket.Conn
	send     chan WSMessage
	logger   *zap.Logger
}

// Authenticator resolves the token passed on the upgrade request.
type Authenticator func(ctx context.Context, token string) (auth.Identity, error)

// RoomAuthorizer reports whether the caller may join the query's room.
type RoomAuthorizer func(ctx context.Context, queryID int64, id auth.Identity) (bool, error)

// ServeWs handles the WebSocket upgrade and runs the client loop.
func ServeWs(hub *Hub, logger *zap.Logger, authenticate Authenticator, authorize RoomAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		queryID, err := strconv.ParseInt(c.Query("query_id"), 10, 64)
		if err != nil || queryID <= 0 || token == "" {
			response.BadRequest(c, "query_id and token required")
			return
		}
		identity, err := authenticate(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		ok, err := authorize(c.Request.Context(), queryID, identity)
		if err != nil {
			logger.Error("room authorization failed", zap.Int64("query_id", queryID), zap.Error(err))
			response.Internal(c, "An error occurred")
			return
		}
		if !ok {
			response.Forbidden(c, "Access denied")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:       uuid.New().String(),
			QueryID:  queryID,
			UserID:   identity.UserID,
			Name:     identity.FullName,
			UserType: string(identity.UserType),
			hub:      hub,
			conn:     conn,
			send:     make(chan WSMessage, 256),
			logger:   logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case EventJoin, EventTyping:
			c.hub.publish(c.QueryID, c.ID, msg.Event, map[string]interface{}{
				"user_id":   c.UserID,
				"name":      c.Name,
				"user_type": c.UserType,
			})
		case "ping":
			c.hub.sendTo(c, EventPong, map[string]int64{"at": time.Now().Unix()})
		default:
			// messages are posted over HTTP so they are persisted first
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
