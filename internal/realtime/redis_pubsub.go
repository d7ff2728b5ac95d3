package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "query:"
	publishTimeout = 5 * time.Second
)

var errNoEvent = errors.New("room event has no name")

// RoomEvent is one event carried on a room's Redis channel. Origin is the id of the
// connection that produced it, empty for server-side events such as new messages.
type RoomEvent struct {
	Event  string          `json:"event"`
	Origin string          `json:"origin,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	At     int64           `json:"at"`
}

func decodeRoomEvent(raw []byte) (RoomEvent, error) {
	var ev RoomEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return RoomEvent{}, err
	}
	if ev.Event == "" {
		return RoomEvent{}, errNoEvent
	}
	return ev, nil
}

// RedisPubSub bridges query rooms across server instances.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for query rooms.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// Channel returns the Redis channel of a query room.
func Channel(queryID int64) string {
	return channelPrefix + strconv.FormatInt(queryID, 10)
}

// PublishQueryEvent publishes ev on the room's channel, stamping it if At is unset.
func (r *RedisPubSub) PublishQueryEvent(queryID int64, ev RoomEvent) error {
	if ev.At == 0 {
		ev.At = time.Now().Unix()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode room event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, Channel(queryID), body).Err()
}

// SubscribeQuery listens on a room's channel until the returned cancel is called.
// Undecodable payloads are dropped.
func (r *RedisPubSub) SubscribeQuery(queryID int64, handler func(RoomEvent)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, Channel(queryID))
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel(queryID), err)
	}
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ev, err := decodeRoomEvent([]byte(msg.Payload))
				if err != nil {
					r.logger.Debug("drop malformed room event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(ev)
			}
		}
	}()
	return cancelCtx, nil
}
