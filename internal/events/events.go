package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// Pub/Sub channel constants
const (
	EventsChannel = "channel:events"
)

// Event types published on EventsChannel.
const (
	TypeMatchMade          = "match_made"
	TypeMatchmakingTimeout = "matchmaking_timeout"
	TypeMoveMade           = "move_made"
	TypeGameOver           = "game_over"
	TypePlayerDisconnected = "player_disconnected"
)

// Event represents a global message published via Pub/Sub.
type Event struct {
	Type    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// MatchMadePayload is the payload for the "match_made" event.
type MatchMadePayload struct {
	RoomID    string   `json:"room_id"`
	PlayerIDs []string `json:"player_ids"`
	GridSize  int      `json:"grid_size"`
}

// MatchmakingTimeoutPayload is the payload for the "matchmaking_timeout" event.
type MatchmakingTimeoutPayload struct {
	PlayerID string `json:"player_id"`
}

// MoveMadePayload is the payload for the "move_made" event.
type MoveMadePayload struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Mark     string `json:"mark"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
}

// GameOverPayload is the payload for the "game_over" event.
type GameOverPayload struct {
	RoomID string `json:"room_id"`
	Status string `json:"status"`
	Winner string `json:"winner,omitempty"`
}

// PlayerDisconnectedPayload is the payload for the "player_disconnected" event.
type PlayerDisconnectedPayload struct {
	RoomID   string `json:"room_id,omitempty"`
	PlayerID string `json:"player_id"`
}

// Publisher announces server-side game events to other processes.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Nop discards every event. It is used when no Redis is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// RedisPublisher publishes events on EventsChannel.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	data, err := Marshal(eventType, payload)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, EventsChannel, data).Err(); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event", "event.type", eventType, "error", err)
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// Marshal builds the wire form of an event.
func Marshal(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return json.Marshal(Event{Type: eventType, Payload: raw})
}
