package proto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
	"ctchen222/Tic-Tac-Toe-Grid/internal/validator"
)

// Event names carried in Envelope.Event.
const (
	// Client to server
	EventFindMatch         = "findMatch"
	EventCancelMatchmaking = "cancelMatchmaking"
	EventMakeMove          = "makeMove"
	EventGameEnd           = "gameEnd"

	// Server to client
	EventConnected            = "connected"
	EventWaiting              = "waiting"
	EventMatchFound           = "matchFound"
	EventNoMatchFound         = "noMatchFound"
	EventMoveMade             = "moveMade"
	EventMoveRejected         = "moveRejected"
	EventGameOver             = "gameOver"
	EventOpponentDisconnected = "opponentDisconnected"
	EventError                = "error"
)

// Rejection and error codes.
const (
	CodeInvalidMove   = "invalid_move"
	CodeTurnViolation = "turn_violation"
	CodeGameOver      = "game_over"
	CodeNotInRoom     = "not_in_room"
	CodeBadMessage    = "bad_message"
	CodeUnknownEvent  = "unknown_event"
	CodeAlreadyInRoom = "already_in_room"
	CodeMatchmaking   = "matchmaking_failed"
)

// Game statuses on the wire.
const (
	StatusWon  = "won"
	StatusDraw = "draw"
)

// Envelope is one websocket text frame.
type Envelope struct {
	Event   string          `json:"event" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Empty is the payload of events that carry no data.
type Empty struct{}

type ConnectedPayload struct {
	ClientID string `json:"clientId"`
}

type FindMatchPayload struct {
	GridSize int `json:"gridSize,omitempty" validate:"omitempty,min=3,max=10"`
}

type MatchFoundPayload struct {
	RoomID   string   `json:"roomId"`
	Players  []string `json:"players"`
	GridSize int      `json:"gridSize"`
}

// MakeMovePayload is a proposed move. Board is the sender's view; it is kept raw and never
// decoded, so a malformed snapshot cannot turn a legal row/col into a bad message.
type MakeMovePayload struct {
	RoomID string          `json:"roomId" validate:"required"`
	Row    int             `json:"row"`
	Col    int             `json:"col"`
	Board  json.RawMessage `json:"board,omitempty"`
}

type MoveMadePayload struct {
	Row        int           `json:"row"`
	Col        int           `json:"col"`
	Player     game.Mark     `json:"player"`
	NextPlayer game.Mark     `json:"nextPlayer"`
	Board      [][]game.Mark `json:"board"`
}

// MoveRejectedPayload goes to the sender of a rejected move only. Board and CurrentPlayer
// are the authoritative state the sender should reconcile to.
type MoveRejectedPayload struct {
	Code          string        `json:"code"`
	Reason        string        `json:"reason"`
	Board         [][]game.Mark `json:"board,omitempty"`
	CurrentPlayer game.Mark     `json:"currentPlayer"`
}

// GameEndPayload is the client's advisory claim that the game ended.
type GameEndPayload struct {
	RoomID string    `json:"roomId,omitempty"`
	Status string    `json:"status" validate:"required,oneof=won draw"`
	Winner game.Mark `json:"winner"`
}

type GameOverPayload struct {
	Status string    `json:"status"`
	Winner game.Mark `json:"winner"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode wraps payload in an envelope. A nil payload is sent as {}.
func Encode(event string, payload any) ([]byte, error) {
	if payload == nil {
		payload = Empty{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}

// Decode parses and validates an envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := validator.Struct(env); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	return env, nil
}

// Bind decodes the payload into v, a pointer to a payload struct, and validates it.
func (e Envelope) Bind(v any) error {
	payload := bytes.TrimSpace(e.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = []byte("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	if err := validator.Struct(v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", e.Event, err)
	}
	return nil
}
