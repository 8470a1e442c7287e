package types

import (
	"context"

	"ctchen222/Tic-Tac-Toe-Grid/internal/player"
)

// RegistrationRequest represents a request to register a freshly upgraded connection.
type RegistrationRequest struct {
	Player *player.Player
	Ctx    context.Context
}

// PlayerMessage is one raw frame read from a player.
type PlayerMessage struct {
	Player  *player.Player
	Message []byte
}
