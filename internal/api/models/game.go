package models

import "ctchen222/Tic-Tac-Toe-Grid/internal/session"

// CreateGameRequest defines the structure for hosting a new local or computer game.
type CreateGameRequest struct {
	GridSize     int    `json:"gridSize" binding:"required,min=3,max=10"`
	OpponentMode string `json:"opponentMode" binding:"required,oneof=self computer human"`
}

// MoveRequest defines the structure for a move. Pointers let row 0 pass the required check.
type MoveRequest struct {
	Row *int `json:"row" binding:"required"`
	Col *int `json:"col" binding:"required"`
}

// GameResponse is a hosted game's id and state.
type GameResponse struct {
	ID string `json:"id"`
	session.Snapshot
	ComputerPending bool `json:"computerPending,omitempty"`
}

// GuestResponse carries an issued client id.
type GuestResponse struct {
	PlayerID string `json:"player_id"`
}
