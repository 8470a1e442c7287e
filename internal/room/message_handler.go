package room

import (
	"context"
	"errors"
	"log/slog"

	"ctchen222/Tic-Tac-Toe-Grid/internal/events"
	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
	"ctchen222/Tic-Tac-Toe-Grid/internal/session"
	"ctchen222/Tic-Tac-Toe-Grid/pkg/proto"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// RejectionCode maps a move error to the code sent in moveRejected.
func RejectionCode(err error) string {
	switch {
	case errors.Is(err, session.ErrGameOver):
		return proto.CodeGameOver
	case errors.Is(err, session.ErrTurnViolation):
		return proto.CodeTurnViolation
	case errors.Is(err, ErrNotInRoom):
		return proto.CodeNotInRoom
	default:
		return proto.CodeInvalidMove
	}
}

// handleMove runs a move through the authoritative session.
func (r *Room) handleMove(ctx context.Context, playerID string, move proto.MakeMovePayload) {
	ctx, span := tracer.Start(ctx, "room.handleMove", trace.WithAttributes(
		attribute.String("player.id", playerID),
		attribute.String("room.id", r.ID),
		attribute.Int("move.row", move.Row),
		attribute.Int("move.col", move.Col),
	))
	defer span.End()

	mark := r.MarkOf(playerID)
	if mark == game.Empty || move.RoomID != r.ID {
		slog.WarnContext(ctx, "move for a room the player is not in", "player.id", playerID, "room.id", r.ID,
			"move.room_id", move.RoomID)
		span.SetStatus(codes.Error, "Player not part of room")
		r.reject(ctx, playerID, ErrNotInRoom)
		return
	}

	res, err := r.session.ApplyMove(move.Row, move.Col, mark)
	if err != nil {
		slog.WarnContext(ctx, "invalid move from player", "player.id", playerID, "room.id", r.ID, "error", err)
		span.SetAttributes(attribute.Bool("move.valid", false))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid move")
		r.reject(ctx, playerID, err)
		return
	}
	span.SetAttributes(attribute.Bool("move.valid", true))

	r.broadcast(ctx, proto.EventMoveMade, proto.MoveMadePayload{
		Row:        res.Move.Row,
		Col:        res.Move.Col,
		Player:     res.Mark,
		NextPlayer: res.Next,
		Board:      res.Board,
	})
	r.publish(ctx, events.TypeMoveMade, events.MoveMadePayload{
		RoomID:   r.ID,
		PlayerID: playerID,
		Mark:     string(res.Mark),
		Row:      res.Move.Row,
		Col:      res.Move.Col,
	})

	if res.Ended {
		r.finish(ctx, res)
	}
}

// finish stops the room before announcing the result, so no move can slip in between.
func (r *Room) finish(ctx context.Context, res session.MoveResult) {
	r.close()

	slog.InfoContext(ctx, "Game over", "room.id", r.ID, "game.status", res.Status, "game.winner", res.Winner)
	r.finishedGames.Add(ctx, 1, metric.WithAttributes(
		attribute.String("game.status", string(res.Status)),
		attribute.Int("grid.size", r.GridSize),
	))

	r.broadcast(ctx, proto.EventGameOver, proto.GameOverPayload{Status: string(res.Status), Winner: res.Winner})
	r.publish(ctx, events.TypeGameOver, events.GameOverPayload{
		RoomID: r.ID,
		Status: string(res.Status),
		Winner: string(res.Winner),
	})
}

// handleLeave tears the room down after one player disconnected.
func (r *Room) handleLeave(ctx context.Context, playerID string) {
	ctx, span := tracer.Start(ctx, "room.handleLeave", trace.WithAttributes(
		attribute.String("player.id", playerID),
		attribute.String("room.id", r.ID),
	))
	defer span.End()

	r.close()
	r.session.SetPeerConnected(false)

	for _, p := range r.Players {
		if p != nil && p.ID != playerID {
			r.sendTo(ctx, p.ID, proto.EventOpponentDisconnected, proto.Empty{})
		}
	}
	r.publish(ctx, events.TypePlayerDisconnected, events.PlayerDisconnectedPayload{RoomID: r.ID, PlayerID: playerID})
	slog.InfoContext(ctx, "Player left room, closing", "player.id", playerID, "room.id", r.ID)
}

// reject tells only the sender why its move was refused, along with the state to reconcile to.
func (r *Room) reject(ctx context.Context, playerID string, err error) {
	code := RejectionCode(err)
	r.rejectedMoves.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", code)))

	snap := r.session.Snapshot()
	r.sendTo(ctx, playerID, proto.EventMoveRejected, proto.MoveRejectedPayload{
		Code:          code,
		Reason:        err.Error(),
		Board:         snap.Board,
		CurrentPlayer: snap.CurrentMark,
	})
}

func (r *Room) publish(ctx context.Context, eventType string, payload any) {
	if err := r.publisher.Publish(ctx, eventType, payload); err != nil {
		slog.WarnContext(ctx, "Failed to publish room event", "room.id", r.ID, "event.type", eventType, "error", err)
	}
}
