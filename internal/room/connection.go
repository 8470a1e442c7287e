package room

import (
	"context"
	"log/slog"

	"ctchen222/Tic-Tac-Toe-Grid/pkg/proto"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// broadcast sends an event to both players.
func (r *Room) broadcast(ctx context.Context, event string, payload any) {
	ctx, span := tracer.Start(ctx, "room.Broadcast", trace.WithAttributes(
		attribute.String("room.id", r.ID),
		attribute.String("message.type", event),
	))
	defer span.End()

	data, err := proto.Encode(event, payload)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Error marshalling message")
		return
	}

	for _, p := range r.Players {
		if p == nil {
			continue
		}
		if err := p.Send(data); err != nil {
			slog.WarnContext(ctx, "error queueing message for player", "player.id", p.ID, "error", err)
			span.RecordError(err)
		}
	}
}

// sendTo sends an event to one player of the room.
func (r *Room) sendTo(ctx context.Context, playerID, event string, payload any) {
	data, err := proto.Encode(event, payload)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling message", "error", err)
		return
	}
	for _, p := range r.Players {
		if p != nil && p.ID == playerID {
			if err := p.Send(data); err != nil {
				slog.WarnContext(ctx, "error queueing message for player", "player.id", p.ID, "error", err)
			}
			return
		}
	}
}
