package hub

import (
	"context"
	"log/slog"

	"ctchen222/Tic-Tac-Toe-Grid/internal/events"
	"ctchen222/Tic-Tac-Toe-Grid/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-Grid/internal/player"
	"ctchen222/Tic-Tac-Toe-Grid/pkg/proto"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (h *Hub) handleRegister(ctx context.Context, req *types.RegistrationRequest) {
	p := req.Player
	if req.Ctx != nil {
		ctx = trace.ContextWithSpanContext(ctx, trace.SpanContextFromContext(req.Ctx))
	}
	ctx, span := tracer.Start(ctx, "hub.handleRegister", trace.WithAttributes(
		attribute.String("player.id", p.ID),
	))
	defer span.End()

	if _, taken := h.clients[p.ID]; taken || p.ID == "" {
		newID := uuid.New().String()
		slog.WarnContext(ctx, "Player id already connected, assigning a new one", "player.id", p.ID, "player.new_id", newID)
		p.ID = newID
	}
	h.clients[p.ID] = p

	go p.WritePump(h.cfg.HeartbeatInterval)
	go h.readPump(p)

	h.send(ctx, p, proto.EventConnected, proto.ConnectedPayload{ClientID: p.ID})
	slog.InfoContext(ctx, "Player connected", "player.id", p.ID, "players.count", len(h.clients))
}

// readPump forwards frames to the hub goroutine and unregisters the player once the
// connection fails.
func (h *Hub) readPump(p *player.Player) {
	err := p.ReadPump(2*h.cfg.HeartbeatInterval, func(msg []byte) bool {
		select {
		case h.inbound <- &types.PlayerMessage{Player: p, Message: msg}:
			return true
		case <-p.Done():
			return false
		case <-h.done:
			return false
		}
	})
	if err != nil {
		slog.Debug("Player read pump stopped", "player.id", p.ID, "error", err)
	}

	select {
	case h.unregister <- p:
	case <-h.done:
	}
}

// handleDisconnect removes a player from matchmaking and from its room.
func (h *Hub) handleDisconnect(ctx context.Context, p *player.Player) {
	ctx, span := tracer.Start(ctx, "hub.handleDisconnect", trace.WithAttributes(
		attribute.String("player.id", p.ID),
	))
	defer span.End()

	if h.clients[p.ID] != p {
		// Already replaced or removed.
		p.Close()
		return
	}
	delete(h.clients, p.ID)
	h.matchManager.Forget(p.ID)

	if r, ok := h.roomOf[p.ID]; ok {
		delete(h.roomOf, p.ID)
		r.Leave(p.ID)
	} else {
		h.publish(ctx, events.TypePlayerDisconnected, events.PlayerDisconnectedPayload{PlayerID: p.ID})
	}

	p.Close()
	slog.InfoContext(ctx, "Player disconnected", "player.id", p.ID, "players.count", len(h.clients))
}
