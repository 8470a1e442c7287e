package hub

import (
	"context"
	"log/slog"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/internal/events"
	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
	"ctchen222/Tic-Tac-Toe-Grid/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-Grid/internal/match"
	"ctchen222/Tic-Tac-Toe-Grid/internal/player"
	"ctchen222/Tic-Tac-Toe-Grid/internal/room"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	tracer = otel.Tracer("hub")
	meter  = otel.Meter("hub")
)

// Config tunes matchmaking and connection liveness.
type Config struct {
	MatchmakingTimeout time.Duration
	// HeartbeatInterval is the ping period. A client that does not answer within two
	// intervals is dropped. Zero disables pings.
	HeartbeatInterval time.Duration
	DefaultGridSize   int
}

// Hub owns every connected player and routes their messages to matchmaking or to
// their room. All of its maps are touched only by the Run goroutine.
type Hub struct {
	cfg          Config
	publisher    events.Publisher
	matchManager *match.MatchManager

	register   chan *types.RegistrationRequest
	unregister chan *player.Player
	inbound    chan *types.PlayerMessage
	roomClosed chan *room.Room
	done       chan struct{}

	clients map[string]*player.Player
	rooms   map[string]*room.Room
	roomOf  map[string]*room.Room

	matchesMade metric.Int64Counter
	timeouts    metric.Int64Counter
}

// NewHub creates a new hub. A nil publisher disables event publishing.
func NewHub(cfg Config, publisher events.Publisher) *Hub {
	if cfg.DefaultGridSize == 0 {
		cfg.DefaultGridSize = game.MinSize
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	matchesMade, err := meter.Int64Counter("matchmaking.matches",
		metric.WithDescription("Pairs of players matched into a room"))
	if err != nil {
		slog.Warn("Failed to create matches counter", "error", err)
		matchesMade = noop.Int64Counter{}
	}
	timeouts, err := meter.Int64Counter("matchmaking.timeouts",
		metric.WithDescription("Players whose matchmaking wait expired"))
	if err != nil {
		slog.Warn("Failed to create timeouts counter", "error", err)
		timeouts = noop.Int64Counter{}
	}

	return &Hub{
		cfg:          cfg,
		publisher:    publisher,
		matchManager: match.NewMatchManager(cfg.MatchmakingTimeout),
		register:     make(chan *types.RegistrationRequest),
		unregister:   make(chan *player.Player),
		inbound:      make(chan *types.PlayerMessage, 64),
		roomClosed:   make(chan *room.Room, 16),
		done:         make(chan struct{}),
		clients:      make(map[string]*player.Player),
		rooms:        make(map[string]*room.Room),
		roomOf:       make(map[string]*room.Room),
		matchesMade:  matchesMade,
		timeouts:     timeouts,
	}
}

// Run starts the hub. It returns when ctx is cancelled, after closing every connection.
func (h *Hub) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Hub started", "matchmaking.timeout", h.cfg.MatchmakingTimeout,
		"grid.default_size", h.cfg.DefaultGridSize)
	defer h.shutdown(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-h.register:
			h.handleRegister(ctx, req)

		case p := <-h.unregister:
			h.handleDisconnect(ctx, p)

		case msg := <-h.inbound:
			h.handleMessage(ctx, msg.Player, msg.Message)

		case playerID := <-h.matchManager.Expired():
			h.handleMatchmakingTimeout(ctx, playerID)

		case r := <-h.roomClosed:
			h.handleRoomClosed(ctx, r)
		}
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	close(h.done)
	h.matchManager.Close()
	for id, p := range h.clients {
		p.Close()
		delete(h.clients, id)
	}
	slog.InfoContext(ctx, "Hub stopped", "rooms.open", len(h.rooms))
}

// Register returns the register channel.
func (h *Hub) Register() chan<- *types.RegistrationRequest {
	return h.register
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// onRoomClosed runs on the room goroutine.
func (h *Hub) onRoomClosed(r *room.Room) {
	select {
	case h.roomClosed <- r:
	case <-h.done:
	}
}
