package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
	"ctchen222/Tic-Tac-Toe-Grid/internal/session"
	"ctchen222/Tic-Tac-Toe-Grid/pkg/proto"
)

const DefaultDisconnectGrace = 3 * time.Second

var ErrNoMatch = errors.New("not in a match")

// EventKind names what happened in a remote game.
type EventKind string

const (
	EventConnected            EventKind = "connected"
	EventWaiting              EventKind = "waiting"
	EventMatchFound           EventKind = "matchFound"
	EventNoMatchFound         EventKind = "noMatchFound"
	EventBoardUpdated         EventKind = "boardUpdated"
	EventMoveRejected         EventKind = "moveRejected"
	EventGameOver             EventKind = "gameOver"
	EventOpponentDisconnected EventKind = "opponentDisconnected"
	EventReturnToConfig       EventKind = "returnToConfig"
	EventTransportLost        EventKind = "transportLost"
	EventServerError          EventKind = "serverError"
)

// Event is delivered to the user interface. Snapshot is the local session state after
// the event was applied, when a match exists.
type Event struct {
	Kind     EventKind
	Snapshot session.Snapshot
	Move     *game.Move
	RoomID   string
	Players  []string
	GridSize int
	Code     string
	Reason   string
	Err      error
}

type RemoteOptions struct {
	GridSize        int
	DisconnectGrace time.Duration
}

// Remote plays against another client through the server. Local moves are applied
// optimistically to a local session and then overwritten by whatever the server reports.
type Remote struct {
	transport Transport
	opts      RemoteOptions

	events chan Event
	done   chan struct{}

	mu       sync.Mutex
	clientID string
	session  *session.Session
	grace    *time.Timer
}

func NewRemote(t Transport, opts RemoteOptions) *Remote {
	if opts.GridSize == 0 {
		opts.GridSize = game.MinSize
	}
	if opts.DisconnectGrace <= 0 {
		opts.DisconnectGrace = DefaultDisconnectGrace
	}
	return &Remote{
		transport: t,
		opts:      opts,
		events:    make(chan Event, 32),
		done:      make(chan struct{}),
	}
}

// Events delivers game events until Done is closed.
func (r *Remote) Events() <-chan Event {
	return r.events
}

// Done is closed when Run returns.
func (r *Remote) Done() <-chan struct{} {
	return r.done
}

// Run reads server envelopes until the transport fails or ctx is cancelled.
func (r *Remote) Run(ctx context.Context) error {
	defer func() {
		r.mu.Lock()
		if r.grace != nil {
			r.grace.Stop()
		}
		if r.session != nil {
			r.session.Close()
		}
		r.mu.Unlock()
		close(r.done)
	}()

	for {
		env, err := r.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrTransportUnavailable) {
				r.emit(Event{Kind: EventTransportLost, Err: err})
				return err
			}
			slog.WarnContext(ctx, "Dropping malformed server message", "error", err)
			continue
		}
		r.handle(ctx, env)
	}
}

// FindMatch asks the server for an opponent with the configured grid size.
func (r *Remote) FindMatch(ctx context.Context) error {
	return r.transport.Send(ctx, proto.EventFindMatch, proto.FindMatchPayload{GridSize: r.opts.GridSize})
}

// Cancel leaves the waiting pool.
func (r *Remote) Cancel(ctx context.Context) error {
	return r.transport.Send(ctx, proto.EventCancelMatchmaking, proto.Empty{})
}

// Play applies the move locally and sends it. A move the local session rejects is
// never sent.
func (r *Remote) Play(ctx context.Context, row, col int) (session.MoveResult, error) {
	s := r.Session()
	if s == nil {
		return session.MoveResult{}, ErrNoMatch
	}
	res, err := s.Play(row, col)
	if err != nil {
		return session.MoveResult{}, err
	}

	snap := s.Snapshot()
	board, err := json.Marshal(res.Board)
	if err != nil {
		slog.WarnContext(ctx, "Sending move without board snapshot", "error", err)
		board = nil
	}
	err = r.transport.Send(ctx, proto.EventMakeMove, proto.MakeMovePayload{
		RoomID: snap.RoomID,
		Row:    row,
		Col:    col,
		Board:  board,
	})
	if err != nil {
		return res, err
	}
	if res.Ended {
		status := string(res.Status)
		if err := r.transport.Send(ctx, proto.EventGameEnd, proto.GameEndPayload{
			RoomID: snap.RoomID, Status: status, Winner: res.Winner,
		}); err != nil {
			slog.WarnContext(ctx, "Failed to report game end", "error", err)
		}
	}
	return res, nil
}

// Session returns the local session, or nil before a match was found.
func (r *Remote) Session() *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// ClientID returns the id the server assigned, once connected.
func (r *Remote) ClientID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clientID
}

func (r *Remote) handle(ctx context.Context, env proto.Envelope) {
	switch env.Event {
	case proto.EventConnected:
		var p proto.ConnectedPayload
		if r.bind(ctx, env, &p) {
			r.mu.Lock()
			r.clientID = p.ClientID
			r.mu.Unlock()
			r.emit(Event{Kind: EventConnected})
		}

	case proto.EventWaiting:
		r.emit(Event{Kind: EventWaiting})

	case proto.EventMatchFound:
		var p proto.MatchFoundPayload
		if r.bind(ctx, env, &p) {
			r.handleMatchFound(ctx, p)
		}

	case proto.EventNoMatchFound:
		r.emit(Event{Kind: EventNoMatchFound, Err: ErrMatchmakingTimeout})

	case proto.EventMoveMade:
		var p proto.MoveMadePayload
		if r.bind(ctx, env, &p) {
			r.handleMoveMade(ctx, p)
		}

	case proto.EventMoveRejected:
		var p proto.MoveRejectedPayload
		if r.bind(ctx, env, &p) {
			r.handleMoveRejected(ctx, p)
		}

	case proto.EventGameOver:
		var p proto.GameOverPayload
		if r.bind(ctx, env, &p) {
			r.handleGameOver(ctx, p)
		}

	case proto.EventOpponentDisconnected:
		r.handleOpponentDisconnected()

	case proto.EventError:
		var p proto.ErrorPayload
		if r.bind(ctx, env, &p) {
			r.emit(Event{Kind: EventServerError, Code: p.Code, Reason: p.Message})
		}

	default:
		slog.DebugContext(ctx, "Ignoring server event", "event", env.Event)
	}
}

func (r *Remote) bind(ctx context.Context, env proto.Envelope, v any) bool {
	if err := env.Bind(v); err != nil {
		slog.WarnContext(ctx, "Malformed server payload", "event", env.Event, "error", err)
		return false
	}
	return true
}

func (r *Remote) handleMatchFound(ctx context.Context, p proto.MatchFoundPayload) {
	r.mu.Lock()
	clientID := r.clientID
	r.mu.Unlock()

	var mark game.Mark
	switch {
	case len(p.Players) > 0 && p.Players[0] == clientID:
		mark = game.MarkA
	case len(p.Players) > 1 && p.Players[1] == clientID:
		mark = game.MarkB
	default:
		slog.WarnContext(ctx, "Match does not include this client", "client.id", clientID, "room.id", p.RoomID)
		return
	}

	s, err := session.New(session.Options{
		Size:      p.GridSize,
		Mode:      session.ModeRemote,
		RoomID:    p.RoomID,
		LocalMark: mark,
	})
	if err != nil {
		slog.WarnContext(ctx, "Cannot start remote session", "room.id", p.RoomID, "error", err)
		return
	}
	s.SetPeerConnected(true)

	r.mu.Lock()
	if r.session != nil {
		r.session.Close()
	}
	if r.grace != nil {
		r.grace.Stop()
		r.grace = nil
	}
	r.session = s
	r.mu.Unlock()

	r.emit(Event{
		Kind:     EventMatchFound,
		Snapshot: s.Snapshot(),
		RoomID:   p.RoomID,
		Players:  p.Players,
		GridSize: p.GridSize,
	})
}

func (r *Remote) handleMoveMade(ctx context.Context, p proto.MoveMadePayload) {
	s := r.Session()
	if s == nil {
		return
	}
	snap, err := authoritative(p.Board, p.NextPlayer)
	if err != nil {
		slog.WarnContext(ctx, "Bad board in moveMade", "error", err)
		return
	}
	if err := s.Reconcile(snap); err != nil {
		slog.WarnContext(ctx, "Cannot reconcile moveMade", "error", err)
		return
	}
	r.emit(Event{Kind: EventBoardUpdated, Snapshot: s.Snapshot(), Move: &game.Move{Row: p.Row, Col: p.Col}})
}

func (r *Remote) handleMoveRejected(ctx context.Context, p proto.MoveRejectedPayload) {
	s := r.Session()
	ev := Event{Kind: EventMoveRejected, Code: p.Code, Reason: p.Reason, Err: rejectionError(p.Code)}
	if s != nil {
		if p.Board != nil {
			snap, err := authoritative(p.Board, p.CurrentPlayer)
			if err == nil {
				err = s.Reconcile(snap)
			}
			if err != nil {
				slog.WarnContext(ctx, "Cannot reconcile moveRejected", "error", err)
			}
		}
		ev.Snapshot = s.Snapshot()
	}
	r.emit(ev)
}

func (r *Remote) handleGameOver(ctx context.Context, p proto.GameOverPayload) {
	s := r.Session()
	if s == nil {
		return
	}
	snap := s.Snapshot()
	snap.Status = session.Status(p.Status)
	snap.Winner = p.Winner
	if err := s.Reconcile(snap); err != nil {
		slog.WarnContext(ctx, "Cannot reconcile gameOver", "error", err)
	}
	r.emit(Event{Kind: EventGameOver, Snapshot: s.Snapshot()})
}

// handleOpponentDisconnected shows the notice now and returns to configuration after the grace period.
func (r *Remote) handleOpponentDisconnected() {
	ev := Event{Kind: EventOpponentDisconnected, Err: ErrPeerDisconnected}

	r.mu.Lock()
	if r.session != nil {
		r.session.SetPeerConnected(false)
		ev.Snapshot = r.session.Snapshot()
	}
	if r.grace != nil {
		r.grace.Stop()
	}
	r.grace = time.AfterFunc(r.opts.DisconnectGrace, func() {
		r.emit(Event{Kind: EventReturnToConfig, Err: ErrPeerDisconnected})
	})
	r.mu.Unlock()

	r.emit(ev)
}

func (r *Remote) emit(ev Event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

// authoritative builds a snapshot from a server board. The status follows from the board.
func authoritative(board [][]game.Mark, next game.Mark) (session.Snapshot, error) {
	b, err := game.BoardFromCells(board)
	if err != nil {
		return session.Snapshot{}, err
	}
	snap := session.Snapshot{Board: board, CurrentMark: next, Status: session.StatusPlaying}
	if w := game.Winner(b); w != game.Empty {
		snap.Status = session.StatusWon
		snap.Winner = w
	} else if b.IsFull() {
		snap.Status = session.StatusDraw
	}
	return snap, nil
}

func rejectionError(code string) error {
	switch code {
	case proto.CodeTurnViolation:
		return session.ErrTurnViolation
	case proto.CodeGameOver:
		return session.ErrGameOver
	case proto.CodeNotInRoom:
		return ErrNoMatch
	default:
		return fmt.Errorf("%w: rejected by server", game.ErrInvalidMove)
	}
}
