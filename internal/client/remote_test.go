package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
	"ctchen222/Tic-Tac-Toe-Grid/internal/session"
	"ctchen222/Tic-Tac-Toe-Grid/pkg/proto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	event   string
	payload any
}

// fakeTransport hands scripted server envelopes to Receive and records Send calls.
type fakeTransport struct {
	inbox chan proto.Envelope
	fail  chan error

	mu   sync.Mutex
	sent []sent
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbox: make(chan proto.Envelope, 16), fail: make(chan error, 1)}
}

func (f *fakeTransport) Send(_ context.Context, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{event, payload})
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) (proto.Envelope, error) {
	select {
	case env := <-f.inbox:
		return env, nil
	case err := <-f.fail:
		return proto.Envelope{}, err
	case <-ctx.Done():
		return proto.Envelope{}, ctx.Err()
	}
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) push(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	f.inbox <- proto.Envelope{Event: event, Payload: raw}
}

func (f *fakeTransport) Sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func startRemote(t *testing.T, opts RemoteOptions) (*Remote, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	r := NewRemote(ft, opts)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-r.Done()
	})
	return r, ft
}

func next(t *testing.T, r *Remote, kind EventKind) Event {
	t.Helper()
	select {
	case ev := <-r.Events():
		require.Equal(t, kind, ev.Kind, "event %+v", ev)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %s", kind)
		return Event{}
	}
}

func matched(t *testing.T, r *Remote, ft *fakeTransport, self string, players []string) {
	t.Helper()
	ft.push(t, proto.EventConnected, proto.ConnectedPayload{ClientID: self})
	next(t, r, EventConnected)
	ft.push(t, proto.EventMatchFound, proto.MatchFoundPayload{RoomID: "room-1", Players: players, GridSize: 3})
	next(t, r, EventMatchFound)
}

func emptyBoard(n int) [][]game.Mark {
	board := make([][]game.Mark, n)
	for i := range board {
		board[i] = make([]game.Mark, n)
	}
	return board
}

func TestRemote_MatchFoundAssignsSeat(t *testing.T) {
	tests := []struct {
		self string
		want game.Mark
	}{
		{"alice", game.MarkA},
		{"bob", game.MarkB},
	}
	for _, tt := range tests {
		t.Run(tt.self, func(t *testing.T) {
			r, ft := startRemote(t, RemoteOptions{})
			matched(t, r, ft, tt.self, []string{"alice", "bob"})

			snap := r.Session().Snapshot()
			assert.Equal(t, tt.want, snap.LocalMark)
			assert.Equal(t, "room-1", snap.RoomID)
			assert.True(t, snap.PeerConnected)
			assert.Equal(t, session.ModeRemote, snap.Mode)
		})
	}
}

func TestRemote_PlaySendsOptimisticMove(t *testing.T) {
	r, ft := startRemote(t, RemoteOptions{})
	matched(t, r, ft, "alice", []string{"alice", "bob"})

	_, err := r.Play(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, game.MarkA, r.Session().Snapshot().Board[1][1])

	msgs := ft.Sent()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, proto.EventMakeMove, last.event)
	move := last.payload.(proto.MakeMovePayload)
	assert.Equal(t, "room-1", move.RoomID)
	assert.Equal(t, 1, move.Row)
	assert.JSONEq(t, `[[null,null,null],[null,"X",null],[null,null,null]]`, string(move.Board))

	// Out of turn locally: nothing is sent.
	_, err = r.Play(context.Background(), 0, 0)
	assert.ErrorIs(t, err, session.ErrTurnViolation)
	assert.Len(t, ft.Sent(), len(msgs))
}

func TestRemote_PlayBeforeMatch(t *testing.T) {
	r, _ := startRemote(t, RemoteOptions{})
	_, err := r.Play(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestRemote_RejectionReconcilesToServerState(t *testing.T) {
	r, ft := startRemote(t, RemoteOptions{})
	matched(t, r, ft, "alice", []string{"alice", "bob"})

	_, err := r.Play(context.Background(), 0, 0)
	require.NoError(t, err)

	// The server saw a different board: the cell was already taken by the opponent.
	board := emptyBoard(3)
	board[0][0] = game.MarkB
	ft.push(t, proto.EventMoveRejected, proto.MoveRejectedPayload{
		Code:          proto.CodeInvalidMove,
		Reason:        "cell is occupied",
		Board:         board,
		CurrentPlayer: game.MarkA,
	})

	ev := next(t, r, EventMoveRejected)
	assert.ErrorIs(t, ev.Err, game.ErrInvalidMove)
	assert.Equal(t, game.MarkB, ev.Snapshot.Board[0][0])
	assert.Equal(t, game.MarkA, ev.Snapshot.CurrentMark)
}

func TestRemote_MoveMadeAndGameOver(t *testing.T) {
	r, ft := startRemote(t, RemoteOptions{})
	matched(t, r, ft, "bob", []string{"alice", "bob"})

	board := emptyBoard(3)
	board[0][0] = game.MarkA
	ft.push(t, proto.EventMoveMade, proto.MoveMadePayload{Row: 0, Col: 0, Player: game.MarkA, NextPlayer: game.MarkB, Board: board})
	ev := next(t, r, EventBoardUpdated)
	assert.Equal(t, &game.Move{Row: 0, Col: 0}, ev.Move)
	assert.Equal(t, game.MarkB, ev.Snapshot.CurrentMark)

	// Now it is Bob's turn locally.
	_, err := r.Play(context.Background(), 1, 1)
	require.NoError(t, err)

	ft.push(t, proto.EventGameOver, proto.GameOverPayload{Status: proto.StatusDraw})
	ev = next(t, r, EventGameOver)
	assert.Equal(t, session.StatusDraw, ev.Snapshot.Status)
}

func TestRemote_MatchmakingTimeout(t *testing.T) {
	r, ft := startRemote(t, RemoteOptions{GridSize: 5})
	require.NoError(t, r.FindMatch(context.Background()))
	assert.Equal(t, proto.FindMatchPayload{GridSize: 5}, ft.Sent()[0].payload)

	ft.push(t, proto.EventWaiting, proto.Empty{})
	next(t, r, EventWaiting)
	ft.push(t, proto.EventNoMatchFound, proto.Empty{})
	ev := next(t, r, EventNoMatchFound)
	assert.ErrorIs(t, ev.Err, ErrMatchmakingTimeout)
}

func TestRemote_OpponentDisconnectReturnsToConfigAfterGrace(t *testing.T) {
	r, ft := startRemote(t, RemoteOptions{DisconnectGrace: 30 * time.Millisecond})
	matched(t, r, ft, "alice", []string{"alice", "bob"})

	start := time.Now()
	ft.push(t, proto.EventOpponentDisconnected, proto.Empty{})
	ev := next(t, r, EventOpponentDisconnected)
	assert.ErrorIs(t, ev.Err, ErrPeerDisconnected)
	assert.False(t, ev.Snapshot.PeerConnected)

	next(t, r, EventReturnToConfig)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRemote_TransportLost(t *testing.T) {
	r, ft := startRemote(t, RemoteOptions{})
	ft.fail <- fmt.Errorf("%w: connection reset", ErrTransportUnavailable)

	ev := next(t, r, EventTransportLost)
	assert.ErrorIs(t, ev.Err, ErrTransportUnavailable)
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("remote did not stop")
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base, id, want string
		wantErr        bool
	}{
		{"http://localhost:8080", "", "ws://localhost:8080/ws", false},
		{"https://example.com/game/", "p1", "wss://example.com/game/ws?playerId=p1", false},
		{"ws://127.0.0.1:9000", "", "ws://127.0.0.1:9000/ws", false},
		{"ftp://example.com", "", "", true},
	}
	for _, tt := range tests {
		got, err := WebsocketURL(tt.base, tt.id)
		if tt.wantErr {
			assert.Error(t, err, tt.base)
			continue
		}
		require.NoError(t, err, tt.base)
		assert.Equal(t, tt.want, got)
	}
}
