package hub

import (
	"context"
	"testing"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
	"ctchen222/Tic-Tac-Toe-Grid/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-Grid/internal/match"
	"ctchen222/Tic-Tac-Toe-Grid/internal/player"
	"ctchen222/Tic-Tac-Toe-Grid/internal/player/playertest"
	"ctchen222/Tic-Tac-Toe-Grid/pkg/proto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, cfg Config) *Hub {
	t.Helper()
	if cfg.MatchmakingTimeout == 0 {
		cfg.MatchmakingTimeout = time.Minute
	}
	h := NewHub(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h
}

func connect(t *testing.T, h *Hub, id string) (*playertest.Conn, string) {
	t.Helper()
	conn := playertest.NewConn()
	h.Register() <- &types.RegistrationRequest{Player: player.NewPlayer(id, conn), Ctx: context.Background()}

	var hello proto.ConnectedPayload
	conn.Expect(t, proto.EventConnected, &hello)
	return conn, hello.ClientID
}

func matchTwo(t *testing.T, h *Hub, gridSize int) (a, b *playertest.Conn, roomID string) {
	t.Helper()
	a, _ = connect(t, h, "alice")
	b, _ = connect(t, h, "bob")

	a.Push(t, proto.EventFindMatch, proto.FindMatchPayload{GridSize: gridSize})
	a.Expect(t, proto.EventWaiting, nil)
	b.Push(t, proto.EventFindMatch, proto.FindMatchPayload{GridSize: gridSize})

	var foundA, foundB proto.MatchFoundPayload
	a.Expect(t, proto.EventMatchFound, &foundA)
	b.Expect(t, proto.EventMatchFound, &foundB)
	require.Equal(t, foundA, foundB)
	require.Equal(t, []string{"alice", "bob"}, foundA.Players)
	return a, b, foundA.RoomID
}

func TestHub_DuplicateIDGetsFreshOne(t *testing.T) {
	h := startHub(t, Config{})
	_, first := connect(t, h, "alice")
	_, second := connect(t, h, "alice")
	assert.Equal(t, "alice", first)
	assert.NotEqual(t, "alice", second)
	assert.NotEmpty(t, second)
}

func TestHub_MatchAndPlayToWin(t *testing.T) {
	h := startHub(t, Config{})
	a, b, roomID := matchTwo(t, h, 3)

	moves := []struct {
		conn     *playertest.Conn
		row, col int
	}{
		{a, 0, 0}, {b, 1, 0}, {a, 1, 1}, {b, 2, 0}, {a, 2, 2},
	}
	for _, m := range moves {
		m.conn.Push(t, proto.EventMakeMove, proto.MakeMovePayload{RoomID: roomID, Row: m.row, Col: m.col})
		a.Expect(t, proto.EventMoveMade, nil)
		b.Expect(t, proto.EventMoveMade, nil)
	}

	var over proto.GameOverPayload
	a.Expect(t, proto.EventGameOver, &over)
	assert.Equal(t, proto.StatusWon, over.Status)
	assert.Equal(t, game.MarkA, over.Winner)
	b.Expect(t, proto.EventGameOver, nil)

	// Moving after the end is rejected as game over.
	b.Push(t, proto.EventMakeMove, proto.MakeMovePayload{RoomID: roomID, Row: 0, Col: 2})
	var rejected proto.MoveRejectedPayload
	b.Expect(t, proto.EventMoveRejected, &rejected)
	assert.Equal(t, proto.CodeGameOver, rejected.Code)

	// The advisory gameEnd is accepted silently.
	a.Push(t, proto.EventGameEnd, proto.GameEndPayload{RoomID: roomID, Status: proto.StatusWon, Winner: game.MarkA})
	a.ExpectSilence(t, 50*time.Millisecond)

	// Both may look for a new game afterwards.
	a.Push(t, proto.EventFindMatch, proto.FindMatchPayload{})
	a.Expect(t, proto.EventWaiting, nil)
}

func TestHub_TurnViolationOnlyReachesSender(t *testing.T) {
	h := startHub(t, Config{})
	a, b, roomID := matchTwo(t, h, 3)

	b.Push(t, proto.EventMakeMove, proto.MakeMovePayload{RoomID: roomID, Row: 0, Col: 0})
	var rejected proto.MoveRejectedPayload
	b.Expect(t, proto.EventMoveRejected, &rejected)
	assert.Equal(t, proto.CodeTurnViolation, rejected.Code)
	assert.Equal(t, game.MarkA, rejected.CurrentPlayer)
	a.ExpectSilence(t, 50*time.Millisecond)
}

func TestHub_MalformedAdvisoryBoardDoesNotBlockMove(t *testing.T) {
	h := startHub(t, Config{})
	a, b, roomID := matchTwo(t, h, 3)

	a.Push(t, proto.EventMakeMove, map[string]any{
		"roomId": roomID, "row": 1, "col": 1, "board": [][]string{{"?", "Z"}},
	})
	var made proto.MoveMadePayload
	a.Expect(t, proto.EventMoveMade, &made)
	b.Expect(t, proto.EventMoveMade, nil)
	assert.Equal(t, game.MarkA, made.Board[1][1])
	assert.Equal(t, game.MarkB, made.NextPlayer)
}

func TestHub_FindMatchWhilePlayingIsRefused(t *testing.T) {
	h := startHub(t, Config{})
	a, _, _ := matchTwo(t, h, 4)

	a.Push(t, proto.EventFindMatch, proto.FindMatchPayload{})
	var errPayload proto.ErrorPayload
	a.Expect(t, proto.EventError, &errPayload)
	assert.Equal(t, proto.CodeAlreadyInRoom, errPayload.Code)
}

func TestHub_MoveWithoutRoom(t *testing.T) {
	h := startHub(t, Config{})
	a, _ := connect(t, h, "alice")

	a.Push(t, proto.EventMakeMove, proto.MakeMovePayload{RoomID: "nowhere", Row: 0, Col: 0})
	var rejected proto.MoveRejectedPayload
	a.Expect(t, proto.EventMoveRejected, &rejected)
	assert.Equal(t, proto.CodeNotInRoom, rejected.Code)
}

func TestHub_CancelIsSilentAndIdempotent(t *testing.T) {
	h := startHub(t, Config{})
	a, _ := connect(t, h, "alice")
	b, _ := connect(t, h, "bob")

	a.Push(t, proto.EventFindMatch, proto.FindMatchPayload{})
	a.Expect(t, proto.EventWaiting, nil)
	a.Push(t, proto.EventCancelMatchmaking, nil)
	a.Push(t, proto.EventCancelMatchmaking, nil)
	a.ExpectSilence(t, 50*time.Millisecond)

	// Bob finds nobody because Alice left the pool.
	b.Push(t, proto.EventFindMatch, proto.FindMatchPayload{})
	b.Expect(t, proto.EventWaiting, nil)
	a.ExpectSilence(t, 50*time.Millisecond)
}

func TestHub_MatchmakingTimeout(t *testing.T) {
	h := startHub(t, Config{MatchmakingTimeout: 30 * time.Millisecond})
	a, _ := connect(t, h, "alice")

	a.Push(t, proto.EventFindMatch, proto.FindMatchPayload{GridSize: 6})
	a.Expect(t, proto.EventWaiting, nil)
	a.Expect(t, proto.EventNoMatchFound, nil)
}

func TestHub_StaleTimeoutDoesNotReachMatchedPlayer(t *testing.T) {
	// Drive the handlers directly so the expiry is handled after the new findMatch frames,
	// the order Run may pick when both channels are ready.
	h := NewHub(Config{MatchmakingTimeout: 20 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		h.shutdown(context.Background())
	})

	register := func(id string) (*player.Player, *playertest.Conn) {
		conn := playertest.NewConn()
		p := player.NewPlayer(id, conn)
		h.handleRegister(ctx, &types.RegistrationRequest{Player: p, Ctx: ctx})
		conn.Expect(t, proto.EventConnected, nil)
		return p, conn
	}
	findMatch := func(p *player.Player) {
		raw, err := proto.Encode(proto.EventFindMatch, proto.FindMatchPayload{GridSize: 3})
		require.NoError(t, err)
		h.handleMessage(ctx, p, raw)
	}

	alice, aliceConn := register("alice")
	bob, bobConn := register("bob")

	findMatch(alice)
	aliceConn.Expect(t, proto.EventWaiting, nil)

	var expired string
	select {
	case expired = <-h.matchManager.Expired():
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for matchmaking expiry")
	}
	require.Equal(t, "alice", expired)

	findMatch(alice)
	aliceConn.Expect(t, proto.EventWaiting, nil)
	findMatch(bob)
	aliceConn.Expect(t, proto.EventMatchFound, nil)
	bobConn.Expect(t, proto.EventMatchFound, nil)

	h.handleMatchmakingTimeout(ctx, expired)
	aliceConn.ExpectSilence(t, 50*time.Millisecond)
	assert.Equal(t, match.StateMatched, h.matchManager.State("alice"))
}

func TestHub_DisconnectNotifiesOpponent(t *testing.T) {
	h := startHub(t, Config{})
	a, b, roomID := matchTwo(t, h, 3)

	require.NoError(t, a.Close())
	b.Expect(t, proto.EventOpponentDisconnected, nil)

	// The survivor is not re-queued and its room is gone.
	b.Push(t, proto.EventMakeMove, proto.MakeMovePayload{RoomID: roomID, Row: 0, Col: 0})
	var rejected proto.MoveRejectedPayload
	b.Expect(t, proto.EventMoveRejected, &rejected)
	assert.Equal(t, proto.CodeNotInRoom, rejected.Code)
}

func TestHub_BadMessages(t *testing.T) {
	h := startHub(t, Config{})
	a, _ := connect(t, h, "alice")

	tests := []struct {
		name  string
		event string
		body  any
		code  string
	}{
		{"unknown event", "dance", nil, proto.CodeUnknownEvent},
		{"grid too large", proto.EventFindMatch, map[string]int{"gridSize": 11}, proto.CodeBadMessage},
		{"move without room", proto.EventMakeMove, map[string]int{"row": 0, "col": 0}, proto.CodeBadMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.Push(t, tt.event, tt.body)
			var errPayload proto.ErrorPayload
			a.Expect(t, proto.EventError, &errPayload)
			assert.Equal(t, tt.code, errPayload.Code)
		})
	}
}
