package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
)

// Mode is the opponent mode a session was created for.
type Mode string

const (
	ModeLocal    Mode = "self"
	ModeComputer Mode = "computer"
	ModeRemote   Mode = "human"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusDraw    Status = "draw"
)

// Terminal reports whether no further moves are accepted.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusDraw
}

const (
	// HumanMark and ComputerMark are the seats in computer mode. The human always opens.
	HumanMark    = game.MarkA
	ComputerMark = game.MarkB

	DefaultComputerDelay = 500 * time.Millisecond
)

var (
	ErrTurnViolation = errors.New("move submitted out of turn")
	ErrGameOver      = errors.New("game is already over")
	ErrInvalidMode   = errors.New("opponent mode must be self, computer or human")
	ErrNoSelector    = errors.New("computer mode requires a move selector")
)

// ParseMode converts the client-facing opponent mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeLocal, ModeComputer, ModeRemote:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// MoveSelector picks a move for the computer opponent. It must not modify the board.
type MoveSelector interface {
	SelectMove(board *game.Board, mark game.Mark) (game.Move, bool)
}

// Options configures a new Session.
type Options struct {
	Size int
	Mode Mode

	// Computer mode
	Selector      MoveSelector
	ComputerDelay time.Duration

	// Remote mode
	RoomID    string
	LocalMark game.Mark

	// OnMove is called after every accepted move, including scheduled computer moves.
	OnMove func(MoveResult)
	// OnEnd is called once per game when it reaches a terminal state.
	OnEnd func(Snapshot)
}

// Snapshot is a copy of a session's observable state.
type Snapshot struct {
	Board         [][]game.Mark `json:"board"`
	CurrentMark   game.Mark     `json:"currentPlayer"`
	Status        Status        `json:"status"`
	Winner        game.Mark     `json:"winner"`
	Mode          Mode          `json:"mode"`
	RoomID        string        `json:"roomId,omitempty"`
	LocalMark     game.Mark     `json:"localMark,omitempty"`
	PeerConnected bool          `json:"peerConnected,omitempty"`
}

// MoveResult describes an accepted move and the state it produced.
type MoveResult struct {
	Move   game.Move
	Mark   game.Mark
	Next   game.Mark
	Status Status
	Winner game.Mark
	Board  [][]game.Mark
	// Ended is true only for the move that finished the game.
	Ended bool
}

// Session is one game: board, turn, status and, depending on the mode, the computer
// opponent's scheduling or the remote seat. All state changes go through ApplyMove,
// Reconcile or Reset.
type Session struct {
	mu sync.Mutex

	board   *game.Board
	current game.Mark
	status  Status
	winner  game.Mark
	mode    Mode
	ended   bool
	closed  bool

	roomID        string
	localMark     game.Mark
	peerConnected bool

	selector   MoveSelector
	delay      time.Duration
	pending    *time.Timer
	generation uint64

	onMove func(MoveResult)
	onEnd  func(Snapshot)
}

// New creates a session in the Playing state with MarkA to move.
func New(opts Options) (*Session, error) {
	board, err := game.NewBoard(opts.Size)
	if err != nil {
		return nil, err
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if opts.Mode == ModeComputer && opts.Selector == nil {
		return nil, ErrNoSelector
	}
	if opts.Mode == ModeRemote && opts.LocalMark != game.Empty && !opts.LocalMark.IsPlayer() {
		return nil, game.ErrInvalidMark
	}

	delay := opts.ComputerDelay
	if delay < 0 {
		delay = 0
	}

	return &Session{
		board:     board,
		current:   game.MarkA,
		status:    StatusPlaying,
		winner:    game.Empty,
		mode:      opts.Mode,
		roomID:    opts.RoomID,
		localMark: opts.LocalMark,
		selector:  opts.Selector,
		delay:     delay,
		onMove:    opts.OnMove,
		onEnd:     opts.OnEnd,
	}, nil
}

// ApplyMove places actingMark at (row, col). A rejected move leaves the session untouched.
// The acting mark must match the current mark only in remote mode.
func (s *Session) ApplyMove(row, col int, actingMark game.Mark) (MoveResult, error) {
	s.mu.Lock()
	res, err := s.applyLocked(row, col, actingMark)
	final := s.finalLocked(res)
	s.mu.Unlock()

	if err != nil {
		return MoveResult{}, err
	}
	s.notify(res, final)
	return res, nil
}

// Play applies a move on behalf of the local user: the current mark in self-play,
// the human seat against the computer, the local seat in remote mode.
func (s *Session) Play(row, col int) (MoveResult, error) {
	s.mu.Lock()
	var acting game.Mark
	switch s.mode {
	case ModeLocal:
		acting = s.current
	case ModeComputer:
		acting = HumanMark
		if s.status == StatusPlaying && s.current != HumanMark {
			s.mu.Unlock()
			return MoveResult{}, ErrTurnViolation
		}
	case ModeRemote:
		acting = s.localMark
	}
	res, err := s.applyLocked(row, col, acting)
	final := s.finalLocked(res)
	s.mu.Unlock()

	if err != nil {
		return MoveResult{}, err
	}
	s.notify(res, final)
	return res, nil
}

func (s *Session) applyLocked(row, col int, acting game.Mark) (MoveResult, error) {
	if s.status != StatusPlaying {
		return MoveResult{}, ErrGameOver
	}
	if !acting.IsPlayer() {
		return MoveResult{}, game.ErrInvalidMark
	}
	if s.mode == ModeRemote && acting != s.current {
		return MoveResult{}, ErrTurnViolation
	}
	if err := s.board.Place(row, col, acting); err != nil {
		return MoveResult{}, err
	}

	switch {
	case game.HasWon(s.board, acting):
		s.status = StatusWon
		s.winner = acting
	case s.board.IsFull():
		s.status = StatusDraw
	default:
		s.current = s.current.Opponent()
	}

	res := MoveResult{
		Move:   game.Move{Row: row, Col: col},
		Mark:   acting,
		Next:   s.current,
		Status: s.status,
		Winner: s.winner,
		Board:  s.board.Cells(),
	}
	if s.status.Terminal() && !s.ended {
		s.ended = true
		res.Ended = true
	}

	if s.mode == ModeComputer && s.status == StatusPlaying && s.current == ComputerMark {
		s.scheduleComputerLocked()
	}
	return res, nil
}

func (s *Session) scheduleComputerLocked() {
	if s.closed || s.pending != nil {
		return
	}
	gen := s.generation
	s.pending = time.AfterFunc(s.delay, func() { s.computerTurn(gen) })
}

// computerTurn runs on the timer goroutine. The game may have ended, been reset or
// been closed since it was scheduled; all of those cancel the move.
func (s *Session) computerTurn(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	if s.closed || s.status != StatusPlaying || s.current != ComputerMark {
		s.mu.Unlock()
		return
	}

	move, ok := s.selector.SelectMove(s.board.Clone(), ComputerMark)
	if !ok {
		s.mu.Unlock()
		return
	}
	res, err := s.applyLocked(move.Row, move.Col, ComputerMark)
	final := s.finalLocked(res)
	s.mu.Unlock()

	if err != nil {
		slog.Warn("computer move rejected", "row", move.Row, "col", move.Col, "error", err)
		return
	}
	s.notify(res, final)
}

// finalLocked captures the end-of-game state while the lock is still held, so a Reset
// racing the callbacks cannot change what OnEnd reports.
func (s *Session) finalLocked(res MoveResult) Snapshot {
	if !res.Ended {
		return Snapshot{}
	}
	return s.snapshotLocked()
}

func (s *Session) notify(res MoveResult, final Snapshot) {
	if s.onMove != nil {
		s.onMove(res)
	}
	if res.Ended && s.onEnd != nil {
		s.onEnd(final)
	}
}

// Reconcile overwrites the session with authoritative state received from the room.
// The end-of-game notification still fires at most once.
func (s *Session) Reconcile(snap Snapshot) error {
	board, err := game.BoardFromCells(snap.Board)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if board.Size() != s.board.Size() {
		s.mu.Unlock()
		return fmt.Errorf("authoritative board is %dx%d, session is %dx%d: %w",
			board.Size(), board.Size(), s.board.Size(), s.board.Size(), game.ErrInvalidSize)
	}
	s.board = board
	if snap.CurrentMark.IsPlayer() {
		s.current = snap.CurrentMark
	}
	if snap.Status != "" {
		s.status = snap.Status
	}
	s.winner = snap.Winner

	fire := false
	var final Snapshot
	if s.status.Terminal() && !s.ended {
		s.ended = true
		fire = true
		final = s.snapshotLocked()
	}
	s.mu.Unlock()

	if fire && s.onEnd != nil {
		s.onEnd(final)
	}
	return nil
}

// Reset starts a new game of the same size and mode. A pending computer move is dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, _ := game.NewBoard(s.board.Size())
	s.board = board
	s.current = game.MarkA
	s.status = StatusPlaying
	s.winner = game.Empty
	s.ended = false
	s.stopPendingLocked()
}

// Close stops any scheduled computer move and keeps new ones from being scheduled.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopPendingLocked()
}

func (s *Session) stopPendingLocked() {
	s.generation++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// SetPeerConnected records whether the remote opponent is still attached.
func (s *Session) SetPeerConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerConnected = connected
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Board:         s.board.Cells(),
		CurrentMark:   s.current,
		Status:        s.status,
		Winner:        s.winner,
		Mode:          s.mode,
		RoomID:        s.roomID,
		LocalMark:     s.localMark,
		PeerConnected: s.peerConnected,
	}
}

func (s *Session) Mode() Mode {
	return s.mode
}

func (s *Session) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Size()
}

// ComputerPending reports whether a computer move is scheduled.
func (s *Session) ComputerPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}
