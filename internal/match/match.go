package match

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
)

// State is where a client stands in matchmaking.
type State string

const (
	StateIdle     State = "idle"
	StateWaiting  State = "waiting"
	StateMatched  State = "matched"
	StateTimedOut State = "timed_out"
)

const DefaultTimeout = 30 * time.Second

var ErrClosed = errors.New("match manager closed")

// Pair is two clients matched for one room. Players[0] was enqueued first and plays MarkA.
type Pair struct {
	Players  [2]string
	GridSize int
}

type request struct {
	playerID   string
	gridSize   int
	enqueuedAt time.Time
	timer      *time.Timer
}

// MatchManager is the waiting pool. Clients are paired first-in first-out with clients
// that asked for the same grid size; a client left waiting past the timeout is dropped
// and reported on Expired.
type MatchManager struct {
	mu      sync.Mutex
	timeout time.Duration
	queues  map[int][]*request
	waiting map[string]*request
	states  map[string]State
	closed  bool

	expired chan string
	done    chan struct{}
}

func NewMatchManager(timeout time.Duration) *MatchManager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &MatchManager{
		timeout: timeout,
		queues:  make(map[int][]*request),
		waiting: make(map[string]*request),
		states:  make(map[string]State),
		expired: make(chan string, 16),
		done:    make(chan struct{}),
	}
}

// FindMatch puts playerID in the pool. It returns the pair when a waiting client with the
// same grid size was already there, or nil when playerID is now waiting. Calling it again
// while waiting changes nothing.
func (m *MatchManager) FindMatch(playerID string, gridSize int) (*Pair, error) {
	if gridSize < game.MinSize || gridSize > game.MaxSize {
		return nil, game.ErrInvalidSize
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if _, ok := m.waiting[playerID]; ok {
		return nil, nil
	}

	if queue := m.queues[gridSize]; len(queue) > 0 {
		first := queue[0]
		m.queues[gridSize] = queue[1:]
		delete(m.waiting, first.playerID)
		first.timer.Stop()

		m.states[first.playerID] = StateMatched
		m.states[playerID] = StateMatched
		slog.Info("Matchmaker: matched players", "player.first", first.playerID, "player.second", playerID,
			"grid.size", gridSize, "waited", time.Since(first.enqueuedAt))
		return &Pair{Players: [2]string{first.playerID, playerID}, GridSize: gridSize}, nil
	}

	req := &request{playerID: playerID, gridSize: gridSize, enqueuedAt: time.Now()}
	req.timer = time.AfterFunc(m.timeout, func() { m.expire(req) })
	m.queues[gridSize] = append(m.queues[gridSize], req)
	m.waiting[playerID] = req
	m.states[playerID] = StateWaiting
	slog.Debug("Matchmaker: player waiting", "player.id", playerID, "grid.size", gridSize)
	return nil, nil
}

// Cancel takes playerID out of the pool and returns it to idle. It reports whether the
// player was waiting; cancelling a client that is not waiting is a no-op.
func (m *MatchManager) Cancel(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.removeLocked(playerID) {
		return false
	}
	m.states[playerID] = StateIdle
	slog.Debug("Matchmaker: player cancelled", "player.id", playerID)
	return true
}

// Forget drops everything known about playerID, for clients that disconnected.
func (m *MatchManager) Forget(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(playerID)
	delete(m.states, playerID)
}

// Release returns a matched client to idle once its room is gone.
func (m *MatchManager) Release(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.states[playerID] == StateMatched {
		m.states[playerID] = StateIdle
	}
}

func (m *MatchManager) removeLocked(playerID string) bool {
	req, ok := m.waiting[playerID]
	if !ok {
		return false
	}
	req.timer.Stop()
	delete(m.waiting, playerID)

	queue := m.queues[req.gridSize]
	for i, r := range queue {
		if r == req {
			m.queues[req.gridSize] = append(queue[:i:i], queue[i+1:]...)
			break
		}
	}
	return true
}

func (m *MatchManager) expire(req *request) {
	m.mu.Lock()
	if m.waiting[req.playerID] != req {
		// Paired, cancelled or re-queued since the timer was armed.
		m.mu.Unlock()
		return
	}
	m.removeLocked(req.playerID)
	m.states[req.playerID] = StateTimedOut
	m.mu.Unlock()

	slog.Info("Matchmaker: no match found before timeout", "player.id", req.playerID, "timeout", m.timeout)
	select {
	case m.expired <- req.playerID:
	case <-m.done:
	}
}

// ConsumeTimeout reports whether playerID is still timed out, and returns it to idle when
// it is. An expiry read from Expired is stale when this returns false: the client queued
// again or was matched after its wait ran out, or the timeout was already reported.
func (m *MatchManager) ConsumeTimeout(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.states[playerID] != StateTimedOut {
		return false
	}
	m.states[playerID] = StateIdle
	return true
}

// State returns playerID's matchmaking state. Unknown clients are idle.
func (m *MatchManager) State(playerID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.states[playerID]; ok {
		return st
	}
	return StateIdle
}

// Waiting returns the number of clients in the pool.
func (m *MatchManager) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting)
}

// Expired delivers the ids of clients whose wait timed out.
func (m *MatchManager) Expired() <-chan string {
	return m.expired
}

// Close stops every pending timeout. FindMatch fails afterwards.
func (m *MatchManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for id := range m.waiting {
		m.removeLocked(id)
	}
	close(m.done)
}
