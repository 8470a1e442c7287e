package player

//go:generate mockgen -destination=mock_player/mock_connection.go -package=mock_player ctchen222/Tic-Tac-Toe-Grid/internal/player Connection

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const sendBufferSize = 32

var (
	ErrClosed         = errors.New("player connection closed")
	ErrSendBufferFull = errors.New("player send buffer full")
)

// Connection is an interface that abstracts the websocket connection.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Player is one connected client. Outbound frames are queued on a buffered channel
// and written by WritePump, so a slow client never blocks the sender.
type Player struct {
	ID   string
	Conn Connection

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewPlayer(id string, conn Connection) *Player {
	return &Player{
		ID:   id,
		Conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send queues a text frame without blocking.
func (p *Player) Send(data []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	select {
	case p.send <- data:
		return nil
	case <-p.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// WritePump writes queued frames to the connection until the player is closed or a
// write fails. A positive heartbeat also sends a ping every interval.
func (p *Player) WritePump(heartbeat time.Duration) {
	var tick <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer func() {
		p.Close()
		_ = p.Conn.Close()
	}()

	for {
		select {
		case <-p.done:
			// Flush what is already queued so final events such as gameOver reach the client.
			for {
				select {
				case data := <-p.send:
					if err := p.write(websocket.TextMessage, data, heartbeat); err != nil {
						return
					}
				default:
					_ = p.Conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}

		case data := <-p.send:
			if err := p.write(websocket.TextMessage, data, heartbeat); err != nil {
				slog.Warn("Failed to write to player, closing", "player.id", p.ID, "error", err)
				return
			}

		case <-tick:
			if err := p.write(websocket.PingMessage, nil, heartbeat); err != nil {
				slog.Warn("Failed to send ping to player, assuming disconnect", "player.id", p.ID, "error", err)
				return
			}
		}
	}
}

func (p *Player) write(messageType int, data []byte, heartbeat time.Duration) error {
	if heartbeat > 0 {
		_ = p.Conn.SetWriteDeadline(time.Now().Add(heartbeat))
	}
	return p.Conn.WriteMessage(messageType, data)
}

// ReadPump reads frames and passes them to deliver until the connection fails or deliver
// returns false. With a positive pongWait a client that stops answering pings is dropped.
func (p *Player) ReadPump(pongWait time.Duration, deliver func([]byte) bool) error {
	if pongWait > 0 {
		_ = p.Conn.SetReadDeadline(time.Now().Add(pongWait))
		p.Conn.SetPongHandler(func(string) error {
			return p.Conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, msg, err := p.Conn.ReadMessage()
		if err != nil {
			return err
		}
		if !deliver(msg) {
			return nil
		}
	}
}

// Close stops the player. The write pump flushes queued frames and then closes the
// connection. It is safe to call more than once.
func (p *Player) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// Done is closed once the player has been closed.
func (p *Player) Done() <-chan struct{} {
	return p.done
}
