// Package playertest provides an in-memory websocket connection for tests.
package playertest

import (
	"errors"
	"sync"
	"testing"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/pkg/proto"

	"github.com/gorilla/websocket"
)

var ErrConnClosed = errors.New("fake connection closed")

// Conn satisfies player.Connection. Text frames written by the server appear on Writes;
// frames pushed with Push are returned by ReadMessage.
type Conn struct {
	Writes chan []byte

	reads     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func NewConn() *Conn {
	return &Conn{
		Writes: make(chan []byte, 64),
		reads:  make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *Conn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	select {
	case c.Writes <- data:
		return nil
	case <-c.closed:
		return ErrConnClosed
	}
}

func (c *Conn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.reads:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, ErrConnClosed
	}
}

func (c *Conn) SetReadDeadline(time.Time) error  { return nil }
func (c *Conn) SetWriteDeadline(time.Time) error { return nil }
func (c *Conn) SetPongHandler(func(string) error) {}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Closed is closed once Close has been called.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// Push queues a client frame.
func (c *Conn) Push(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := proto.Encode(event, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", event, err)
	}
	c.reads <- data
}

// NextEvent waits for the next frame written to the client.
func (c *Conn) NextEvent(t *testing.T) proto.Envelope {
	t.Helper()
	select {
	case data := <-c.Writes:
		env, err := proto.Decode(data)
		if err != nil {
			t.Fatalf("decode server frame %s: %v", data, err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for server frame")
		return proto.Envelope{}
	}
}

// Expect waits for the next frame, checks its event name and binds its payload into v.
func (c *Conn) Expect(t *testing.T, event string, v any) {
	t.Helper()
	env := c.NextEvent(t)
	if env.Event != event {
		t.Fatalf("expected %s event, got %s: %s", event, env.Event, env.Payload)
	}
	if v != nil {
		if err := env.Bind(v); err != nil {
			t.Fatalf("bind %s payload: %v", event, err)
		}
	}
}

// ExpectSilence fails if a frame arrives within d.
func (c *Conn) ExpectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case data := <-c.Writes:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(d):
	}
}
