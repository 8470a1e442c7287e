package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/pkg/proto"

	"github.com/gorilla/websocket"
)

var (
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrMatchmakingTimeout   = errors.New("no match found before timeout")
	ErrPeerDisconnected     = errors.New("opponent disconnected")
)

const writeWait = 5 * time.Second

// Transport carries envelopes to and from the server.
type Transport interface {
	Send(ctx context.Context, event string, payload any) error
	Receive(ctx context.Context) (proto.Envelope, error)
	Close() error
}

// Conn is a websocket connection to the game server. Send may be called from several
// goroutines; Receive from one.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// Dial connects to the websocket endpoint at rawURL.
func Dial(ctx context.Context, rawURL string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransportUnavailable, rawURL, err)
	}
	return &Conn{ws: ws}, nil
}

func (c *Conn) Send(ctx context.Context, event string, payload any) error {
	data, err := proto.Encode(event, payload)
	if err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: send %s: %v", ErrTransportUnavailable, event, err)
	}
	return nil
}

// Receive blocks for the next server envelope until ctx is done. Cancelling ctx fails the
// pending read and leaves the connection unusable for further reads.
func (c *Conn) Receive(ctx context.Context) (proto.Envelope, error) {
	deadline, _ := ctx.Deadline()
	_ = c.ws.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return proto.Envelope{}, ctxErr
		}
		return proto.Envelope{}, fmt.Errorf("%w: receive: %v", ErrTransportUnavailable, err)
	}
	return proto.Decode(data)
}

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}

// WebsocketURL turns the server base URL (http, https, ws or wss) into its /ws endpoint.
func WebsocketURL(base, playerID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	if playerID != "" {
		q.Set("playerId", playerID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
