package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentServer accepts websocket connections and never writes to them.
func silentServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	wsURL, err := WebsocketURL(srv.URL, "alice")
	require.NoError(t, err)
	return wsURL
}

func TestConn_ReceiveReturnsOnCancel(t *testing.T) {
	conn, err := Dial(context.Background(), silentServer(t))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	_, err = conn.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTransportUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRemote_RunStopsWhenContextIsCancelled(t *testing.T) {
	conn, err := Dial(context.Background(), silentServer(t))
	require.NoError(t, err)
	defer conn.Close()

	r := NewRemote(conn, RemoteOptions{GridSize: 3})
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	select {
	case <-r.Done():
	default:
		t.Fatal("Done not closed after Run returned")
	}
}

func TestDial_Unreachable(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws")
	assert.ErrorIs(t, err, ErrTransportUnavailable)
}
