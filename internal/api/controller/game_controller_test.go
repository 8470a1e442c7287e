package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ctchen222/Tic-Tac-Toe-Grid/internal/api/repository"
	"ctchen222/Tic-Tac-Toe-Grid/internal/api/service"
	"ctchen222/Tic-Tac-Toe-Grid/internal/bot"
	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
	"ctchen222/Tic-Tac-Toe-Grid/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gameEnvelope struct {
	Success bool `json:"success"`
	Code    int  `json:"code"`
	Extras  struct {
		ID              string        `json:"id"`
		Board           [][]game.Mark `json:"board"`
		CurrentPlayer   game.Mark     `json:"currentPlayer"`
		Status          string        `json:"status"`
		Winner          game.Mark     `json:"winner"`
		Mode            string        `json:"mode"`
		ComputerPending bool          `json:"computerPending"`
		Message         string        `json:"message"`
		PlayerID        string        `json:"player_id"`
	} `json:"extras"`
}

func newRouter(delay time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	gc := NewGameController(service.NewGameService(repository.NewGameRepository(), bot.Selector{}, delay, service.Limits{}))
	pc := NewPlayerController(service.NewPlayerService())

	api := r.Group("/api")
	api.POST("/guest", pc.GuestLogin)
	api.POST("/games", gc.Create)
	api.GET("/games/:id", gc.Get)
	api.POST("/games/:id/moves", gc.Move)
	api.POST("/games/:id/reset", gc.Reset)
	api.DELETE("/games/:id", gc.Delete)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) (int, gameEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env gameEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestGameAPI_SelfPlayToWin(t *testing.T) {
	r := newRouter(0)

	code, created := do(t, r, http.MethodPost, "/api/games", gin.H{"gridSize": 3, "opponentMode": "self"})
	require.Equal(t, http.StatusCreated, code)
	id := created.Extras.ID
	require.NotEmpty(t, id)
	assert.Len(t, created.Extras.Board, 3)
	assert.Equal(t, game.MarkA, created.Extras.CurrentPlayer)

	moves := [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {0, 2}}
	var last gameEnvelope
	for _, m := range moves {
		code, last = do(t, r, http.MethodPost, "/api/games/"+id+"/moves", gin.H{"row": m[0], "col": m[1]})
		require.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, string(session.StatusWon), last.Extras.Status)
	assert.Equal(t, game.MarkA, last.Extras.Winner)

	code, env := do(t, r, http.MethodPost, "/api/games/"+id+"/moves", gin.H{"row": 2, "col": 2})
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)

	code, env = do(t, r, http.MethodPost, "/api/games/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(session.StatusPlaying), env.Extras.Status)
}

func TestGameAPI_Errors(t *testing.T) {
	r := newRouter(0)

	_, created := do(t, r, http.MethodPost, "/api/games", gin.H{"gridSize": 4, "opponentMode": "self"})
	id := created.Extras.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"size too small", http.MethodPost, "/api/games", gin.H{"gridSize": 2, "opponentMode": "self"}, http.StatusBadRequest},
		{"unknown mode", http.MethodPost, "/api/games", gin.H{"gridSize": 3, "opponentMode": "bot"}, http.StatusBadRequest},
		{"human mode", http.MethodPost, "/api/games", gin.H{"gridSize": 3, "opponentMode": "human"}, http.StatusBadRequest},
		{"missing game", http.MethodGet, "/api/games/nope", nil, http.StatusNotFound},
		{"missing col", http.MethodPost, "/api/games/" + id + "/moves", gin.H{"row": 0}, http.StatusBadRequest},
		{"out of bounds", http.MethodPost, "/api/games/" + id + "/moves", gin.H{"row": 4, "col": 0}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Extras.Message)
		})
	}

	code, _ := do(t, r, http.MethodPost, "/api/games/"+id+"/moves", gin.H{"row": 0, "col": 0})
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodPost, "/api/games/"+id+"/moves", gin.H{"row": 0, "col": 0})
	assert.Equal(t, http.StatusBadRequest, code, "occupied cell")

	code, _ = do(t, r, http.MethodDelete, "/api/games/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodGet, "/api/games/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGameAPI_ComputerReplies(t *testing.T) {
	r := newRouter(200 * time.Millisecond)

	_, created := do(t, r, http.MethodPost, "/api/games", gin.H{"gridSize": 3, "opponentMode": "computer"})
	id := created.Extras.ID

	code, env := do(t, r, http.MethodPost, "/api/games/"+id+"/moves", gin.H{"row": 1, "col": 1})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, game.MarkB, env.Extras.CurrentPlayer)

	// The human cannot move while the computer is thinking.
	code, _ = do(t, r, http.MethodPost, "/api/games/"+id+"/moves", gin.H{"row": 0, "col": 0})
	assert.Equal(t, http.StatusConflict, code)

	require.Eventually(t, func() bool {
		_, env := do(t, r, http.MethodGet, "/api/games/"+id, nil)
		return env.Extras.CurrentPlayer == game.MarkA && !env.Extras.ComputerPending
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGuestLogin(t *testing.T) {
	r := newRouter(0)
	code, env := do(t, r, http.MethodPost, "/api/guest", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, env.Extras.PlayerID)
}
