package server

import (
	"log/slog"
	"net/http"

	"ctchen222/Tic-Tac-Toe-Grid/internal/api/controller"
	"ctchen222/Tic-Tac-Toe-Grid/internal/hub"
	"ctchen222/Tic-Tac-Toe-Grid/internal/hub/types"
	"ctchen222/Tic-Tac-Toe-Grid/internal/player"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("server")

type Server struct {
	hub              *hub.Hub
	gameController   *controller.GameController
	playerController *controller.PlayerController
	upgrader         websocket.Upgrader
	engine           *gin.Engine
}

func NewServer(h *hub.Hub, gc *controller.GameController, pc *controller.PlayerController) *Server {
	s := &Server{
		hub:              h,
		gameController:   gc,
		playerController: pc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.engine = s.routes()
	return s
}

// Engine returns the gin engine serving every route.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	api.POST("/guest", s.playerController.GuestLogin)

	games := api.Group("/games")
	games.POST("", s.gameController.Create)
	games.GET("/:id", s.gameController.Get)
	games.POST("/:id/moves", s.gameController.Move)
	games.POST("/:id/reset", s.gameController.Reset)
	games.DELETE("/:id", s.gameController.Delete)

	return r
}

// handleWebSocket's only responsibility is to upgrade the connection and
// pass a registration request to the hub.
func (s *Server) handleWebSocket(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "server.handleWebSocket", trace.WithAttributes(
		attribute.String("http.url", c.Request.URL.String()),
		attribute.String("http.method", c.Request.Method),
	))
	defer span.End()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "Failed to upgrade connection", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}

	// Get playerID from URL, or generate a new one.
	playerID := c.Query("playerId")
	if playerID == "" {
		playerID = uuid.New().String()
	}
	span.SetAttributes(attribute.String("player.id", playerID))

	req := &types.RegistrationRequest{
		Player: player.NewPlayer(playerID, conn),
		Ctx:    ctx,
	}
	select {
	case s.hub.Register() <- req:
	case <-s.hub.Done():
		_ = conn.Close()
	case <-ctx.Done():
		_ = conn.Close()
	}
}
