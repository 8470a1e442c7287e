package controller

import (
	"errors"
	"net/http"

	"ctchen222/Tic-Tac-Toe-Grid/internal/api/models"
	"ctchen222/Tic-Tac-Toe-Grid/internal/api/repository"
	"ctchen222/Tic-Tac-Toe-Grid/internal/api/response"
	"ctchen222/Tic-Tac-Toe-Grid/internal/api/service"
	"ctchen222/Tic-Tac-Toe-Grid/internal/game"
	"ctchen222/Tic-Tac-Toe-Grid/internal/session"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("api")

// GameController handles server-hosted game HTTP requests.
type GameController struct {
	gameService service.GameService
}

// NewGameController creates a new GameController.
func NewGameController(gameService service.GameService) *GameController {
	return &GameController{gameService: gameService}
}

// Create handles POST /api/games.
func (gc *GameController) Create(c *gin.Context) {
	var req models.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := tracer.Start(c.Request.Context(), "api.CreateGame")
	defer span.End()
	span.SetAttributes(attribute.Int("grid.size", req.GridSize), attribute.String("game.mode", req.OpponentMode))

	res, err := gc.gameService.Create(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create game")
		response.ErrorResponse(c, statusFor(err), err.Error())
		return
	}
	response.CreatedResponse(c, res)
}

// Get handles GET /api/games/:id.
func (gc *GameController) Get(c *gin.Context) {
	res, err := gc.gameService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorResponse(c, statusFor(err), err.Error())
		return
	}
	response.SuccessResponse(c, res)
}

// Move handles POST /api/games/:id/moves.
func (gc *GameController) Move(c *gin.Context) {
	var req models.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := tracer.Start(c.Request.Context(), "api.Move")
	defer span.End()
	span.SetAttributes(
		attribute.String("game.id", c.Param("id")),
		attribute.Int("move.row", *req.Row),
		attribute.Int("move.col", *req.Col),
	)

	res, err := gc.gameService.Move(ctx, c.Param("id"), &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Move rejected")
		response.ErrorResponse(c, statusFor(err), err.Error())
		return
	}
	response.SuccessResponse(c, res)
}

// Reset handles POST /api/games/:id/reset.
func (gc *GameController) Reset(c *gin.Context) {
	res, err := gc.gameService.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorResponse(c, statusFor(err), err.Error())
		return
	}
	response.SuccessResponse(c, res)
}

// Delete handles DELETE /api/games/:id.
func (gc *GameController) Delete(c *gin.Context) {
	if err := gc.gameService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.ErrorResponse(c, statusFor(err), err.Error())
		return
	}
	response.SuccessResponse(c, gin.H{"message": "Game deleted"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrTurnViolation), errors.Is(err, session.ErrGameOver):
		return http.StatusConflict
	case errors.Is(err, service.ErrTooManyGames):
		return http.StatusTooManyRequests
	case errors.Is(err, game.ErrInvalidMove), errors.Is(err, game.ErrInvalidSize),
		errors.Is(err, session.ErrInvalidMode), errors.Is(err, service.ErrRemoteNotHosted):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
