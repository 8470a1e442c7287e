package controller

import (
	"net/http"

	"ctchen222/Tic-Tac-Toe-Grid/internal/api/models"
	"ctchen222/Tic-Tac-Toe-Grid/internal/api/response"
	"ctchen222/Tic-Tac-Toe-Grid/internal/api/service"

	"github.com/gin-gonic/gin"
)

// PlayerController handles client identity requests.
type PlayerController struct {
	playerService service.PlayerService
}

func NewPlayerController(playerService service.PlayerService) *PlayerController {
	return &PlayerController{playerService: playerService}
}

// GuestLogin handles guest login, returning a generated player ID.
func (pc *PlayerController) GuestLogin(c *gin.Context) {
	playerID, err := pc.playerService.GuestLogin(c.Request.Context())
	if err != nil {
		response.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.SuccessResponse(c, models.GuestResponse{PlayerID: playerID})
}
