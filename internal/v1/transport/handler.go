// Package transport exposes the HTTP surface: room creation plus the
// operational endpoints.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eurus-project/eurus/internal/v1/logging"
	"github.com/eurus-project/eurus/internal/v1/service"
)

// RoomCreator is the slice of the orchestrator the handler calls.
type RoomCreator interface {
	CreateNewRoom(ctx context.Context, req service.NewRoomReq) (service.NewRoomResp, error)
}

// Handler serves the game API.
type Handler struct {
	rooms RoomCreator
}

// NewHandler builds the API handler.
func NewHandler(rooms RoomCreator) *Handler {
	return &Handler{rooms: rooms}
}

// NewRoom handles POST /new_room.
func (h *Handler) NewRoom(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not assemble message"})
		return
	}

	var req service.NewRoomReq
	if err := json.Unmarshal(body, &req); err != nil || req.PlayersLimit < 1 || req.RoundsLimit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not decode message"})
		return
	}

	resp, err := h.rooms.CreateNewRoom(c.Request.Context(), req)
	if err != nil {
		logging.Error(c.Request.Context(), "room creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, resp)
}
