package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/hospitalqueue/internal/api/response"
	"github.com/zatekoja/hospitalqueue/internal/application/services"
)

// DisplayService defines the waiting-room board
type DisplayService interface {
	Board(ctx context.Context, department string) (*services.DisplayBoard, error)
}

// DisplayHandler serves the public display boards
type DisplayHandler struct {
	service DisplayService
}

// NewDisplayHandler creates a new display handler
func NewDisplayHandler(service DisplayService) *DisplayHandler {
	return &DisplayHandler{service: service}
}

// Board handles GET /api/display/{department}
func (h *DisplayHandler) Board(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.Board(r.Context(), r.PathValue("department"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, board)
}
