package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finagent-io/finagent/pkg/session"
)

// chatHandler handles POST /api/v1/chat: one user turn through the full
// pipeline. A turn arriving while the session is still processing the
// previous one is rejected with 409 rather than queued.
func (s *Server) chatHandler(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message is required"})
		return
	}
	if req.UserID == "" && req.SessionID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user_id or session_id is required"})
		return
	}

	result, err := s.orch.HandleTurn(c.Request.Context(), req.UserID, req.SessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found or expired"})
		case errors.Is(err, session.ErrTurnInProgress):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "previous turn still processing"})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
