package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finagent-io/finagent/pkg/session"
)

// listSessionsHandler handles GET /api/v1/sessions.
func (s *Server) listSessionsHandler(c *gin.Context) {
	mgr := s.orch.Sessions()
	c.JSON(http.StatusOK, SessionListResponse{
		Sessions: mgr.List(),
		Count:    mgr.Count(),
	})
}

// deleteSessionHandler handles DELETE /api/v1/sessions/:sessionID. A
// session mid-turn cannot be deleted; callers retry after the turn.
func (s *Server) deleteSessionHandler(c *gin.Context) {
	err := s.orch.Sessions().Delete(c.Param("sessionID"))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
		case errors.Is(err, session.ErrTurnInProgress):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "session is processing a turn"})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}
	c.Status(http.StatusNoContent)
}
