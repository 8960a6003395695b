package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finagent-io/finagent/pkg/services"
)

// getProfileHandler handles GET /api/v1/profile/:userID.
func (s *Server) getProfileHandler(c *gin.Context) {
	if s.profiles == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "profile store not configured"})
		return
	}

	profile, err := s.profiles.Get(c.Request.Context(), c.Param("userID"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "profile not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// updateProfileHandler handles PUT /api/v1/profile/:userID. Every value
// is validated against the field registry; one invalid value rejects the
// whole request so a partial write never happens.
func (s *Server) updateProfileHandler(c *gin.Context) {
	if s.profiles == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "profile store not configured"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Values) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "values is required"})
		return
	}

	for name, value := range req.Values {
		spec, err := s.cfg.FieldSpec(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown field: " + name})
			return
		}
		if err := spec.Validate(value); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	if err := s.profiles.Upsert(c.Request.Context(), c.Param("userID"), req.Values, nil); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// latestReportHandler handles GET /api/v1/reports/:userID/latest.
func (s *Server) latestReportHandler(c *gin.Context) {
	if s.reports == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "report store not configured"})
		return
	}

	report, err := s.reports.Latest(c.Request.Context(), c.Param("userID"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "no reports for user"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
