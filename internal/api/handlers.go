package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"orcacast/app"
	"orcacast/domain/forecast"
	apperrors "orcacast/internal/errors"
	"orcacast/internal/report"
)

type predictBody struct {
	app.PredictRequest
	Behavior string `json:"behavior,omitempty"`
}

type gridBody struct {
	forecast.GridRequest
	Persist bool `json:"persist"`
}

func (s *Server) handleListBehaviors(c *gin.Context) {
	snap, err := s.forecasts.Registry().Snapshot()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"behaviors":        snap.Behaviors(),
		"equation_version": snap.Version(),
		"source":           snap.Source(),
		"loaded_at":        snap.LoadedAt(),
	})
}

func (s *Server) handleGetBehavior(c *gin.Context) {
	eq, err := s.forecasts.Registry().Get(c.Param("label"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"equation": eq,
		"formula":  eq.String(),
	})
}

func (s *Server) handlePredict(c *gin.Context) {
	var body predictBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, apperrors.InvalidInput("invalid predict request: "+err.Error()))
		return
	}

	if body.Behavior != "" {
		summary, err := s.predictions.PredictBehavior(c.Request.Context(), body.Behavior, body.PredictRequest)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"behavior": body.Behavior, "summary": summary})
		return
	}

	result, err := s.predictions.Query(c.Request.Context(), body.PredictRequest)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleExplain(c *gin.Context) {
	var body app.PredictRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, apperrors.InvalidInput("invalid explain request: "+err.Error()))
		return
	}
	explanation, err := s.predictions.Explain(c.Request.Context(), body)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, explanation)
}

func (s *Server) handleGenerateGrid(c *gin.Context) {
	var body gridBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, apperrors.InvalidInput("invalid grid request: "+err.Error()))
		return
	}

	grid, err := s.forecasts.GenerateGrid(c.Request.Context(), body.GridRequest, body.Persist)
	if err != nil {
		s.writeError(c, err)
		return
	}
	status := http.StatusOK
	if body.Persist {
		status = http.StatusCreated
	}
	c.JSON(status, grid)
}

func (s *Server) handleListGrids(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		s.writeError(c, apperrors.InvalidInput("limit must be a positive integer"))
		return
	}
	headers, err := s.forecasts.ListGrids(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grids": headers})
}

func (s *Server) handleGetGrid(c *gin.Context) {
	grid, err := s.forecasts.GetGrid(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, grid)
}

func (s *Server) handleGridReport(c *gin.Context) {
	hotspots, err := strconv.Atoi(c.DefaultQuery("hotspots", strconv.Itoa(report.DefaultHotspots)))
	if err != nil || hotspots < 1 {
		s.writeError(c, apperrors.InvalidInput("hotspots must be a positive integer"))
		return
	}
	page, err := s.forecasts.Report(c.Request.Context(), c.Param("id"), hotspots)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}
