package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"orcacast/app"
	"orcacast/internal"
	apperrors "orcacast/internal/errors"
)

// Server exposes the forecasting engine over a JSON API
type Server struct {
	router      *gin.Engine
	forecasts   *app.ForecastService
	predictions *app.PredictionService
	logger      *internal.Logger
}

// NewServer wires the API routes. mode is a gin mode (debug, release, test).
func NewServer(forecasts *app.ForecastService, predictions *app.PredictionService, logger *internal.Logger, mode string) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if mode != "" {
		gin.SetMode(mode)
	}

	s := &Server{
		router:      gin.New(),
		forecasts:   forecasts,
		predictions: predictions,
		logger:      logger,
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/behaviors", s.handleListBehaviors)
		api.GET("/behaviors/:label", s.handleGetBehavior)
		api.POST("/predict", s.handlePredict)
		api.POST("/explain", s.handleExplain)

		api.POST("/forecast/grid", s.handleGenerateGrid)
		api.GET("/forecast/grids", s.handleListGrids)
		api.GET("/forecast/grid/:id", s.handleGetGrid)
		api.GET("/forecast/grid/:id/report", s.handleGridReport)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d in %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// writeError maps an error onto its API status and a JSON body
func (s *Server) writeError(c *gin.Context, err error) {
	appErr := apperrors.FromDomain(err)
	code := apperrors.GetCode(appErr)
	status := apperrors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}
