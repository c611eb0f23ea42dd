// Package web provides the JSON API of knolstudy.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/study"
	decksync "github.com/conorfennell/knolstudy/internal/sync"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// LearnerHeader identifies the learner behind an API request.
const LearnerHeader = "X-Learner-ID"

const learnerKey = "learner_id"

// Sources manages the deck sources.
type Sources interface {
	AddSource(ctx context.Context, path, name, ownerID string) (*domain.Deck, error)
	RemoveSource(ctx context.Context, deckID, learnerID string) error
	RunAll(ctx context.Context) ([]decksync.Report, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	echo    *echo.Echo
	study   *study.Service
	sources Sources
	db      Pinger
	metrics *Metrics
	logger  *zap.Logger
}

// NewServer creates and configures a new server. metrics may be nil.
func NewServer(svc *study.Service, sources Sources, db Pinger, metrics *Metrics, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		study:   svc,
		sources: sources,
		db:      db,
		metrics: metrics,
		logger:  logger.Named("web"),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if metrics != nil {
		e.Use(metrics.Middleware())
	}
	e.Use(s.requestLogger)

	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1", s.requireLearner)
	v1.GET("/decks", s.handleListDecks)
	v1.POST("/decks", s.handleAddDeck)
	v1.DELETE("/decks/:id", s.handleRemoveDeck)
	v1.GET("/decks/:id/queue", s.handleGetQueue)
	v1.GET("/decks/:id/performance", s.handleDeckPerformance)
	v1.POST("/decks/:id/scores", s.handleRefreshScores)
	v1.POST("/sync", s.handleSync)

	v1.POST("/reviews", s.handleSubmitReview)
	v1.POST("/answers", s.handleCheckAnswer)

	v1.POST("/sessions", s.handleStartSession)
	v1.GET("/sessions/:id", s.handleGetSession)
	v1.POST("/sessions/:id/end", s.handleEndSession)
	v1.GET("/sessions/:id/performance", s.handleSessionPerformance)
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting http server", zap.String("addr", addr))
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// Let echo write the response so the logged status is final.
			c.Error(err)
		}
		s.logger.Info("http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return nil
	}
}

// requireLearner rejects API requests that do not name a learner.
func (s *Server) requireLearner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		learnerID := c.Request().Header.Get(LearnerHeader)
		if learnerID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, LearnerHeader+" header is required")
		}
		c.Set(learnerKey, learnerID)
		return next(c)
	}
}

func learner(c echo.Context) string {
	id, _ := c.Get(learnerKey).(string)
	return id
}

// bind decodes the request body. Values the domain rejects, such as an
// unknown rating, are reported like any other validation error.
func (s *Server) bind(c echo.Context, v any) error {
	err := c.Bind(v)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrValidation) {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Internal != nil {
			err = he.Internal
		}
		return s.fail(c, err)
	}
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
}

// fail maps a domain error onto an HTTP error. Internal errors are logged
// and hidden from the client.
func (s *Server) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	s.logger.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
