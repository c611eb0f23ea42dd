package web

import (
	"net/http"
	"strconv"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/load"
	"github.com/conorfennell/knolstudy/internal/queue"
	"github.com/conorfennell/knolstudy/internal/quiz"
	"github.com/conorfennell/knolstudy/internal/study"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.db.Ping(c.Request().Context()); err != nil {
		s.logger.Warn("database ping failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleListDecks(c echo.Context) error {
	decks, err := s.study.ListDecks(c.Request().Context(), learner(c))
	if err != nil {
		return s.fail(c, err)
	}
	if decks == nil {
		decks = []domain.Deck{}
	}
	return c.JSON(http.StatusOK, decks)
}

// AddDeckRequest is the request body for POST /api/v1/decks.
type AddDeckRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
	// Shared decks are visible to every learner.
	Shared bool `json:"shared"`
}

func (s *Server) handleAddDeck(c echo.Context) error {
	var req AddDeckRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	owner := learner(c)
	if req.Shared {
		owner = ""
	}
	deck, err := s.sources.AddSource(c.Request().Context(), req.Path, req.Name, owner)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, deck)
}

func (s *Server) handleRemoveDeck(c echo.Context) error {
	if err := s.sources.RemoveSource(c.Request().Context(), c.Param("id"), learner(c)); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSync(c echo.Context) error {
	// Runs in the foreground so the caller sees the outcome.
	reports, err := s.sources.RunAll(c.Request().Context())
	if err != nil {
		s.logger.Warn("sync finished with errors", zap.Error(err))
	}
	views := make([]reportView, len(reports))
	for i, r := range reports {
		views[i] = newReportView(r)
	}
	resp := SyncResponse{Reports: views}
	if err != nil {
		resp.Error = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

// QueueResponse is the response body for GET /api/v1/decks/:id/queue.
// Cards is set in study mode, Items in quiz mode.
type QueueResponse struct {
	Mode    study.Mode    `json:"mode"`
	Cards   []cardView    `json:"cards,omitempty"`
	Items   []any         `json:"items,omitempty"`
	Stats   queue.Stats   `json:"stats"`
	Warning *load.Warning `json:"warning,omitempty"`
}

func (s *Server) handleGetQueue(c echo.Context) error {
	req := study.QueueRequest{
		LearnerID: learner(c),
		DeckID:    c.Param("id"),
		Mode:      study.Mode(c.QueryParam("mode")),
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		req.Limit = limit
	}

	result, err := s.study.GetQueue(c.Request().Context(), req)
	if err != nil {
		return s.fail(c, err)
	}
	resp := QueueResponse{Mode: result.Mode, Stats: result.Stats, Warning: result.Warning}
	for _, card := range result.Cards {
		resp.Cards = append(resp.Cards, newCardView(card))
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, newItemView(item))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSubmitReview(c echo.Context) error {
	var req study.SubmitReviewRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	req.LearnerID = learner(c)

	result, err := s.study.SubmitReview(c.Request().Context(), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// AnswerRequest is the request body for POST /api/v1/answers. Shape names
// the quiz item answered, if any. True/false answers carry the statement
// shown and multiple-choice answers the text of the chosen option.
type AnswerRequest struct {
	CardID    string     `json:"card_id"`
	Shape     quiz.Shape `json:"shape,omitempty"`
	Answer    string     `json:"answer"`
	Statement string     `json:"statement,omitempty"`
	Choice    string     `json:"choice,omitempty"`
}

func (s *Server) handleCheckAnswer(c echo.Context) error {
	var req AnswerRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	result, err := s.study.CheckAnswer(c.Request().Context(), learner(c), req.CardID, quiz.Response{
		Shape:     req.Shape,
		Answer:    req.Answer,
		Statement: req.Statement,
		Choice:    req.Choice,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// StartSessionRequest is the request body for POST /api/v1/sessions.
type StartSessionRequest struct {
	DeckID string `json:"deck_id"`
}

func (s *Server) handleStartSession(c echo.Context) error {
	var req StartSessionRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	session, err := s.study.StartSession(c.Request().Context(), learner(c), req.DeckID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (s *Server) handleGetSession(c echo.Context) error {
	session, err := s.study.GetSession(c.Request().Context(), learner(c), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// EndSessionRequest is the optional request body for
// POST /api/v1/sessions/:id/end.
type EndSessionRequest struct {
	ActiveSeconds int `json:"active_seconds"`
}

// EndSessionResponse carries the session grade, absent when nothing was
// reviewed.
type EndSessionResponse struct {
	SessionID   string                    `json:"session_id"`
	Performance *study.SessionPerformance `json:"performance"`
}

func (s *Server) handleEndSession(c echo.Context) error {
	var req EndSessionRequest
	if c.Request().ContentLength != 0 {
		if err := s.bind(c, &req); err != nil {
			return err
		}
	}
	id := c.Param("id")
	perf, err := s.study.EndSession(c.Request().Context(), learner(c), id, req.ActiveSeconds)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, EndSessionResponse{SessionID: id, Performance: perf})
}

func (s *Server) handleSessionPerformance(c echo.Context) error {
	ctx := c.Request().Context()
	session, err := s.study.GetSession(ctx, learner(c), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	perf, err := s.study.GetSessionPerformance(ctx, session.ID)
	if err != nil {
		return s.fail(c, err)
	}
	if perf == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session has no reviews yet")
	}
	return c.JSON(http.StatusOK, perf)
}

func (s *Server) handleDeckPerformance(c echo.Context) error {
	perf, err := s.study.GetDeckPerformance(c.Request().Context(), learner(c), c.Param("id"), c.QueryParam("session_id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, perf)
}

func (s *Server) handleRefreshScores(c echo.Context) error {
	scores, err := s.study.RefreshDeckScores(c.Request().Context(), learner(c), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, scores)
}
