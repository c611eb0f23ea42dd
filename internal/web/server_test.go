package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/conorfennell/knolstudy/internal/quiz"
	"github.com/conorfennell/knolstudy/internal/storage"
	"github.com/conorfennell/knolstudy/internal/study"
	decksync "github.com/conorfennell/knolstudy/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const deckMarkdown = `Q: Capital of France?
A: Paris
---
Q: Capital of Spain?
A: Madrid
---
Q: Capital of Italy?
A: Rome
`

type testEnv struct {
	srv     *Server
	db      *storage.DB
	metrics *Metrics
	deckDir string
}

func newTestEnv(t *testing.T, mutate ...func(*study.Config)) *testEnv {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	deckDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(deckDir, "capitals.md"), []byte(deckMarkdown), 0o644))

	cfg := study.DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	metrics := NewMetrics()
	svc := study.NewService(db, cfg, zap.NewNop(),
		study.WithObserver(metrics),
		study.WithRand(rand.New(rand.NewPCG(7, 7))),
	)
	syncer := decksync.New(db, zap.NewNop(), t.TempDir())
	return &testEnv{
		srv:     NewServer(svc, syncer, db, metrics, zap.NewNop()),
		db:      db,
		metrics: metrics,
		deckDir: deckDir,
	}
}

func (e *testEnv) do(t *testing.T, method, path, learner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if learner != "" {
		req.Header.Set(LearnerHeader, learner)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// addSyncedDeck registers the test deck and loads its cards.
func (e *testEnv) addSyncedDeck(t *testing.T, learner string, shared bool) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/decks", learner, AddDeckRequest{Path: e.deckDir, Name: "capitals", Shared: shared})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	deck := decode[map[string]any](t, rec)

	rec = e.do(t, http.MethodPost, "/api/v1/sync", learner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sync := decode[SyncResponse](t, rec)
	require.Len(t, sync.Reports, 1)
	require.Equal(t, 3, sync.Reports[0].Stored)
	return deck["id"].(string)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	require.NoError(t, env.db.Close())
	rec = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}

func TestRequiresLearner(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/decks", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), LearnerHeader)
}

func TestStudyFlow(t *testing.T) {
	env := newTestEnv(t)
	deckID := env.addSyncedDeck(t, "alice", true)

	rec := env.do(t, http.MethodGet, "/api/v1/decks", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1, "shared deck is visible to everyone")

	rec = env.do(t, http.MethodGet, "/api/v1/decks/"+deckID+"/queue", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[struct {
		Mode  string           `json:"mode"`
		Cards []map[string]any `json:"cards"`
		Stats map[string]int   `json:"stats"`
	}](t, rec)
	assert.Equal(t, "study", q.Mode)
	require.Len(t, q.Cards, 3)
	assert.Equal(t, map[string]int{"due": 0, "new": 3, "total": 3}, q.Stats)
	cardID := q.Cards[0]["id"].(string)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions", "alice", StartSessionRequest{DeckID: deckID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sessionID := decode[map[string]any](t, rec)["id"].(string)

	rec = env.do(t, http.MethodPost, "/api/v1/reviews", "alice", map[string]any{
		"card_id":            cardID,
		"rating":             "good",
		"session_id":         sessionID,
		"time_spent_seconds": 12,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	review := decode[map[string]any](t, rec)
	assert.Equal(t, "good", review["rating"])
	assert.Greater(t, review["interval_days"].(float64), 0.0)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 12, decode[map[string]any](t, rec)["active_seconds"])

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID+"/performance", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/end", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ended := decode[EndSessionResponse](t, rec)
	require.NotNil(t, ended.Performance)
	assert.Equal(t, "A+", ended.Performance.Grade)
	assert.Equal(t, 1, ended.Performance.CardsReviewed)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+sessionID+"/end", "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+sessionID+"/performance", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A+", decode[study.SessionPerformance](t, rec).Grade)

	rec = env.do(t, http.MethodGet, "/api/v1/decks/"+deckID+"/performance?session_id="+sessionID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	perf := decode[study.DeckPerformance](t, rec)
	assert.Equal(t, 1, perf.TotalCardsReviewed)
	assert.Equal(t, 1, perf.TotalSessions)
	assert.Empty(t, perf.Grade, "too few reviews for a deck grade")
	require.NotNil(t, perf.Session)
	assert.Len(t, perf.Scores, 3, "ending the session stored the deck scores")

	rec = env.do(t, http.MethodPost, "/api/v1/decks/"+deckID+"/scores", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 3)

	rec = env.do(t, http.MethodGet, "/api/v1/decks/"+deckID+"/queue", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[QueueResponse](t, rec).Cards, 2, "the reviewed card is no longer due")

	metrics := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), `knolstudy_reviews_total{rating="good"} 1`)
	assert.Contains(t, metrics.Body.String(), `knolstudy_http_request_duration_seconds`)
}

func TestSubmitReviewErrors(t *testing.T) {
	env := newTestEnv(t)
	deckID := env.addSyncedDeck(t, "alice", false)

	rec := env.do(t, http.MethodGet, "/api/v1/decks/"+deckID+"/queue", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cardID := decode[struct {
		Cards []map[string]any `json:"cards"`
	}](t, rec).Cards[0]["id"].(string)

	tests := []struct {
		name    string
		learner string
		body    any
		want    int
	}{
		{"rating out of range", "alice", map[string]any{"card_id": cardID, "rating": 9}, http.StatusBadRequest},
		{"missing rating", "alice", map[string]any{"card_id": cardID}, http.StatusBadRequest},
		{"negative time", "alice", map[string]any{"card_id": cardID, "rating": 3, "time_spent_seconds": -1}, http.StatusBadRequest},
		{"unknown card", "alice", map[string]any{"card_id": "nope", "rating": 3}, http.StatusNotFound},
		{"private deck of another learner", "bob", map[string]any{"card_id": cardID, "rating": 3}, http.StatusNotFound},
		{"unknown session", "alice", map[string]any{"card_id": cardID, "rating": 3, "session_id": "nope"}, http.StatusNotFound},
		{"numeric rating", "alice", map[string]any{"card_id": cardID, "rating": 4}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/reviews", tt.learner, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(LearnerHeader, "alice")
		rec := httptest.NewRecorder()
		env.srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid request body")
	})

	t.Run("unknown rating name", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/reviews", "alice", map[string]any{"card_id": cardID, "rating": "banana"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `unknown rating \"banana\"`)
	})
}

func TestQueueParameters(t *testing.T) {
	env := newTestEnv(t)
	deckID := env.addSyncedDeck(t, "alice", true)
	base := "/api/v1/decks/" + deckID + "/queue"

	tests := []struct {
		query string
		want  int
	}{
		{"?limit=abc", http.StatusBadRequest},
		{"?limit=-1", http.StatusBadRequest},
		{"?limit=100000", http.StatusBadRequest},
		{"?mode=exam", http.StatusBadRequest},
		{"?limit=2", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, base+tt.query, "alice", nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := env.do(t, http.MethodGet, "/api/v1/decks/missing/queue", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuizQueue(t *testing.T) {
	env := newTestEnv(t)
	deckID := env.addSyncedDeck(t, "alice", true)

	rec := env.do(t, http.MethodGet, "/api/v1/decks/"+deckID+"/queue?mode=quiz", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decode[struct {
		Mode  string           `json:"mode"`
		Cards []map[string]any `json:"cards"`
		Items []map[string]any `json:"items"`
		Stats map[string]int   `json:"stats"`
	}](t, rec)
	assert.Equal(t, "quiz", q.Mode)
	assert.Empty(t, q.Cards)
	require.Len(t, q.Items, 3)
	assert.Equal(t, 3, q.Stats["total"])
	for _, item := range q.Items {
		assert.Contains(t, []any{"multiple_choice", "fill_blank", "true_false"}, item["shape"])
		assert.NotEmpty(t, item["card_id"])
		assert.NotEmpty(t, item["prompt"])
	}
}

func TestCheckAnswer(t *testing.T) {
	env := newTestEnv(t)
	deckID := env.addSyncedDeck(t, "alice", true)

	rec := env.do(t, http.MethodGet, "/api/v1/decks/"+deckID+"/queue", "alice", nil)
	cards := decode[struct {
		Cards []map[string]any `json:"cards"`
	}](t, rec).Cards
	require.NotEmpty(t, cards)
	card := cards[0]

	rec = env.do(t, http.MethodPost, "/api/v1/answers", "alice", AnswerRequest{CardID: card["id"].(string), Answer: fmt.Sprint(card["back"])})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[map[string]any](t, rec)
	assert.Equal(t, true, got["correct"])
	assert.Equal(t, "good", got["suggested_rating"])

	rec = env.do(t, http.MethodPost, "/api/v1/answers", "alice", AnswerRequest{CardID: card["id"].(string), Answer: "Atlantis"})
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[map[string]any](t, rec)
	assert.Equal(t, false, got["correct"])
	assert.Equal(t, "again", got["suggested_rating"])
	assert.Equal(t, card["back"], got["canonical_answer"])

	rec = env.do(t, http.MethodPost, "/api/v1/answers", "alice", AnswerRequest{Answer: "Paris"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/answers", "alice", AnswerRequest{CardID: card["id"].(string), Shape: "essay", Answer: "Paris"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "essay")
}

const quizDeckMarkdown = deckMarkdown + `---
Q: Capital of Portugal?
- [x] Lisbon
`

// quizAnswer answers a quiz item as decoded from the queue, rightly or
// wrongly, the way a client displaying it would.
func quizAnswer(t *testing.T, item map[string]any, right bool) AnswerRequest {
	t.Helper()
	req := AnswerRequest{CardID: item["card_id"].(string), Shape: quiz.Shape(item["shape"].(string))}
	switch req.Shape {
	case quiz.ShapeTrueFalse:
		req.Statement = item["statement"].(string)
		req.Answer = strconv.FormatBool(item["is_true"].(bool) == right)
	case quiz.ShapeMultipleChoice:
		for _, raw := range item["choices"].([]any) {
			choice := raw.(map[string]any)
			if (choice["id"] == item["correct_id"]) == right {
				req.Answer = choice["id"].(string)
				req.Choice = choice["text"].(string)
				break
			}
		}
	case quiz.ShapeFillBlank:
		req.Answer = "Atlantis"
		if right {
			req.Answer = item["answer"].(string)
		}
	}
	return req
}

func TestCheckQuizAnswers(t *testing.T) {
	env := newTestEnv(t, func(c *study.Config) { c.Quiz.TrueProbability = 0 })
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "capitals.md"), []byte(quizDeckMarkdown), 0o644))
	rec := env.do(t, http.MethodPost, "/api/v1/decks", "alice", AddDeckRequest{Path: dir, Name: "capitals"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	deckID := decode[map[string]any](t, rec)["id"].(string)
	rec = env.do(t, http.MethodPost, "/api/v1/sync", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var falseStatements, choices int
	for round := 0; round < 20 && (falseStatements == 0 || choices == 0); round++ {
		rec := env.do(t, http.MethodGet, "/api/v1/decks/"+deckID+"/queue?mode=quiz", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		items := decode[struct {
			Items []map[string]any `json:"items"`
		}](t, rec).Items
		require.Len(t, items, 4)

		for _, item := range items {
			switch item["shape"] {
			case string(quiz.ShapeTrueFalse):
				if item["is_true"] == false {
					falseStatements++
				}
			case string(quiz.ShapeMultipleChoice):
				choices++
			}
			for _, right := range []bool{true, false} {
				rec := env.do(t, http.MethodPost, "/api/v1/answers", "alice", quizAnswer(t, item, right))
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				assert.Equal(t, right, decode[map[string]any](t, rec)["correct"], "%v", item)
			}
		}
	}
	assert.Positive(t, falseStatements)
	assert.Positive(t, choices)
}

func TestDeckSources(t *testing.T) {
	env := newTestEnv(t)
	deckID := env.addSyncedDeck(t, "alice", false)

	rec := env.do(t, http.MethodGet, "/api/v1/decks", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/decks", "alice", AddDeckRequest{Path: env.deckDir})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/decks", "alice", AddDeckRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/decks/"+deckID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/decks/"+deckID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/decks/"+deckID+"/queue", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
