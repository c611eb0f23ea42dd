package study

import (
	"context"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/load"
	"github.com/conorfennell/knolstudy/internal/queue"
	"github.com/conorfennell/knolstudy/internal/quiz"
	"go.uber.org/zap"
)

// Mode selects what GetQueue returns.
type Mode string

const (
	ModeStudy Mode = "study"
	ModeQuiz  Mode = "quiz"
)

// QueueRequest asks for the next cards of a deck.
type QueueRequest struct {
	LearnerID string `validate:"required"`
	DeckID    string `validate:"required"`
	// Limit caps the number of items; 0 means the configured default.
	Limit int
	Mode  Mode `validate:"omitempty,oneof=study quiz"`
}

// QueueResult holds raw cards in study mode and quiz items in quiz mode.
type QueueResult struct {
	Mode    Mode          `json:"mode"`
	Cards   []domain.Card `json:"-"`
	Items   []quiz.Item   `json:"-"`
	Stats   queue.Stats   `json:"stats"`
	Warning *load.Warning `json:"warning,omitempty"`
}

// GetQueue builds the learner's queue for a deck. In quiz mode cards too
// sparse for any question shape are dropped and the stats count only the
// items returned.
func (s *Service) GetQueue(ctx context.Context, req QueueRequest) (*QueueResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, validationErr(err)
	}
	if req.Mode == "" {
		req.Mode = ModeStudy
	}
	if _, err := s.visibleDeck(ctx, req.LearnerID, req.DeckID); err != nil {
		return nil, err
	}

	q, err := s.queue.Build(ctx, req.DeckID, req.LearnerID, req.Limit)
	if err != nil {
		return nil, storeErr(err)
	}
	result := &QueueResult{Mode: req.Mode, Warning: s.checkLoad(ctx, req.LearnerID, req.DeckID)}

	if req.Mode == ModeStudy {
		result.Cards = q.Cards()
		result.Stats = q.Stats()
		return result, nil
	}

	siblings, err := s.store.ListCards(ctx, req.DeckID)
	if err != nil {
		return nil, storeErr(err)
	}
	synth := quiz.NewSynthesizer(s.cfg.Quiz, s.childRand())
	items, skipped := synth.SynthesizeAll(q.Cards(), siblings)
	if len(skipped) > 0 {
		s.observer.QuizSkipped(len(skipped))
		s.logger.Debug("cards skipped from quiz", zap.String("deck_id", req.DeckID), zap.Strings("card_ids", skipped))
	}

	due := make(map[string]bool, len(q.Due))
	for _, id := range q.DueIDs() {
		due[id] = true
	}
	for _, item := range items {
		if due[item.Base().CardID] {
			result.Stats.Due++
		} else {
			result.Stats.New++
		}
	}
	result.Stats.Total = len(items)
	result.Items = items
	return result, nil
}

// checkLoad never fails the queue: the warning is advisory.
func (s *Service) checkLoad(ctx context.Context, learnerID, deckID string) *load.Warning {
	warning, err := s.monitor.CheckLoad(ctx, learnerID, deckID)
	if err != nil {
		s.logger.Warn("load check failed", zap.String("deck_id", deckID), zap.Error(err))
		return nil
	}
	if warning != nil {
		s.observer.LoadWarned()
	}
	return warning
}
