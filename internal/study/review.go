package study

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/fsrs"
	"go.uber.org/zap"
)

// SubmitReviewRequest records one rating of one card.
type SubmitReviewRequest struct {
	LearnerID        string        `json:"-" validate:"required"`
	CardID           string        `json:"card_id" validate:"required"`
	Rating           domain.Rating `json:"rating" validate:"gte=1,lte=4"`
	SessionID        string        `json:"session_id,omitempty"`
	TimeSpentSeconds int           `json:"time_spent_seconds" validate:"gte=0"`
}

// ReviewResult tells the learner when the card comes back.
type ReviewResult struct {
	ReviewID     string        `json:"review_id"`
	CardID       string        `json:"card_id"`
	Rating       domain.Rating `json:"rating"`
	IntervalDays int           `json:"interval_days"`
	NextDueDate  time.Time     `json:"next_due_date"`
	Stability    float64       `json:"stability"`
	Difficulty   float64       `json:"difficulty"`
}

// SubmitReview updates the learner's memory state of a card and appends the
// review. Concurrent reviews of the same card are serialized by the store's
// version check; a lost race is recomputed from the fresh state up to
// MaxConflictRetries times before domain.ErrConflict is returned.
func (s *Service) SubmitReview(ctx context.Context, req SubmitReviewRequest) (*ReviewResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, validationErr(err)
	}

	card, err := s.store.GetCard(ctx, req.CardID)
	if err != nil {
		return nil, storeErr(err)
	}
	deckID := card.Base().DeckID
	if _, err := s.visibleDeck(ctx, req.LearnerID, deckID); err != nil {
		// An invisible deck hides its cards too.
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: card %s", domain.ErrNotFound, req.CardID)
		}
		return nil, err
	}
	if req.SessionID != "" {
		if err := s.checkSessionForReview(ctx, req.LearnerID, deckID, req.SessionID); err != nil {
			return nil, err
		}
	}

	for attempt := 0; ; attempt++ {
		result, err := s.applyReview(ctx, req, deckID)
		if err == nil {
			s.observer.ReviewRecorded(req.Rating)
			s.logger.Info("review recorded",
				zap.String("learner_id", req.LearnerID),
				zap.String("card_id", req.CardID),
				zap.Stringer("rating", req.Rating),
				zap.Int("interval_days", result.IntervalDays),
			)
			return result, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, storeErr(err)
		}
		if attempt >= s.cfg.MaxConflictRetries {
			s.logger.Warn("review lost every retry",
				zap.String("learner_id", req.LearnerID),
				zap.String("card_id", req.CardID),
				zap.Int("attempts", attempt+1),
			)
			return nil, err
		}
		s.observer.ConflictRetried()
		s.logger.Debug("retrying review after conflict", zap.String("card_id", req.CardID), zap.Int("attempt", attempt+1))
	}
}

func (s *Service) checkSessionForReview(ctx context.Context, learnerID, deckID, sessionID string) error {
	session, err := s.GetSession(ctx, learnerID, sessionID)
	if err != nil {
		return err
	}
	if session.DeckID != deckID {
		return fmt.Errorf("%w: session %s studies another deck", domain.ErrValidation, sessionID)
	}
	if !session.Open() {
		return fmt.Errorf("%w: session %s already ended", domain.ErrConflict, sessionID)
	}
	return nil
}

// applyReview is one read-modify-write attempt.
func (s *Service) applyReview(ctx context.Context, req SubmitReviewRequest, deckID string) (*ReviewResult, error) {
	prev, err := s.store.FindMemoryState(ctx, req.LearnerID, req.CardID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	next := domain.MemoryState{
		LearnerID: req.LearnerID,
		CardID:    req.CardID,
		DeckID:    deckID,
	}
	var prevState *fsrs.State
	var elapsed float64
	var scheduledFor time.Time
	if prev != nil {
		prevState = &fsrs.State{Stability: prev.Stability, Difficulty: prev.Difficulty}
		elapsed = prev.ElapsedDays(now)
		scheduledFor = prev.DueAt
		next.Reps = prev.Reps
		next.Lapses = prev.Lapses
		next.Version = prev.Version
		if req.Rating == domain.Again {
			next.Lapses++
		}
	}

	outcome, err := s.params.Schedule(prevState, req.Rating, elapsed, now)
	if err != nil {
		return nil, err
	}
	next.Stability = outcome.State.Stability
	next.Difficulty = outcome.State.Difficulty
	next.IntervalDays = outcome.IntervalDays
	next.DueAt = outcome.DueAt
	next.LastReviewedAt = now
	next.Reps++

	review := domain.Review{
		ID:               s.newID(),
		LearnerID:        req.LearnerID,
		CardID:           req.CardID,
		DeckID:           deckID,
		SessionID:        req.SessionID,
		Rating:           req.Rating,
		ScheduledFor:     scheduledFor,
		ReviewedAt:       now,
		IntervalDays:     outcome.IntervalDays,
		Stability:        outcome.State.Stability,
		Difficulty:       outcome.State.Difficulty,
		TimeSpentSeconds: req.TimeSpentSeconds,
	}
	if err := s.store.ApplyReview(ctx, &next, review); err != nil {
		return nil, err
	}

	return &ReviewResult{
		ReviewID:     review.ID,
		CardID:       req.CardID,
		Rating:       req.Rating,
		IntervalDays: outcome.IntervalDays,
		NextDueDate:  outcome.DueAt,
		Stability:    outcome.State.Stability,
		Difficulty:   outcome.State.Difficulty,
	}, nil
}
