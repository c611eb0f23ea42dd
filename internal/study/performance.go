package study

import (
	"context"
	"fmt"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/score"
	"go.uber.org/zap"
)

// SessionPerformance grades the reviews of one session.
type SessionPerformance struct {
	SessionID     string  `json:"session_id"`
	Grade         string  `json:"grade"`
	SuccessRate   float64 `json:"success_rate"`
	CardsReviewed int     `json:"cards_reviewed"`
	SecondsActive int     `json:"seconds_active"`
}

// DeckPerformance grades a learner's whole history with a deck. Grade and
// SuccessRate are empty until the deck has enough reviews.
type DeckPerformance struct {
	DeckID             string              `json:"deck_id"`
	Grade              string              `json:"grade,omitempty"`
	SuccessRate        *float64            `json:"success_rate,omitempty"`
	TotalCardsReviewed int                 `json:"total_cards_reviewed"`
	TotalSessions      int                 `json:"total_sessions"`
	Session            *SessionPerformance `json:"session,omitempty"`
	Scores             []domain.DeckScore  `json:"scores,omitempty"`
}

// GetSessionPerformance grades a session. It returns nil when the session
// has no reviews yet.
func (s *Service) GetSessionPerformance(ctx context.Context, sessionID string) (*SessionPerformance, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeErr(err)
	}
	return s.sessionPerformance(ctx, session)
}

func (s *Service) sessionPerformance(ctx context.Context, session *domain.StudySession) (*SessionPerformance, error) {
	reviews, err := s.store.ListReviews(ctx, domain.ReviewFilter{SessionID: session.ID})
	if err != nil {
		return nil, storeErr(err)
	}
	result, ok := score.Grade(ratings(reviews), s.cfg.Score.SessionMinimum)
	if !ok {
		return nil, nil
	}
	return &SessionPerformance{
		SessionID:     session.ID,
		Grade:         result.Letter,
		SuccessRate:   result.SuccessRate,
		CardsReviewed: result.Count,
		SecondsActive: session.ActiveSeconds,
	}, nil
}

// GetDeckPerformance grades a learner's reviews of a deck. When sessionID is
// set, that session's performance is attached; it must belong to the same
// learner and deck.
func (s *Service) GetDeckPerformance(ctx context.Context, learnerID, deckID, sessionID string) (*DeckPerformance, error) {
	if learnerID == "" || deckID == "" {
		return nil, fmt.Errorf("%w: learner and deck id are required", domain.ErrValidation)
	}
	if _, err := s.visibleDeck(ctx, learnerID, deckID); err != nil {
		return nil, err
	}

	reviews, err := s.store.ListReviews(ctx, domain.ReviewFilter{LearnerID: learnerID, DeckID: deckID})
	if err != nil {
		return nil, storeErr(err)
	}
	sessions, err := s.store.CountSessions(ctx, learnerID, deckID)
	if err != nil {
		return nil, storeErr(err)
	}
	perf := &DeckPerformance{
		DeckID:             deckID,
		TotalCardsReviewed: len(reviews),
		TotalSessions:      sessions,
	}
	if result, ok := score.Grade(ratings(reviews), s.cfg.Score.DeckMinimum); ok {
		perf.Grade = result.Letter
		perf.SuccessRate = &result.SuccessRate
	}

	if perf.Scores, err = s.store.ListDeckScores(ctx, learnerID, deckID); err != nil {
		return nil, storeErr(err)
	}

	if sessionID != "" {
		session, err := s.store.GetSession(ctx, sessionID)
		if err != nil {
			return nil, storeErr(err)
		}
		if session.LearnerID != learnerID || session.DeckID != deckID {
			return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
		}
		if perf.Session, err = s.sessionPerformance(ctx, session); err != nil {
			return nil, err
		}
	}
	return perf, nil
}

// RefreshDeckScores recomputes and stores the windowed deck scores.
func (s *Service) RefreshDeckScores(ctx context.Context, learnerID, deckID string) ([]domain.DeckScore, error) {
	if learnerID == "" || deckID == "" {
		return nil, fmt.Errorf("%w: learner and deck id are required", domain.ErrValidation)
	}
	if _, err := s.visibleDeck(ctx, learnerID, deckID); err != nil {
		return nil, err
	}
	reviews, err := s.store.ListReviews(ctx, domain.ReviewFilter{LearnerID: learnerID, DeckID: deckID})
	if err != nil {
		return nil, storeErr(err)
	}
	states, err := s.store.ListMemoryStates(ctx, learnerID, deckID)
	if err != nil {
		return nil, storeErr(err)
	}

	scores := score.DeckScores(learnerID, deckID, reviews, states, s.now().UTC())
	if err := s.store.UpsertDeckScores(ctx, scores); err != nil {
		return nil, storeErr(err)
	}
	s.logger.Debug("deck scores refreshed", zap.String("learner_id", learnerID), zap.String("deck_id", deckID))
	return scores, nil
}

func ratings(reviews []domain.Review) []domain.Rating {
	out := make([]domain.Rating, len(reviews))
	for i, r := range reviews {
		out[i] = r.Rating
	}
	return out
}
