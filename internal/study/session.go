package study

import (
	"context"
	"fmt"

	"github.com/conorfennell/knolstudy/internal/domain"
	"go.uber.org/zap"
)

// StartSession opens a study session on a deck.
func (s *Service) StartSession(ctx context.Context, learnerID, deckID string) (*domain.StudySession, error) {
	if learnerID == "" || deckID == "" {
		return nil, fmt.Errorf("%w: learner and deck id are required", domain.ErrValidation)
	}
	if _, err := s.visibleDeck(ctx, learnerID, deckID); err != nil {
		return nil, err
	}
	session := &domain.StudySession{
		ID:        s.newID(),
		LearnerID: learnerID,
		DeckID:    deckID,
		StartedAt: s.now().UTC(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, storeErr(err)
	}
	s.logger.Info("session started", zap.String("session_id", session.ID), zap.String("deck_id", deckID))
	return session, nil
}

// EndSession finalizes a session and refreshes the deck scores.
// activeSeconds, when positive, replaces the time accumulated from reviews.
// A session can only be ended once.
func (s *Service) EndSession(ctx context.Context, learnerID, sessionID string, activeSeconds int) (*SessionPerformance, error) {
	if activeSeconds < 0 {
		return nil, fmt.Errorf("%w: active seconds must not be negative", domain.ErrValidation)
	}
	session, err := s.GetSession(ctx, learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.store.FinishSession(ctx, sessionID, s.now().UTC(), activeSeconds); err != nil {
		return nil, storeErr(err)
	}
	s.logger.Info("session ended", zap.String("session_id", sessionID))

	if _, err := s.RefreshDeckScores(ctx, learnerID, session.DeckID); err != nil {
		s.logger.Warn("failed to refresh deck scores", zap.String("deck_id", session.DeckID), zap.Error(err))
	}
	return s.GetSessionPerformance(ctx, sessionID)
}

// GetSession returns one of the learner's sessions. Sessions of other
// learners are reported as not found.
func (s *Service) GetSession(ctx context.Context, learnerID, sessionID string) (*domain.StudySession, error) {
	if learnerID == "" || sessionID == "" {
		return nil, fmt.Errorf("%w: learner and session id are required", domain.ErrValidation)
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeErr(err)
	}
	if session.LearnerID != learnerID {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
	}
	return session, nil
}
