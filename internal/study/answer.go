package study

import (
	"context"
	"errors"
	"fmt"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/quiz"
)

// AnswerResult is the verdict on a quiz answer. SuggestedRating is what the
// learner would submit for it.
type AnswerResult struct {
	CardID          string        `json:"card_id"`
	Correct         bool          `json:"correct"`
	CanonicalAnswer string        `json:"canonical_answer"`
	Explanation     string        `json:"explanation,omitempty"`
	SuggestedRating domain.Rating `json:"suggested_rating"`
}

// CheckAnswer grades a learner's response to a card, as displayed by a quiz
// item of the response's shape. Nothing is recorded; SubmitReview does that.
func (s *Service) CheckAnswer(ctx context.Context, learnerID, cardID string, resp quiz.Response) (*AnswerResult, error) {
	if learnerID == "" || cardID == "" {
		return nil, fmt.Errorf("%w: learner and card id are required", domain.ErrValidation)
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, storeErr(err)
	}
	if _, err := s.visibleDeck(ctx, learnerID, card.Base().DeckID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: card %s", domain.ErrNotFound, cardID)
		}
		return nil, err
	}

	result := &AnswerResult{
		CardID:          cardID,
		Correct:         quiz.CheckCard(card, resp),
		CanonicalAnswer: domain.CanonicalAnswer(card),
		Explanation:     domain.Explanation(card),
		SuggestedRating: domain.Again,
	}
	if result.Correct {
		result.SuggestedRating = domain.Good
	}
	return result, nil
}
