// Package score turns ratings into success rates and letter grades.
package score

import (
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// Config sets how many ratings a grade needs.
type Config struct {
	SessionMinimum int `koanf:"session_minimum" validate:"gte=1"`
	DeckMinimum    int `koanf:"deck_minimum" validate:"gte=1"`
}

func DefaultConfig() Config {
	return Config{SessionMinimum: 1, DeckMinimum: 10}
}

// Weight is the credit a rating earns toward the success rate.
func Weight(r domain.Rating) float64 {
	switch r {
	case domain.Easy, domain.Good:
		return 1.0
	case domain.Hard:
		return 0.7
	}
	return 0
}

// Result is a graded set of ratings.
type Result struct {
	SuccessRate float64 `json:"success_rate"`
	Letter      string  `json:"grade"`
	Count       int     `json:"count"`
}

// Grade weighs ratings into a success rate and letter. It reports false when
// there are fewer than minimum ratings.
func Grade(ratings []domain.Rating, minimum int) (Result, bool) {
	if len(ratings) == 0 || len(ratings) < minimum {
		return Result{Count: len(ratings)}, false
	}
	var sum float64
	for _, r := range ratings {
		sum += Weight(r)
	}
	rate := sum / float64(len(ratings))
	return Result{SuccessRate: rate, Letter: Letter(rate), Count: len(ratings)}, true
}

type band struct {
	min    float64
	letter string
}

// bands run from best to worst; each lower edge is inclusive.
var bands = []band{
	{0.95, "A+"},
	{0.90, "A"},
	{0.85, "A-"},
	{0.80, "B+"},
	{0.75, "B"},
	{0.70, "B-"},
	{0.65, "C+"},
	{0.60, "C"},
	{0.55, "C-"},
	{0.50, "D+"},
	{0.45, "D"},
	{0.40, "D-"},
}

// Letter maps a success rate to its letter grade.
func Letter(rate float64) string {
	// Absorbs float error from summed 0.7 weights so edges stay inclusive.
	const epsilon = 1e-9
	for _, b := range bands {
		if rate+epsilon >= b.min {
			return b.letter
		}
	}
	return "F"
}

// Windows are the spans DeckScores covers.
var Windows = []domain.ScoreWindow{domain.Window7d, domain.Window30d, domain.WindowAll}

// DeckScores summarizes a learner's deck for every window. reviews and states
// must belong to one learner and deck.
func DeckScores(learnerID, deckID string, reviews []domain.Review, states []domain.MemoryState, now time.Time) []domain.DeckScore {
	var avgStability float64
	if len(states) > 0 {
		for _, s := range states {
			avgStability += s.Stability
		}
		avgStability /= float64(len(states))
	}

	out := make([]domain.DeckScore, 0, len(Windows))
	for _, w := range Windows {
		since := windowStart(w, now)
		var total, passed, lapses int
		for _, r := range reviews {
			if !since.IsZero() && r.ReviewedAt.Before(since) {
				continue
			}
			total++
			if r.Rating == domain.Again {
				lapses++
			} else {
				passed++
			}
		}
		var accuracy float64
		if total > 0 {
			accuracy = 100 * float64(passed) / float64(total)
		}
		out = append(out, domain.DeckScore{
			LearnerID:       learnerID,
			DeckID:          deckID,
			Window:          w,
			AccuracyPercent: accuracy,
			AvgStability:    avgStability,
			LapseCount:      lapses,
			ComputedAt:      now,
		})
	}
	return out
}

func windowStart(w domain.ScoreWindow, now time.Time) time.Time {
	switch w {
	case domain.Window7d:
		return now.AddDate(0, 0, -7)
	case domain.Window30d:
		return now.AddDate(0, 0, -30)
	}
	return time.Time{}
}
