package fsrs

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/go-playground/validator/v10"
)

// DefaultWeights are the FSRS-4.5 default weights.
var DefaultWeights = [17]float64{
	0.4872, 1.4003, 3.7145, 13.8206, // w[0..3]  initial stability per rating
	5.1618, 1.2298, 0.8975, 0.031, // w[4..7]  difficulty
	1.6474, 0.1367, 1.0461, // w[8..10] recall stability
	2.1072, 0.0793, 0.3246, 1.587, // w[11..14] forget stability
	0.2272, 2.8755, // w[15..16] hard penalty, easy bonus
}

const (
	MinDifficulty = 1.0
	MaxDifficulty = 10.0
)

// Params holds the parameters for the FSRS algorithm.
type Params struct {
	W                   [17]float64 `koanf:"weights"`
	DesiredRetention    float64     `koanf:"desired_retention" validate:"gt=0,lt=1"`
	MaxIntervalDays     int         `koanf:"max_interval_days" validate:"gte=1"`
	RelearnIntervalDays int         `koanf:"relearn_interval_days" validate:"gte=0"`
	MinStability        float64     `koanf:"min_stability" validate:"gt=0"`
	MaxStability        float64     `koanf:"max_stability" validate:"gtfield=MinStability"`
	// MinRetrievability floors the recall probability used for growth, so
	// reviews far behind schedule stop earning extra stability.
	MinRetrievability float64 `koanf:"min_retrievability" validate:"gte=0,lt=1"`
}

// DefaultParams provides the parameters used when nothing is configured.
func DefaultParams() *Params {
	return &Params{
		W:                   DefaultWeights,
		DesiredRetention:    0.9,
		MaxIntervalDays:     36500,
		RelearnIntervalDays: 1,
		MinStability:        0.1,
		MaxStability:        36500,
		MinRetrievability:   0.3,
	}
}

var validate = validator.New()

// Validate checks the parameter bounds.
func (p *Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: fsrs params: %v", domain.ErrValidation, err)
	}
	return nil
}

// State holds the memory state of a card.
type State struct {
	Stability  float64
	Difficulty float64
}

// Outcome is the result of scheduling one review.
type Outcome struct {
	State        State
	IntervalDays int
	DueAt        time.Time
}

// Retrievability is the modeled recall probability after elapsedDays.
// Stability is the number of days until it decays to 0.9.
func Retrievability(elapsedDays, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	if elapsedDays < 0 {
		elapsedDays = 0
	}
	return math.Pow(0.9, elapsedDays/stability)
}

// Update calculates the next memory state after a review. prev is nil for
// the first review of a card.
func (p *Params) Update(prev *State, rating domain.Rating, elapsedDays float64) (State, error) {
	if !rating.IsValid() {
		return State{}, fmt.Errorf("%w: rating %d", domain.ErrValidation, int(rating))
	}
	if prev == nil {
		return State{
			Stability:  p.clampStability(p.W[rating-1]),
			Difficulty: clampDifficulty(p.initDifficulty(rating)),
		}, nil
	}

	s := p.clampStability(prev.Stability)
	d := clampDifficulty(prev.Difficulty)
	if math.IsNaN(elapsedDays) || elapsedDays < 0 {
		elapsedDays = 0
	}
	r := Retrievability(elapsedDays, s)

	if rating == domain.Again {
		return State{
			Stability:  p.forgetStability(d, s, r),
			Difficulty: clampDifficulty(d + 2*p.W[6]),
		}, nil
	}

	return State{
		Stability:  p.recallStability(d, s, math.Max(r, p.MinRetrievability), rating),
		Difficulty: p.nextDifficulty(d, rating),
	}, nil
}

// initDifficulty is D0(G) = w4 - (G-3)*w5.
func (p *Params) initDifficulty(rating domain.Rating) float64 {
	return p.W[4] - float64(rating-3)*p.W[5]
}

// nextDifficulty moves difficulty by the distance from Good, then reverts it
// toward D0(Good).
func (p *Params) nextDifficulty(d float64, rating domain.Rating) float64 {
	next := d - p.W[6]*float64(rating-3)
	next = p.W[7]*p.initDifficulty(domain.Good) + (1-p.W[7])*next
	return clampDifficulty(next)
}

// recallStability applies the FSRS formula for a successful review.
// S' = S * (1 + e^w8 * (11-D) * S^-w9 * (e^((1-R)*w10) - 1) * hardPenalty * easyBonus)
func (p *Params) recallStability(d, s, r float64, rating domain.Rating) float64 {
	hardPenalty := 1.0
	if rating == domain.Hard {
		hardPenalty = p.W[15]
	}
	easyBonus := 1.0
	if rating == domain.Easy {
		easyBonus = p.W[16]
	}
	growth := math.Exp(p.W[8]) *
		(11 - d) *
		math.Pow(s, -p.W[9]) *
		(math.Exp((1-r)*p.W[10]) - 1) *
		hardPenalty * easyBonus
	next := s * (1 + growth)
	if !finite(next) || next < s {
		next = s
	}
	return p.clampStability(next)
}

// forgetStability computes stability after a lapse. It never exceeds the
// stability the card had before.
// S' = w11 * D^-w12 * ((S+1)^w13 - 1) * e^((1-R)*w14)
func (p *Params) forgetStability(d, s, r float64) float64 {
	next := p.W[11] *
		math.Pow(d, -p.W[12]) *
		(math.Pow(s+1, p.W[13]) - 1) *
		math.Exp((1-r)*p.W[14])
	if !finite(next) {
		next = p.MinStability
	}
	return p.clampStability(math.Min(next, s))
}

// NextInterval returns the whole number of days until retrievability decays
// to the desired retention, clamped to [1, MaxIntervalDays].
func (p *Params) NextInterval(stability float64) int {
	ivl := stability * (math.Log(p.DesiredRetention) / math.Log(0.9))
	if !finite(ivl) {
		return p.MaxIntervalDays
	}
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	if days > p.MaxIntervalDays {
		days = p.MaxIntervalDays
	}
	return days
}

// Schedule updates the memory state for a review at reviewedAt and computes
// when the card is next due. A lapse always relearns after
// RelearnIntervalDays, whatever the model says.
func (p *Params) Schedule(prev *State, rating domain.Rating, elapsedDays float64, reviewedAt time.Time) (Outcome, error) {
	state, err := p.Update(prev, rating, elapsedDays)
	if err != nil {
		return Outcome{}, err
	}
	interval := p.NextInterval(state.Stability)
	if rating == domain.Again {
		interval = p.RelearnIntervalDays
	}
	return Outcome{
		State:        state,
		IntervalDays: interval,
		DueAt:        NextDueDate(reviewedAt, interval),
	}, nil
}

// NextDueDate is reviewedAt plus intervalDays calendar days.
func NextDueDate(reviewedAt time.Time, intervalDays int) time.Time {
	return reviewedAt.AddDate(0, 0, intervalDays)
}

func (p *Params) clampStability(s float64) float64 {
	if !finite(s) {
		return p.MinStability
	}
	return math.Min(math.Max(s, p.MinStability), p.MaxStability)
}

func clampDifficulty(d float64) float64 {
	if !finite(d) {
		return MaxDifficulty
	}
	return math.Min(math.Max(d, MinDifficulty), MaxDifficulty)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
