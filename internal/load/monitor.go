// Package load warns learners who review far more than usual.
package load

import (
	"context"
	"fmt"
	"time"
)

// ReviewCounter counts a learner's reviews of a deck in [from, to).
type ReviewCounter interface {
	CountReviews(ctx context.Context, learnerID, deckID string, from, to time.Time) (int, error)
}

// Config holds the warning thresholds.
type Config struct {
	// Floor is the count today must exceed before the ratio rule applies.
	Floor int `koanf:"floor" validate:"gte=0"`
	// Ceiling warns unconditionally once reached.
	Ceiling    int            `koanf:"ceiling" validate:"gtefield=Floor"`
	Ratio      float64        `koanf:"ratio" validate:"gt=0"`
	WindowDays int            `koanf:"window_days" validate:"gte=1"`
	Location   *time.Location `koanf:"-" validate:"-"`
}

func DefaultConfig() Config {
	return Config{
		Floor:      50,
		Ceiling:    100,
		Ratio:      1.5,
		WindowDays: 7,
		Location:   time.UTC,
	}
}

// Warning is advisory; nothing is throttled.
type Warning struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Message string  `json:"message"`
}

// Monitor inspects recent review volume.
type Monitor struct {
	counter ReviewCounter
	cfg     Config
	now     func() time.Time
}

func NewMonitor(counter ReviewCounter, cfg Config, now func() time.Time) *Monitor {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Monitor{counter: counter, cfg: cfg, now: now}
}

// CheckLoad returns a warning when today's reviews are unusually many, or
// nil when there is nothing to report.
func (m *Monitor) CheckLoad(ctx context.Context, learnerID, deckID string) (*Warning, error) {
	now := m.now().In(m.cfg.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, m.cfg.Location)
	windowStart := today.AddDate(0, 0, -m.cfg.WindowDays)

	count, err := m.counter.CountReviews(ctx, learnerID, deckID, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to count today's reviews: %w", err)
	}
	past, err := m.counter.CountReviews(ctx, learnerID, deckID, windowStart, today)
	if err != nil {
		return nil, fmt.Errorf("failed to count trailing reviews: %w", err)
	}
	avg := float64(past) / float64(m.cfg.WindowDays)

	return Evaluate(count, avg, m.cfg), nil
}

// Evaluate applies the thresholds to a day's count and the trailing average.
func Evaluate(count int, avg float64, cfg Config) *Warning {
	if count >= cfg.Ceiling {
		return &Warning{
			Count:   count,
			Average: avg,
			Message: fmt.Sprintf("You have done %d reviews today. Consider taking a break.", count),
		}
	}
	if count > cfg.Floor && float64(count) > cfg.Ratio*avg {
		return &Warning{
			Count:   count,
			Average: avg,
			Message: fmt.Sprintf("You have done %d reviews today, well above your daily average of %.1f. Spreading reviews out helps retention.", count, avg),
		}
	}
	return nil
}
