package domain

import "time"

// MemoryState is the current memory model of one learner for one card.
// Each review replaces it; history lives in the Review log.
type MemoryState struct {
	LearnerID      string
	CardID         string
	DeckID         string
	Stability      float64
	Difficulty     float64
	IntervalDays   int
	DueAt          time.Time
	LastReviewedAt time.Time
	Reps           int
	Lapses         int
	// Version is bumped on every write and guards against lost updates.
	Version int64
}

// IsDue reports whether the card should be shown at now.
func (s MemoryState) IsDue(now time.Time) bool {
	return !s.DueAt.After(now)
}

// ElapsedDays returns the days since the last review, never negative.
func (s MemoryState) ElapsedDays(now time.Time) float64 {
	d := now.Sub(s.LastReviewedAt).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// Review is an append-only record of a single review.
type Review struct {
	ID               string
	LearnerID        string
	CardID           string
	DeckID           string
	SessionID        string
	Rating           Rating
	ScheduledFor     time.Time
	ReviewedAt       time.Time
	IntervalDays     int
	Stability        float64
	Difficulty       float64
	TimeSpentSeconds int
}

// ReviewFilter selects reviews. Empty fields match everything; From is
// inclusive and To exclusive.
type ReviewFilter struct {
	LearnerID string
	DeckID    string
	CardID    string
	SessionID string
	From      time.Time
	To        time.Time
}

// StudySession groups the reviews of one sitting.
type StudySession struct {
	ID            string     `json:"id"`
	LearnerID     string     `json:"learner_id"`
	DeckID        string     `json:"deck_id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	ActiveSeconds int        `json:"active_seconds"`
}

// Open reports whether the session was never finalized.
func (s StudySession) Open() bool {
	return s.EndedAt == nil
}

// ScoreWindow tags the time span a DeckScore covers.
type ScoreWindow string

const (
	Window7d  ScoreWindow = "7d"
	Window30d ScoreWindow = "30d"
	WindowAll ScoreWindow = "all"
)

// DeckScore is a periodically recomputed summary of a learner's deck.
type DeckScore struct {
	LearnerID       string      `json:"learner_id"`
	DeckID          string      `json:"deck_id"`
	Window          ScoreWindow `json:"window"`
	AccuracyPercent float64     `json:"accuracy_percent"`
	AvgStability    float64     `json:"avg_stability"`
	LapseCount      int         `json:"lapse_count"`
	ComputedAt      time.Time   `json:"computed_at"`
}

// SourceType tells how a deck's cards are fetched.
type SourceType string

const (
	SourceLocal SourceType = "local"
	SourceGit   SourceType = "git"
)

// Deck is a named collection of cards read from one source.
type Deck struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Path        string     `json:"path"`
	Type        SourceType `json:"type"`
	OwnerID     string     `json:"owner_id,omitempty"`
	LastScanned *time.Time `json:"last_scanned,omitempty"`
}

// VisibleTo reports whether learnerID may study the deck.
// Decks without an owner are shared.
func (d Deck) VisibleTo(learnerID string) bool {
	return d.OwnerID == "" || d.OwnerID == learnerID
}
