// Package queue selects the cards a learner should study next.
package queue

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// Store is the slice of the card store the builder reads.
type Store interface {
	// ListCards returns the cards of a deck in deck order.
	ListCards(ctx context.Context, deckID string) ([]domain.Card, error)
	ListMemoryStates(ctx context.Context, learnerID, deckID string) ([]domain.MemoryState, error)
}

// Config holds the queue caps.
type Config struct {
	NewCardCap   int  `koanf:"new_card_cap" validate:"gte=0"`
	DefaultLimit int  `koanf:"default_limit" validate:"gte=1"`
	MaxLimit     int  `koanf:"max_limit" validate:"gtefield=DefaultLimit"`
	ShuffleNew   bool `koanf:"shuffle_new"`
}

// DefaultConfig returns the caps used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		NewCardCap:   5,
		DefaultLimit: 20,
		MaxLimit:     200,
	}
}

// Stats counts the selected cards.
type Stats struct {
	Due   int `json:"due"`
	New   int `json:"new"`
	Total int `json:"total"`
}

// Queue is the ordered set of cards for one session: every due card comes
// before any new card.
type Queue struct {
	Due []domain.Card
	New []domain.Card
}

// Cards returns due cards followed by new cards.
func (q *Queue) Cards() []domain.Card {
	out := make([]domain.Card, 0, len(q.Due)+len(q.New))
	out = append(out, q.Due...)
	return append(out, q.New...)
}

func (q *Queue) DueIDs() []string { return cardIDs(q.Due) }
func (q *Queue) NewIDs() []string { return cardIDs(q.New) }

// Empty reports whether there is nothing to study.
func (q *Queue) Empty() bool {
	return len(q.Due) == 0 && len(q.New) == 0
}

func (q *Queue) Stats() Stats {
	return Stats{Due: len(q.Due), New: len(q.New), Total: len(q.Due) + len(q.New)}
}

// Builder builds queues from the store.
type Builder struct {
	store Store
	cfg   Config
	now   func() time.Time

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithRand sets the random source used to shuffle new cards.
func WithRand(rng *rand.Rand) Option {
	return func(b *Builder) { b.rng = rng }
}

// NewBuilder creates a Builder.
func NewBuilder(store Store, cfg Config, opts ...Option) *Builder {
	b := &Builder{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return b
}

// Build selects up to limit cards of deckID for learnerID. A zero limit uses
// the configured default.
func (b *Builder) Build(ctx context.Context, deckID, learnerID string, limit int) (*Queue, error) {
	if limit == 0 {
		limit = b.cfg.DefaultLimit
	}
	if limit < 0 || limit > b.cfg.MaxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d, got %d", domain.ErrValidation, b.cfg.MaxLimit, limit)
	}

	cards, err := b.store.ListCards(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards for deck %s: %w", deckID, err)
	}
	states, err := b.store.ListMemoryStates(ctx, learnerID, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memory states for deck %s: %w", deckID, err)
	}

	byID := make(map[string]domain.MemoryState, len(states))
	for _, s := range states {
		byID[s.CardID] = s
	}

	now := b.now()
	type dueCard struct {
		card  domain.Card
		state domain.MemoryState
	}
	var due []dueCard
	var fresh []domain.Card
	for _, c := range cards {
		s, seen := byID[c.Base().ID]
		switch {
		case !seen:
			fresh = append(fresh, c)
		case s.IsDue(now):
			due = append(due, dueCard{card: c, state: s})
		}
	}

	// Most overdue first; deck order breaks ties.
	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].state.DueAt.Equal(due[j].state.DueAt) {
			return due[i].state.DueAt.Before(due[j].state.DueAt)
		}
		return due[i].card.Base().Position < due[j].card.Base().Position
	})

	q := &Queue{}
	for _, d := range due {
		if len(q.Due) == limit {
			break
		}
		q.Due = append(q.Due, d.card)
	}

	if b.cfg.ShuffleNew {
		b.mu.Lock()
		b.rng.Shuffle(len(fresh), func(i, j int) { fresh[i], fresh[j] = fresh[j], fresh[i] })
		b.mu.Unlock()
	}
	room := min(b.cfg.NewCardCap, limit-len(q.Due))
	if room > 0 && len(fresh) > 0 {
		q.New = append(q.New, fresh[:min(room, len(fresh))]...)
	}
	return q, nil
}

func cardIDs(cards []domain.Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.Base().ID
	}
	return ids
}
