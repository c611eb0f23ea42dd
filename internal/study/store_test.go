package study

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// memStore is an in-memory Store with the same version semantics as the
// sqlite store.
type memStore struct {
	mu       sync.Mutex
	decks    map[string]domain.Deck
	cards    []domain.Card
	states   map[string]domain.MemoryState // learner/card
	reviews  []domain.Review
	sessions map[string]domain.StudySession
	scores   map[string]domain.DeckScore // learner/deck/window

	// beforeApply runs inside ApplyReview before the version check.
	beforeApply func(s *memStore)
	failWith    error
}

func newMemStore() *memStore {
	return &memStore{
		decks:    map[string]domain.Deck{},
		states:   map[string]domain.MemoryState{},
		sessions: map[string]domain.StudySession{},
		scores:   map[string]domain.DeckScore{},
	}
}

func stateKey(learnerID, cardID string) string { return learnerID + "/" + cardID }

func (m *memStore) addDeck(d domain.Deck, cards ...domain.Card) {
	m.decks[d.ID] = d
	m.cards = append(m.cards, cards...)
}

func (m *memStore) GetDeck(ctx context.Context, id string) (*domain.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	d, ok := m.decks[id]
	if !ok {
		return nil, fmt.Errorf("%w: deck %s", domain.ErrNotFound, id)
	}
	return &d, nil
}

func (m *memStore) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Deck
	for _, d := range m.decks {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetCard(ctx context.Context, id string) (domain.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.Base().ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: card %s", domain.ErrNotFound, id)
}

func (m *memStore) ListCards(ctx context.Context, deckID string) ([]domain.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Card
	for _, c := range m.cards {
		if c.Base().DeckID == deckID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) FindMemoryState(ctx context.Context, learnerID, cardID string) (*domain.MemoryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[stateKey(learnerID, cardID)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) ListMemoryStates(ctx context.Context, learnerID, deckID string) ([]domain.MemoryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MemoryState
	for _, s := range m.states {
		if s.LearnerID == learnerID && s.DeckID == deckID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ApplyReview(ctx context.Context, state *domain.MemoryState, review domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeApply != nil {
		m.beforeApply(m)
	}
	key := stateKey(state.LearnerID, state.CardID)
	current, exists := m.states[key]
	if (!exists && state.Version != 0) || (exists && current.Version != state.Version) {
		return fmt.Errorf("%w: memory state of card %s changed concurrently", domain.ErrConflict, state.CardID)
	}
	state.Version++
	m.states[key] = *state
	m.reviews = append(m.reviews, review)
	if review.SessionID != "" {
		s := m.sessions[review.SessionID]
		s.ActiveSeconds += review.TimeSpentSeconds
		m.sessions[review.SessionID] = s
	}
	return nil
}

func (m *memStore) ListReviews(ctx context.Context, f domain.ReviewFilter) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Review
	for _, r := range m.reviews {
		switch {
		case f.LearnerID != "" && r.LearnerID != f.LearnerID,
			f.DeckID != "" && r.DeckID != f.DeckID,
			f.CardID != "" && r.CardID != f.CardID,
			f.SessionID != "" && r.SessionID != f.SessionID,
			!f.From.IsZero() && r.ReviewedAt.Before(f.From),
			!f.To.IsZero() && !r.ReviewedAt.Before(f.To):
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) CountReviews(ctx context.Context, learnerID, deckID string, from, to time.Time) (int, error) {
	reviews, err := m.ListReviews(ctx, domain.ReviewFilter{LearnerID: learnerID, DeckID: deckID, From: from, To: to})
	return len(reviews), err
}

func (m *memStore) CreateSession(ctx context.Context, s *domain.StudySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) GetSession(ctx context.Context, id string) (*domain.StudySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	return &s, nil
}

func (m *memStore) FinishSession(ctx context.Context, id string, endedAt time.Time, activeSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	if !s.Open() {
		return fmt.Errorf("%w: session %s already ended", domain.ErrConflict, id)
	}
	s.EndedAt = &endedAt
	if activeSeconds > 0 {
		s.ActiveSeconds = activeSeconds
	}
	m.sessions[id] = s
	return nil
}

func (m *memStore) CountSessions(ctx context.Context, learnerID, deckID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.LearnerID == learnerID && s.DeckID == deckID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) UpsertDeckScores(ctx context.Context, scores []domain.DeckScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range scores {
		m.scores[s.LearnerID+"/"+s.DeckID+"/"+string(s.Window)] = s
	}
	return nil
}

func (m *memStore) ListDeckScores(ctx context.Context, learnerID, deckID string) ([]domain.DeckScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DeckScore
	for _, s := range m.scores {
		if s.LearnerID == learnerID && s.DeckID == deckID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Window < out[j].Window })
	return out, nil
}
