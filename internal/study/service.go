// Package study exposes the review, queue and performance operations.
package study

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/fsrs"
	"github.com/conorfennell/knolstudy/internal/load"
	"github.com/conorfennell/knolstudy/internal/queue"
	"github.com/conorfennell/knolstudy/internal/quiz"
	"github.com/conorfennell/knolstudy/internal/score"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is everything the service reads and writes.
type Store interface {
	GetDeck(ctx context.Context, id string) (*domain.Deck, error)
	ListDecks(ctx context.Context) ([]domain.Deck, error)
	GetCard(ctx context.Context, id string) (domain.Card, error)
	ListCards(ctx context.Context, deckID string) ([]domain.Card, error)

	FindMemoryState(ctx context.Context, learnerID, cardID string) (*domain.MemoryState, error)
	ListMemoryStates(ctx context.Context, learnerID, deckID string) ([]domain.MemoryState, error)
	// ApplyReview writes state and appends review atomically. It returns
	// domain.ErrConflict when state.Version is stale.
	ApplyReview(ctx context.Context, state *domain.MemoryState, review domain.Review) error
	ListReviews(ctx context.Context, f domain.ReviewFilter) ([]domain.Review, error)
	CountReviews(ctx context.Context, learnerID, deckID string, from, to time.Time) (int, error)

	CreateSession(ctx context.Context, s *domain.StudySession) error
	GetSession(ctx context.Context, id string) (*domain.StudySession, error)
	FinishSession(ctx context.Context, id string, endedAt time.Time, activeSeconds int) error
	CountSessions(ctx context.Context, learnerID, deckID string) (int, error)

	UpsertDeckScores(ctx context.Context, scores []domain.DeckScore) error
	ListDeckScores(ctx context.Context, learnerID, deckID string) ([]domain.DeckScore, error)
}

// Observer is told about events worth counting.
type Observer interface {
	ReviewRecorded(rating domain.Rating)
	ConflictRetried()
	LoadWarned()
	QuizSkipped(n int)
}

type nopObserver struct{}

func (nopObserver) ReviewRecorded(domain.Rating) {}
func (nopObserver) ConflictRetried()             {}
func (nopObserver) LoadWarned()                  {}
func (nopObserver) QuizSkipped(int)              {}

// Config gathers the tunables of every component the service drives.
type Config struct {
	FSRS  fsrs.Params  `koanf:"fsrs"`
	Queue queue.Config `koanf:"queue"`
	Quiz  quiz.Config  `koanf:"quiz"`
	Load  load.Config  `koanf:"load"`
	Score score.Config `koanf:"score"`
	// MaxConflictRetries bounds how often a review is recomputed after
	// losing a race on the same card.
	MaxConflictRetries int `koanf:"max_conflict_retries" validate:"gte=0,lte=20"`
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		FSRS:               *fsrs.DefaultParams(),
		Queue:              queue.DefaultConfig(),
		Quiz:               quiz.DefaultConfig(),
		Load:               load.DefaultConfig(),
		Score:              score.DefaultConfig(),
		MaxConflictRetries: 3,
	}
}

var validate = validator.New()

// Validate checks every nested component config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: study config: %v", domain.ErrValidation, err)
	}
	return c.FSRS.Validate()
}

// Service implements the study operations over a Store.
type Service struct {
	store    Store
	cfg      Config
	params   *fsrs.Params
	queue    *queue.Builder
	monitor  *load.Monitor
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
	newID    func() string

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand sets the random source behind queue shuffling and quiz items.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) { s.rng = rng }
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithIDGenerator overrides how review and session ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a Service. cfg is expected to be valid.
func NewService(store Store, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		cfg:      cfg,
		logger:   logger.Named("study"),
		observer: nopObserver{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		seed := uint64(time.Now().UnixNano())
		s.rng = rand.New(rand.NewPCG(seed, seed))
	}

	params := cfg.FSRS
	s.params = &params
	s.queue = queue.NewBuilder(store, cfg.Queue,
		queue.WithClock(s.now),
		queue.WithRand(s.childRand()),
	)
	s.monitor = load.NewMonitor(store, cfg.Load, s.now)
	return s
}

// childRand derives an independent generator for one consumer.
func (s *Service) childRand() *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
}

// visibleDeck loads a deck and hides it from learners it does not belong to.
func (s *Service) visibleDeck(ctx context.Context, learnerID, deckID string) (*domain.Deck, error) {
	deck, err := s.store.GetDeck(ctx, deckID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !deck.VisibleTo(learnerID) {
		return nil, fmt.Errorf("%w: deck %s", domain.ErrNotFound, deckID)
	}
	return deck, nil
}

// ListDecks returns the decks a learner may study.
func (s *Service) ListDecks(ctx context.Context, learnerID string) ([]domain.Deck, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("%w: learner id is required", domain.ErrValidation)
	}
	decks, err := s.store.ListDecks(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	visible := decks[:0]
	for _, d := range decks {
		if d.VisibleTo(learnerID) {
			visible = append(visible, d)
		}
	}
	return visible, nil
}

// storeErr keeps the domain error kinds and marks anything else internal.
func storeErr(err error) error {
	for _, kind := range []error{domain.ErrValidation, domain.ErrNotFound, domain.ErrConflict, domain.ErrInternal} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrInternal, err)
}

func validationErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}
