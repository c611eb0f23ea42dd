package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/gitsource"
	"github.com/conorfennell/knolstudy/internal/knol"
	"github.com/conorfennell/knolstudy/internal/parser"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence the syncer needs.
type Store interface {
	CreateDeck(ctx context.Context, d *domain.Deck) error
	GetDeck(ctx context.Context, id string) (*domain.Deck, error)
	DeleteDeck(ctx context.Context, id string) error
	FindDeckByPath(ctx context.Context, path string) (*domain.Deck, error)
	ListDecks(ctx context.Context) ([]domain.Deck, error)
	UpdateDeckLastScanned(ctx context.Context, id string, at time.Time) error
	UpsertCard(ctx context.Context, card domain.Card) error
	ListCards(ctx context.Context, deckID string) ([]domain.Card, error)
	DeleteCard(ctx context.Context, id string) error
}

// Report summarizes the reconciliation of one deck.
type Report struct {
	DeckID  string
	Parsed  int
	Stored  int
	Deleted int
	Errors  []error
}

// Syncer reconciles decks with their Markdown sources.
type Syncer struct {
	store    Store
	logger   *zap.Logger
	reposDir string
	now      func() time.Time
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithClock replaces the clock used for last-scanned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// New creates a Syncer. Git sources are checked out under reposDir.
func New(store Store, logger *zap.Logger, reposDir string, opts ...Option) *Syncer {
	s := &Syncer{
		store:    store,
		logger:   logger.Named("sync"),
		reposDir: reposDir,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddSource registers a local directory or git URL as a new deck.
// ownerID may be empty for a deck shared with every learner.
func (s *Syncer) AddSource(ctx context.Context, path, name, ownerID string) (*domain.Deck, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: source path is required", domain.ErrValidation)
	}
	existing, err := s.store.FindDeckByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: source %s already added as deck %s", domain.ErrConflict, path, existing.ID)
	}

	typ := domain.SourceLocal
	if gitsource.IsGitURL(path) {
		typ = domain.SourceGit
	} else if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrValidation, path)
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), ".git")
	}

	deck := &domain.Deck{
		ID:      uuid.NewString(),
		Name:    name,
		Path:    path,
		Type:    typ,
		OwnerID: ownerID,
	}
	if err := s.store.CreateDeck(ctx, deck); err != nil {
		return nil, err
	}
	s.logger.Info("source added", zap.String("deck_id", deck.ID), zap.String("type", string(typ)), zap.String("path", path))
	return deck, nil
}

// RemoveSource deletes a deck with its cards and every review of them.
// A deck owned by another learner is reported as not found. Git checkouts
// stay on disk.
func (s *Syncer) RemoveSource(ctx context.Context, deckID, learnerID string) error {
	deck, err := s.store.GetDeck(ctx, deckID)
	if err != nil {
		return err
	}
	if !deck.VisibleTo(learnerID) {
		return fmt.Errorf("%w: deck %s", domain.ErrNotFound, deckID)
	}
	if err := s.store.DeleteDeck(ctx, deckID); err != nil {
		return err
	}
	s.logger.Info("source removed", zap.String("deck_id", deckID), zap.String("path", deck.Path))
	return nil
}

// RunAll iterates over all decks and reconciles them. A failing deck is
// logged and skipped; the returned error joins every failure.
func (s *Syncer) RunAll(ctx context.Context) ([]Report, error) {
	s.logger.Info("starting sync for all decks")
	decks, err := s.store.ListDecks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	if len(decks) == 0 {
		s.logger.Info("no decks configured, add one with add-source <path/or/url.git>")
		return nil, nil
	}

	var reports []Report
	var errs []error
	for _, deck := range decks {
		report, err := s.SyncDeck(ctx, deck)
		if err != nil {
			s.logger.Error("deck sync failed", zap.String("deck_id", deck.ID), zap.String("path", deck.Path), zap.Error(err))
			errs = append(errs, fmt.Errorf("deck %s: %w", deck.ID, err))
			continue
		}
		reports = append(reports, report)
	}
	s.logger.Info("sync complete", zap.Int("decks", len(reports)), zap.Int("failed", len(errs)))
	return reports, errors.Join(errs...)
}

// SyncDeck fetches a deck's source when it is a git remote and reconciles
// its cards.
func (s *Syncer) SyncDeck(ctx context.Context, deck domain.Deck) (Report, error) {
	s.logger.Info("syncing deck", zap.String("deck_id", deck.ID), zap.String("type", string(deck.Type)), zap.String("path", deck.Path))

	dir := deck.Path
	if deck.Type == domain.SourceGit {
		localPath, err := gitsource.LocalPath(s.reposDir, deck.Path)
		if err != nil {
			return Report{}, err
		}
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return Report{}, fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := gitsource.Sync(ctx, s.logger, deck.Path, localPath); err != nil {
			return Report{}, err
		}
		dir = localPath
	}
	return s.reconcile(ctx, deck.ID, dir)
}

// reconcile stores every card found under dir and deletes the deck's cards
// that are no longer present. Deleting a card cascades to its memory states
// and reviews.
func (s *Syncer) reconcile(ctx context.Context, deckID, dir string) (Report, error) {
	report := Report{DeckID: deckID}
	drafts, parseErrs, err := Scan(dir)
	if err != nil {
		// Never prune when the source could not be read in full.
		return report, err
	}
	report.Errors = parseErrs
	report.Parsed = len(drafts)

	found := make(map[string]bool, len(drafts))
	for _, draft := range drafts {
		id := knol.Hash(deckID, draft)
		if found[id] {
			continue
		}
		card, err := domain.NewCard(id, deckID, len(found), draft)
		if err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		found[id] = true
		if err := s.store.UpsertCard(ctx, card); err != nil {
			return report, err
		}
		report.Stored++
	}

	existing, err := s.store.ListCards(ctx, deckID)
	if err != nil {
		return report, err
	}
	for _, card := range existing {
		id := card.Base().ID
		if found[id] {
			continue
		}
		s.logger.Debug("deleting orphaned card", zap.String("card_id", id))
		if err := s.store.DeleteCard(ctx, id); err != nil {
			s.logger.Warn("failed to delete orphaned card", zap.String("card_id", id), zap.Error(err))
			continue
		}
		report.Deleted++
	}

	if err := s.store.UpdateDeckLastScanned(ctx, deckID, s.now()); err != nil {
		s.logger.Warn("failed to update last scanned", zap.String("deck_id", deckID), zap.Error(err))
	}

	s.logger.Info("reconciliation complete",
		zap.String("path", dir),
		zap.Int("parsed_cards", report.Parsed),
		zap.Int("stored_cards", report.Stored),
		zap.Int("orphaned_deleted", report.Deleted),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// Scan walks dir for Markdown files and parses them in lexical order.
// Per-file parse failures are collected; only a failed walk is returned as
// err.
func Scan(dir string) ([]domain.CardContent, []error, error) {
	var drafts []domain.CardContent
	var parseErrs []error

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		fileCards, err := parser.ParseFile(path)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("parsing %s: %w", path, err))
			return nil
		}
		drafts = append(drafts, fileCards...)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return drafts, parseErrs, nil
}
