package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const memoryStateColumns = `learner_id, card_id, deck_id, stability, difficulty, interval_days, due_at, last_reviewed_at, reps, lapses, version`

func scanMemoryState(row scanner) (*domain.MemoryState, error) {
	var s domain.MemoryState
	if err := row.Scan(
		&s.LearnerID,
		&s.CardID,
		&s.DeckID,
		&s.Stability,
		&s.Difficulty,
		&s.IntervalDays,
		&s.DueAt,
		&s.LastReviewedAt,
		&s.Reps,
		&s.Lapses,
		&s.Version,
	); err != nil {
		return nil, err
	}
	s.DueAt = s.DueAt.UTC()
	s.LastReviewedAt = s.LastReviewedAt.UTC()
	return &s, nil
}

// FindMemoryState retrieves the memory state of a learner for a card. It
// returns nil when the learner has never reviewed the card.
func (db *DB) FindMemoryState(ctx context.Context, learnerID, cardID string) (*domain.MemoryState, error) {
	s, err := scanMemoryState(db.conn.QueryRowContext(ctx, `
		SELECT `+memoryStateColumns+`
		FROM memory_states WHERE learner_id = ? AND card_id = ?
	`, learnerID, cardID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find memory state for card %s: %w", cardID, err)
	}
	return s, nil
}

// ListMemoryStates retrieves all memory states of a learner in a deck.
func (db *DB) ListMemoryStates(ctx context.Context, learnerID, deckID string) ([]domain.MemoryState, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+memoryStateColumns+`
		FROM memory_states WHERE learner_id = ? AND deck_id = ?
		ORDER BY due_at
	`, learnerID, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memory states for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	var states []domain.MemoryState
	for rows.Next() {
		s, err := scanMemoryState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory state row: %w", err)
		}
		states = append(states, *s)
	}
	return states, rows.Err()
}

// ApplyReview stores the memory state produced by a review and appends the
// review to the log in one transaction. state.Version must be the version
// that was read before the review (0 for a first review); when another
// writer got there first ApplyReview returns domain.ErrConflict and writes
// nothing. On success state.Version is advanced.
func (db *DB) ApplyReview(ctx context.Context, state *domain.MemoryState, review domain.Review) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer tx.Rollback()

	next := state.Version + 1
	var res sql.Result
	if state.Version == 0 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO memory_states (`+memoryStateColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(learner_id, card_id) DO NOTHING
		`,
			state.LearnerID, state.CardID, state.DeckID,
			state.Stability, state.Difficulty, state.IntervalDays,
			state.DueAt.UTC(), state.LastReviewedAt.UTC(),
			state.Reps, state.Lapses, next,
		)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE memory_states
			SET stability = ?, difficulty = ?, interval_days = ?, due_at = ?, last_reviewed_at = ?,
				reps = ?, lapses = ?, version = ?
			WHERE learner_id = ? AND card_id = ? AND version = ?
		`,
			state.Stability, state.Difficulty, state.IntervalDays,
			state.DueAt.UTC(), state.LastReviewedAt.UTC(),
			state.Reps, state.Lapses, next,
			state.LearnerID, state.CardID, state.Version,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to write memory state for card %s: %w", state.CardID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check memory state write: %w", err)
	} else if n == 0 {
		return fmt.Errorf("%w: memory state of card %s changed concurrently", domain.ErrConflict, state.CardID)
	}

	var scheduled sql.NullTime
	if !review.ScheduledFor.IsZero() {
		scheduled = sql.NullTime{Time: review.ScheduledFor.UTC(), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reviews (id, learner_id, card_id, deck_id, session_id, rating, scheduled_for, reviewed_at,
			interval_days, stability, difficulty, time_spent_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		review.ID, review.LearnerID, review.CardID, review.DeckID, nullString(review.SessionID),
		int(review.Rating), scheduled, review.ReviewedAt.UTC(),
		review.IntervalDays, review.Stability, review.Difficulty, review.TimeSpentSeconds,
	); err != nil {
		return fmt.Errorf("failed to append review for card %s: %w", review.CardID, err)
	}

	if review.SessionID != "" && review.TimeSpentSeconds > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE study_sessions SET active_seconds = active_seconds + ? WHERE id = ?
		`, review.TimeSpentSeconds, review.SessionID); err != nil {
			return fmt.Errorf("failed to add time to session %s: %w", review.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}
	state.Version = next
	return nil
}

func reviewWhere(f domain.ReviewFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		clauses = append(clauses, clause)
		args = append(args, arg)
	}
	if f.LearnerID != "" {
		add("learner_id = ?", f.LearnerID)
	}
	if f.DeckID != "" {
		add("deck_id = ?", f.DeckID)
	}
	if f.CardID != "" {
		add("card_id = ?", f.CardID)
	}
	if f.SessionID != "" {
		add("session_id = ?", f.SessionID)
	}
	if !f.From.IsZero() {
		add("reviewed_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		add("reviewed_at < ?", f.To.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListReviews retrieves reviews in the order they happened.
func (db *DB) ListReviews(ctx context.Context, f domain.ReviewFilter) ([]domain.Review, error) {
	where, args := reviewWhere(f)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, learner_id, card_id, deck_id, session_id, rating, scheduled_for, reviewed_at,
			interval_days, stability, difficulty, time_spent_seconds
		FROM reviews`+where+`
		ORDER BY reviewed_at, id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		var r domain.Review
		var session sql.NullString
		var scheduled sql.NullTime
		var rating int
		if err := rows.Scan(
			&r.ID, &r.LearnerID, &r.CardID, &r.DeckID, &session, &rating, &scheduled, &r.ReviewedAt,
			&r.IntervalDays, &r.Stability, &r.Difficulty, &r.TimeSpentSeconds,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		r.SessionID = session.String
		r.Rating = domain.Rating(rating)
		if scheduled.Valid {
			r.ScheduledFor = scheduled.Time.UTC()
		}
		r.ReviewedAt = r.ReviewedAt.UTC()
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// CountReviews counts a learner's reviews of a deck in [from, to).
func (db *DB) CountReviews(ctx context.Context, learnerID, deckID string, from, to time.Time) (int, error) {
	where, args := reviewWhere(domain.ReviewFilter{LearnerID: learnerID, DeckID: deckID, From: from, To: to})
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reviews for deck %s: %w", deckID, err)
	}
	return n, nil
}
