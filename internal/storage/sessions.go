package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// CreateSession inserts a new study session.
func (db *DB) CreateSession(ctx context.Context, s *domain.StudySession) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO study_sessions (id, learner_id, deck_id, started_at, ended_at, active_seconds)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.LearnerID, s.DeckID, s.StartedAt.UTC(), nullTime(s.EndedAt), s.ActiveSeconds)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
	}
	return nil
}

// GetSession retrieves a study session by id.
func (db *DB) GetSession(ctx context.Context, id string) (*domain.StudySession, error) {
	var s domain.StudySession
	var ended sql.NullTime
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, learner_id, deck_id, started_at, ended_at, active_seconds
		FROM study_sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.LearnerID, &s.DeckID, &s.StartedAt, &ended, &s.ActiveSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	s.StartedAt = s.StartedAt.UTC()
	s.EndedAt = timePtr(ended)
	return &s, nil
}

// FinishSession finalizes an open session. activeSeconds, when positive,
// replaces the accumulated total. Finishing a session twice is a conflict.
func (db *DB) FinishSession(ctx context.Context, id string, endedAt time.Time, activeSeconds int) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE study_sessions
		SET ended_at = ?, active_seconds = CASE WHEN ? > 0 THEN ? ELSE active_seconds END
		WHERE id = ? AND ended_at IS NULL
	`, endedAt.UTC(), activeSeconds, activeSeconds, id)
	if err != nil {
		return fmt.Errorf("failed to finish session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := db.GetSession(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: session %s already ended", domain.ErrConflict, id)
}

// CountSessions counts a learner's sessions on a deck.
func (db *DB) CountSessions(ctx context.Context, learnerID, deckID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM study_sessions WHERE learner_id = ? AND deck_id = ?
	`, learnerID, deckID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions for deck %s: %w", deckID, err)
	}
	return n, nil
}

// UpsertDeckScores replaces the stored scores for each window.
func (db *DB) UpsertDeckScores(ctx context.Context, scores []domain.DeckScore) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin score transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range scores {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO deck_scores (learner_id, deck_id, score_window, accuracy_percent, avg_stability, lapse_count, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(learner_id, deck_id, score_window) DO UPDATE SET
				accuracy_percent = excluded.accuracy_percent,
				avg_stability = excluded.avg_stability,
				lapse_count = excluded.lapse_count,
				computed_at = excluded.computed_at
		`, s.LearnerID, s.DeckID, string(s.Window), s.AccuracyPercent, s.AvgStability, s.LapseCount, s.ComputedAt.UTC()); err != nil {
			return fmt.Errorf("failed to upsert %s score for deck %s: %w", s.Window, s.DeckID, err)
		}
	}
	return tx.Commit()
}

// ListDeckScores retrieves the stored scores of a learner's deck.
func (db *DB) ListDeckScores(ctx context.Context, learnerID, deckID string) ([]domain.DeckScore, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT learner_id, deck_id, score_window, accuracy_percent, avg_stability, lapse_count, computed_at
		FROM deck_scores WHERE learner_id = ? AND deck_id = ?
		ORDER BY score_window
	`, learnerID, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	var scores []domain.DeckScore
	for rows.Next() {
		var s domain.DeckScore
		var window string
		if err := rows.Scan(&s.LearnerID, &s.DeckID, &window, &s.AccuracyPercent, &s.AvgStability, &s.LapseCount, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		s.Window = domain.ScoreWindow(window)
		s.ComputedAt = s.ComputedAt.UTC()
		scores = append(scores, s)
	}
	return scores, rows.Err()
}
