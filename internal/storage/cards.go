package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// UpsertCard inserts a card or replaces the content of an existing one.
// Memory states and reviews of the card are kept.
func (db *DB) UpsertCard(ctx context.Context, card domain.Card) error {
	b := card.Base()
	c := domain.Content(card)
	choices, err := json.Marshal(c.Choices)
	if err != nil {
		return fmt.Errorf("failed to encode choices for card %s: %w", b.ID, err)
	}
	if c.Choices == nil {
		choices = []byte("[]")
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO cards (id, deck_id, kind, front, back, explanation, notes, mnemonic, choices, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			front = excluded.front,
			back = excluded.back,
			explanation = excluded.explanation,
			notes = excluded.notes,
			mnemonic = excluded.mnemonic,
			choices = excluded.choices,
			position = excluded.position
	`,
		b.ID,
		b.DeckID,
		string(card.Kind()),
		c.Front,
		c.Back,
		c.Explanation,
		c.Notes,
		c.Mnemonic,
		string(choices),
		b.Position,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card %s: %w", b.ID, err)
	}
	return nil
}

const cardColumns = `id, deck_id, kind, front, back, explanation, notes, mnemonic, choices, position`

func scanCard(row scanner) (domain.Card, error) {
	var base domain.CardBase
	var kind, front, back, explain, choicesJSON string
	if err := row.Scan(&base.ID, &base.DeckID, &kind, &front, &back, &explain, &base.Notes, &base.Mnemonic, &choicesJSON, &base.Position); err != nil {
		return nil, err
	}

	switch domain.CardKind(kind) {
	case domain.KindBasic:
		return domain.BasicCard{CardBase: base, Question: front, Answer: back}, nil
	case domain.KindCloze:
		return domain.ClozeCard{CardBase: base, Text: front, Answer: back, Explanation: explain}, nil
	case domain.KindMultipleChoice:
		var choices []domain.Choice
		if err := json.Unmarshal([]byte(choicesJSON), &choices); err != nil {
			return nil, fmt.Errorf("failed to decode choices of card %s: %w", base.ID, err)
		}
		return domain.ChoiceCard{CardBase: base, Question: front, Choices: choices, Explanation: explain}, nil
	case domain.KindExplanation:
		return domain.ExplanationCard{CardBase: base, Question: front, Explanation: explain}, nil
	}
	return nil, fmt.Errorf("card %s has unknown kind %q", base.ID, kind)
}

// GetCard retrieves a card by id.
func (db *DB) GetCard(ctx context.Context, id string) (domain.Card, error) {
	card, err := scanCard(db.conn.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: card %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", id, err)
	}
	return card, nil
}

// ListCards retrieves the cards of a deck in deck order.
func (db *DB) ListCards(ctx context.Context, deckID string) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE deck_id = ?
		ORDER BY position, id
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row for deck %s: %w", deckID, err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// DeleteCard removes a card by id, cascading to its memory states and reviews.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card with id %s: %w", id, err)
	}
	return nil
}
