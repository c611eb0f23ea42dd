package web

import (
	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/quiz"
	decksync "github.com/conorfennell/knolstudy/internal/sync"
)

type cardView struct {
	ID          string          `json:"id"`
	DeckID      string          `json:"deck_id"`
	Kind        domain.CardKind `json:"kind"`
	Position    int             `json:"position"`
	Front       string          `json:"front"`
	Back        string          `json:"back,omitempty"`
	Choices     []domain.Choice `json:"choices,omitempty"`
	Explanation string          `json:"explanation,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	Mnemonic    string          `json:"mnemonic,omitempty"`
}

func newCardView(card domain.Card) cardView {
	base := card.Base()
	content := domain.Content(card)
	return cardView{
		ID:          base.ID,
		DeckID:      base.DeckID,
		Kind:        card.Kind(),
		Position:    base.Position,
		Front:       content.Front,
		Back:        content.Back,
		Choices:     content.Choices,
		Explanation: content.Explanation,
		Notes:       content.Notes,
		Mnemonic:    content.Mnemonic,
	}
}

// newItemView tags a quiz item with its shape.
func newItemView(item quiz.Item) any {
	switch it := item.(type) {
	case *quiz.MultipleChoice:
		return struct {
			Shape quiz.Shape `json:"shape"`
			*quiz.MultipleChoice
		}{it.Shape(), it}
	case *quiz.FillBlank:
		return struct {
			Shape quiz.Shape `json:"shape"`
			*quiz.FillBlank
		}{it.Shape(), it}
	case *quiz.TrueFalse:
		return struct {
			Shape quiz.Shape `json:"shape"`
			*quiz.TrueFalse
		}{it.Shape(), it}
	}
	return item
}

type reportView struct {
	DeckID  string   `json:"deck_id"`
	Parsed  int      `json:"parsed"`
	Stored  int      `json:"stored"`
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors,omitempty"`
}

func newReportView(r decksync.Report) reportView {
	v := reportView{DeckID: r.DeckID, Parsed: r.Parsed, Stored: r.Stored, Deleted: r.Deleted}
	for _, err := range r.Errors {
		v.Errors = append(v.Errors, err.Error())
	}
	return v
}

// SyncResponse is the response body for POST /api/v1/sync.
type SyncResponse struct {
	Reports []reportView `json:"reports"`
	Error   string       `json:"error,omitempty"`
}
