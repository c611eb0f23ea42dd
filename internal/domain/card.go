package domain

import (
	"fmt"
	"strings"
)

// CardKind is the type tag of a card variant.
type CardKind string

const (
	KindBasic          CardKind = "basic"
	KindCloze          CardKind = "cloze"
	KindMultipleChoice CardKind = "multiple_choice"
	KindExplanation    CardKind = "explanation"
)

// Card is one of BasicCard, ClozeCard, ChoiceCard or ExplanationCard.
// The set is closed: only this package can add variants.
type Card interface {
	Kind() CardKind
	Base() CardBase
	// Front is the prompt shown to the learner.
	Front() string
	isCard()
}

// CardBase holds the fields every card variant carries.
type CardBase struct {
	ID       string
	DeckID   string
	Position int
	Notes    string
	Mnemonic string
}

// Choice is one authored option of a multiple-choice card.
type Choice struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// BasicCard is a plain front/back card.
type BasicCard struct {
	CardBase
	Question string
	Answer   string
}

// ClozeCard hides Answer behind a blank in Text.
type ClozeCard struct {
	CardBase
	Text        string
	Answer      string
	Explanation string
}

// ChoiceCard carries an authored list of choices.
type ChoiceCard struct {
	CardBase
	Question    string
	Choices     []Choice
	Explanation string
}

// ExplanationCard expects a free-form explanation as its answer.
type ExplanationCard struct {
	CardBase
	Question    string
	Explanation string
}

func (BasicCard) Kind() CardKind       { return KindBasic }
func (ClozeCard) Kind() CardKind       { return KindCloze }
func (ChoiceCard) Kind() CardKind      { return KindMultipleChoice }
func (ExplanationCard) Kind() CardKind { return KindExplanation }

func (c BasicCard) Base() CardBase       { return c.CardBase }
func (c ClozeCard) Base() CardBase       { return c.CardBase }
func (c ChoiceCard) Base() CardBase      { return c.CardBase }
func (c ExplanationCard) Base() CardBase { return c.CardBase }

func (c BasicCard) Front() string       { return c.Question }
func (c ClozeCard) Front() string       { return c.Text }
func (c ChoiceCard) Front() string      { return c.Question }
func (c ExplanationCard) Front() string { return c.Question }

func (BasicCard) isCard()       {}
func (ClozeCard) isCard()       {}
func (ChoiceCard) isCard()      {}
func (ExplanationCard) isCard() {}

// CorrectChoice returns the index of the first correct choice, or -1.
func (c ChoiceCard) CorrectChoice() int {
	for i, ch := range c.Choices {
		if ch.Correct {
			return i
		}
	}
	return -1
}

// CanonicalAnswer returns the authoritative answer text of a card, trimmed.
// It is empty when the card carries no usable answer.
func CanonicalAnswer(c Card) string {
	switch c := c.(type) {
	case BasicCard:
		return strings.TrimSpace(c.Answer)
	case ClozeCard:
		if a := strings.TrimSpace(c.Answer); a != "" {
			return a
		}
		return strings.TrimSpace(c.Explanation)
	case ChoiceCard:
		if i := c.CorrectChoice(); i >= 0 {
			return strings.TrimSpace(c.Choices[i].Text)
		}
		return ""
	case ExplanationCard:
		return strings.TrimSpace(c.Explanation)
	}
	return ""
}

// Explanation returns the supplementary explanation of a card, if any.
func Explanation(c Card) string {
	switch c := c.(type) {
	case ClozeCard:
		return c.Explanation
	case ChoiceCard:
		return c.Explanation
	case ExplanationCard:
		return c.Explanation
	}
	return ""
}

// CardContent is an untyped card draft, as read from a deck source.
// NewCard turns it into the matching variant.
type CardContent struct {
	Front       string
	Back        string
	Explanation string
	Notes       string
	Mnemonic    string
	Choices     []Choice
	// Cloze marks Front as containing a blank whose answer is Back.
	Cloze bool
}

// NewCard validates content and builds the card variant it describes:
// choices make a ChoiceCard, a cloze marker a ClozeCard, a back a BasicCard
// and an explanation alone an ExplanationCard.
func NewCard(id, deckID string, position int, content CardContent) (Card, error) {
	front := strings.TrimSpace(content.Front)
	if id == "" || deckID == "" {
		return nil, fmt.Errorf("%w: card and deck id are required", ErrValidation)
	}
	if front == "" {
		return nil, fmt.Errorf("%w: card %s has no front text", ErrValidation, id)
	}

	base := CardBase{
		ID:       id,
		DeckID:   deckID,
		Position: position,
		Notes:    strings.TrimSpace(content.Notes),
		Mnemonic: strings.TrimSpace(content.Mnemonic),
	}
	back := strings.TrimSpace(content.Back)
	explanation := strings.TrimSpace(content.Explanation)

	switch {
	case len(content.Choices) > 0:
		correct := 0
		for _, ch := range content.Choices {
			if ch.Correct {
				correct++
			}
		}
		if correct == 0 {
			return nil, fmt.Errorf("%w: card %s has no correct choice", ErrValidation, id)
		}
		choices := make([]Choice, len(content.Choices))
		copy(choices, content.Choices)
		return ChoiceCard{CardBase: base, Question: front, Choices: choices, Explanation: explanation}, nil
	case content.Cloze:
		if back == "" {
			return nil, fmt.Errorf("%w: cloze card %s has no hidden answer", ErrValidation, id)
		}
		return ClozeCard{CardBase: base, Text: front, Answer: back, Explanation: explanation}, nil
	case back != "":
		return BasicCard{CardBase: base, Question: front, Answer: back}, nil
	case explanation != "":
		return ExplanationCard{CardBase: base, Question: front, Explanation: explanation}, nil
	}
	return nil, fmt.Errorf("%w: card %s has neither answer nor explanation", ErrValidation, id)
}

// Content converts a card back into its untyped draft.
func Content(c Card) CardContent {
	b := c.Base()
	content := CardContent{Front: c.Front(), Notes: b.Notes, Mnemonic: b.Mnemonic}
	switch c := c.(type) {
	case BasicCard:
		content.Back = c.Answer
	case ClozeCard:
		content.Back = c.Answer
		content.Explanation = c.Explanation
		content.Cloze = true
	case ChoiceCard:
		content.Choices = c.Choices
		content.Explanation = c.Explanation
	case ExplanationCard:
		content.Explanation = c.Explanation
	}
	return content
}
