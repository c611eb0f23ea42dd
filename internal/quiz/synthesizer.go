// Package quiz turns cards into graded questions.
package quiz

import (
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// Config tunes item synthesis.
type Config struct {
	// TrueProbability is the chance a true/false item shows the real answer.
	TrueProbability float64 `koanf:"true_probability" validate:"gte=0,lte=1"`
	MaxDistractors  int     `koanf:"max_distractors" validate:"gte=1"`
	MinDistractors  int     `koanf:"min_distractors" validate:"gte=1,ltefield=MaxDistractors"`
}

func DefaultConfig() Config {
	return Config{
		TrueProbability: 0.5,
		MaxDistractors:  3,
		MinDistractors:  2,
	}
}

// fallbackOrder is tried after the preferred shape fails.
var fallbackOrder = []Shape{ShapeMultipleChoice, ShapeFillBlank, ShapeTrueFalse}

// Synthesizer builds quiz items. It is not safe for concurrent use because
// it owns its random source.
type Synthesizer struct {
	cfg Config
	rng *rand.Rand
}

// NewSynthesizer creates a Synthesizer. The same seed and inputs always
// yield the same items.
func NewSynthesizer(cfg Config, rng *rand.Rand) *Synthesizer {
	return &Synthesizer{cfg: cfg, rng: rng}
}

// Synthesize renders card as a quiz item. siblings are the cards of the same
// deck and may include card itself. It returns false when the card has too
// little content for any shape; such cards are left out of the quiz.
func (s *Synthesizer) Synthesize(card domain.Card, siblings []domain.Card) (Item, bool) {
	preferred := s.preferredShape(card)
	if item, ok := s.build(preferred, card, siblings); ok {
		return item, true
	}
	for _, shape := range fallbackOrder {
		if shape == preferred {
			continue
		}
		if item, ok := s.build(shape, card, siblings); ok {
			return item, true
		}
	}
	return nil, false
}

// SynthesizeAll renders every card and returns the ids of skipped cards.
func (s *Synthesizer) SynthesizeAll(cards, siblings []domain.Card) ([]Item, []string) {
	items := make([]Item, 0, len(cards))
	var skipped []string
	for _, c := range cards {
		item, ok := s.Synthesize(c, siblings)
		if !ok {
			skipped = append(skipped, c.Base().ID)
			continue
		}
		items = append(items, item)
	}
	return items, skipped
}

func (s *Synthesizer) preferredShape(card domain.Card) Shape {
	switch card.(type) {
	case domain.ChoiceCard:
		return ShapeMultipleChoice
	case domain.ClozeCard, domain.ExplanationCard:
		return ShapeFillBlank
	}
	if s.rng.IntN(2) == 0 {
		return ShapeFillBlank
	}
	return ShapeTrueFalse
}

func (s *Synthesizer) build(shape Shape, card domain.Card, siblings []domain.Card) (Item, bool) {
	switch shape {
	case ShapeMultipleChoice:
		return s.multipleChoice(card, siblings)
	case ShapeFillBlank:
		return s.fillBlank(card)
	case ShapeTrueFalse:
		return s.trueFalse(card, siblings)
	}
	return nil, false
}

func base(card domain.Card) ItemBase {
	b := card.Base()
	return ItemBase{
		CardID:      b.ID,
		DeckID:      b.DeckID,
		Prompt:      card.Front(),
		Explanation: domain.Explanation(card),
	}
}

func (s *Synthesizer) multipleChoice(card domain.Card, siblings []domain.Card) (Item, bool) {
	if cc, ok := card.(domain.ChoiceCard); ok {
		if item, ok := authoredChoices(cc); ok {
			return item, true
		}
	}

	answer := domain.CanonicalAnswer(card)
	if answer == "" {
		return nil, false
	}
	distractors := s.distractors(card, answer, siblings)
	if len(distractors) < s.cfg.MinDistractors {
		return nil, false
	}
	if len(distractors) > s.cfg.MaxDistractors {
		distractors = distractors[:s.cfg.MaxDistractors]
	}

	texts := append([]string{answer}, distractors...)
	order := s.rng.Perm(len(texts))
	item := &MultipleChoice{ItemBase: base(card), Choices: make([]Option, len(texts))}
	for pos, idx := range order {
		id := optionID(pos)
		item.Choices[pos] = Option{ID: id, Text: texts[idx]}
		if idx == 0 {
			item.CorrectID = id
		}
	}
	return item, true
}

// authoredChoices keeps the card's own choices in their authored order. Only
// the first correct choice counts as the answer.
func authoredChoices(card domain.ChoiceCard) (Item, bool) {
	correct := card.CorrectChoice()
	if correct < 0 || len(card.Choices) < 2 {
		return nil, false
	}
	item := &MultipleChoice{ItemBase: base(card), Choices: make([]Option, len(card.Choices))}
	for i, ch := range card.Choices {
		item.Choices[i] = Option{ID: optionID(i), Text: ch.Text}
	}
	item.CorrectID = optionID(correct)
	return item, true
}

func (s *Synthesizer) fillBlank(card domain.Card) (Item, bool) {
	answer := domain.CanonicalAnswer(card)
	if answer == "" {
		return nil, false
	}
	return &FillBlank{
		ItemBase: base(card),
		Answer:   answer,
		Accepted: acceptedAnswers(answer),
	}, true
}

func (s *Synthesizer) trueFalse(card domain.Card, siblings []domain.Card) (Item, bool) {
	answer := domain.CanonicalAnswer(card)
	if answer == "" {
		return nil, false
	}
	item := &TrueFalse{ItemBase: base(card), Statement: answer, IsTrue: true}
	if s.rng.Float64() < s.cfg.TrueProbability {
		return item, true
	}
	others := s.distractors(card, answer, siblings)
	if len(others) == 0 {
		return item, true
	}
	item.Statement = others[0]
	item.IsTrue = false
	return item, true
}

// distractors returns the canonical answers of other cards in random order,
// skipping blanks and anything equal to answer or to each other when
// compared case-insensitively.
func (s *Synthesizer) distractors(card domain.Card, answer string, siblings []domain.Card) []string {
	seen := map[string]bool{strings.ToLower(answer): true}
	var out []string
	id := card.Base().ID
	for _, sib := range siblings {
		if sib.Base().ID == id {
			continue
		}
		a := domain.CanonicalAnswer(sib)
		key := strings.ToLower(a)
		if a == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func optionID(i int) string {
	if i < 26 {
		return string(rune('a' + i))
	}
	return "o" + strconv.Itoa(i)
}
