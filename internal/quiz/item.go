package quiz

import (
	"strconv"
	"strings"
)

// Shape is the form of a quiz question.
type Shape string

const (
	ShapeMultipleChoice Shape = "multiple_choice"
	ShapeFillBlank      Shape = "fill_blank"
	ShapeTrueFalse      Shape = "true_false"
)

// Item is a graded question derived from a card: one of *MultipleChoice,
// *FillBlank or *TrueFalse.
type Item interface {
	Shape() Shape
	Base() ItemBase
	// Check grades a learner's answer.
	Check(answer string) bool
}

// ItemBase is shared by every item shape.
type ItemBase struct {
	CardID      string `json:"card_id"`
	DeckID      string `json:"deck_id"`
	Prompt      string `json:"prompt"`
	Explanation string `json:"explanation,omitempty"`
}

// Option is one displayed answer of a multiple-choice item.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type MultipleChoice struct {
	ItemBase
	Choices   []Option `json:"choices"`
	CorrectID string   `json:"correct_id"`
}

type FillBlank struct {
	ItemBase
	Answer   string   `json:"answer"`
	Accepted []string `json:"accepted"`
}

type TrueFalse struct {
	ItemBase
	Statement string `json:"statement"`
	IsTrue    bool   `json:"is_true"`
}

func (*MultipleChoice) Shape() Shape { return ShapeMultipleChoice }
func (*FillBlank) Shape() Shape      { return ShapeFillBlank }
func (*TrueFalse) Shape() Shape      { return ShapeTrueFalse }

func (i *MultipleChoice) Base() ItemBase { return i.ItemBase }
func (i *FillBlank) Base() ItemBase      { return i.ItemBase }
func (i *TrueFalse) Base() ItemBase      { return i.ItemBase }

// Check expects the id of the chosen option.
func (i *MultipleChoice) Check(answer string) bool {
	return strings.TrimSpace(answer) == i.CorrectID
}

// Check is a case-insensitive exact match against the accepted answers.
func (i *FillBlank) Check(answer string) bool {
	a := normalize(answer)
	if a == "" {
		return false
	}
	for _, ok := range i.Accepted {
		if a == ok {
			return true
		}
	}
	return false
}

// Check expects "true" or "false" (or anything strconv.ParseBool accepts).
func (i *TrueFalse) Check(answer string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(answer))
	if err != nil {
		return false
	}
	return v == i.IsTrue
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// acceptedAnswers is the lowercased answer plus its comma or semicolon
// separated parts, without duplicates.
func acceptedAnswers(answer string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = normalize(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	add(answer)
	for _, part := range strings.FieldsFunc(answer, func(r rune) bool { return r == ',' || r == ';' }) {
		add(part)
	}
	return out
}
