package quiz

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// Response is a learner's answer to an item as it was displayed. Statement
// is the true/false statement shown and Choice is the text of the picked
// multiple-choice option. Generated option ids change between queue calls,
// so a generated multiple-choice answer is graded by Choice.
type Response struct {
	Shape     Shape  `json:"shape,omitempty"`
	Answer    string `json:"answer"`
	Statement string `json:"statement,omitempty"`
	Choice    string `json:"choice,omitempty"`
}

// Validate checks the response carries what its shape needs.
func (r Response) Validate() error {
	switch r.Shape {
	case "", ShapeFillBlank:
	case ShapeTrueFalse:
		if strings.TrimSpace(r.Statement) == "" {
			return fmt.Errorf("%w: true/false answers need the statement shown", domain.ErrValidation)
		}
	case ShapeMultipleChoice:
		if strings.TrimSpace(r.Choice) == "" && strings.TrimSpace(r.Answer) == "" {
			return fmt.Errorf("%w: multiple-choice answers need the chosen option", domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown item shape %q", domain.ErrValidation, r.Shape)
	}
	return nil
}

// CheckCard grades a response against a card without the synthesized item.
// It agrees with the Check of every item the Synthesizer builds for the card.
func CheckCard(card domain.Card, r Response) bool {
	canonical := domain.CanonicalAnswer(card)
	if canonical == "" {
		return false
	}

	switch r.Shape {
	case ShapeTrueFalse:
		v, err := strconv.ParseBool(strings.TrimSpace(r.Answer))
		if err != nil {
			return false
		}
		return v == strings.EqualFold(strings.TrimSpace(r.Statement), canonical)
	case ShapeMultipleChoice:
		if r.Choice != "" {
			return normalize(r.Choice) == normalize(canonical)
		}
		if cc, ok := card.(domain.ChoiceCard); ok {
			if item, ok := authoredChoices(cc); ok && item.Check(r.Answer) {
				return true
			}
		}
		return normalize(r.Answer) == normalize(canonical)
	}

	// Free answers to a choice card may name the authored option id.
	if cc, ok := card.(domain.ChoiceCard); ok {
		if item, ok := authoredChoices(cc); ok && item.Check(r.Answer) {
			return true
		}
	}
	fb := &FillBlank{Answer: canonical, Accepted: acceptedAnswers(canonical)}
	return fb.Check(r.Answer)
}
