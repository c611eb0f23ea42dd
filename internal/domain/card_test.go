package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCard(t *testing.T) {
	tests := []struct {
		name    string
		content CardContent
		want    CardKind
		answer  string
	}{
		{
			name:    "back makes a basic card",
			content: CardContent{Front: "Capital of France?", Back: " Paris "},
			want:    KindBasic,
			answer:  "Paris",
		},
		{
			name:    "cloze marker makes a cloze card",
			content: CardContent{Front: "Go was released in ____.", Back: "2009", Cloze: true},
			want:    KindCloze,
			answer:  "2009",
		},
		{
			name: "choices win over back",
			content: CardContent{
				Front:   "Pick the even number",
				Back:    "ignored",
				Choices: []Choice{{Text: "3"}, {Text: "4", Correct: true}},
			},
			want:   KindMultipleChoice,
			answer: "4",
		},
		{
			name:    "explanation alone makes an explanation card",
			content: CardContent{Front: "Why are goroutines cheap?", Explanation: "Small growable stacks."},
			want:    KindExplanation,
			answer:  "Small growable stacks.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := NewCard("c1", "d1", 2, tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, card.Kind())
			assert.Equal(t, tt.answer, CanonicalAnswer(card))
			assert.Equal(t, 2, card.Base().Position)
		})
	}
}

func TestNewCardRejectsInvalidContent(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		content CardContent
	}{
		{"missing id", "", CardContent{Front: "q", Back: "a"}},
		{"blank front", "c1", CardContent{Front: "  ", Back: "a"}},
		{"no answer", "c1", CardContent{Front: "q"}},
		{"cloze without answer", "c1", CardContent{Front: "q ____", Cloze: true}},
		{"no correct choice", "c1", CardContent{Front: "q", Choices: []Choice{{Text: "a"}, {Text: "b"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCard(tt.id, "d1", 0, tt.content)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestContentRoundTrip(t *testing.T) {
	content := CardContent{
		Front:       "Which keyword defers a call?",
		Explanation: "Runs at function return.",
		Mnemonic:    "defer = delay",
		Choices:     []Choice{{Text: "go"}, {Text: "defer", Correct: true}},
	}
	card, err := NewCard("c1", "d1", 0, content)
	require.NoError(t, err)
	assert.Equal(t, content, Content(card))
	assert.Equal(t, "Runs at function return.", Explanation(card))
}

func TestNewCardCopiesChoices(t *testing.T) {
	choices := []Choice{{Text: "a", Correct: true}, {Text: "b"}}
	card, err := NewCard("c1", "d1", 0, CardContent{Front: "q", Choices: choices})
	require.NoError(t, err)

	choices[0].Text = "mutated"
	assert.Equal(t, "a", card.(ChoiceCard).Choices[0].Text)
}

func TestDeckVisibility(t *testing.T) {
	shared := Deck{ID: "d1"}
	owned := Deck{ID: "d2", OwnerID: "alice"}

	assert.True(t, shared.VisibleTo("bob"))
	assert.True(t, owned.VisibleTo("alice"))
	assert.False(t, owned.VisibleTo("bob"))
}
