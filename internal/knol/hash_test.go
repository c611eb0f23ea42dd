package knol

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	card := domain.CardContent{
		Front:       "  What is HTMX? \r\n",
		Back:        "A library for AJAX.",
		Explanation: "Web Development",
	}
	assert.Equal(t, "what is htmx?\na library for ajax.\nweb development", Normalize(card))

	choices := domain.CardContent{
		Front:   "Pick",
		Choices: []domain.Choice{{Text: "One"}, {Text: "Two", Correct: true}},
	}
	assert.Equal(t, "pick\n\n\n[ ] one\n[x] two", Normalize(choices))
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		card := domain.CardContent{Front: "Q", Back: "A", Explanation: "C"}
		expected := fmt.Sprintf("%x", sha256.Sum256([]byte("d1\nq\na\nc")))
		assert.Equal(t, expected, Hash("d1", card))
	})

	t.Run("hash is deterministic", func(t *testing.T) {
		assert.Equal(t, Hash("d1", domain.CardContent{Front: "Test"}), Hash("d1", domain.CardContent{Front: "Test"}))
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		card1 := domain.CardContent{Front: "  what is go? ", Back: "A programming language."}
		card2 := domain.CardContent{Front: "What Is Go?", Back: "A programming language."}
		assert.Equal(t, Hash("d1", card1), Hash("d1", card2))
	})

	t.Run("notes do not change identity", func(t *testing.T) {
		card1 := domain.CardContent{Front: "Go", Back: "Lang", Notes: "old", Mnemonic: "x"}
		card2 := domain.CardContent{Front: "Go", Back: "Lang", Notes: "new"}
		assert.Equal(t, Hash("d1", card1), Hash("d1", card2))
	})

	t.Run("different cards have different hashes", func(t *testing.T) {
		assert.NotEqual(t, Hash("d1", domain.CardContent{Front: "Card 1"}), Hash("d1", domain.CardContent{Front: "Card 2"}))
	})

	t.Run("deck scopes the hash", func(t *testing.T) {
		card := domain.CardContent{Front: "Same", Back: "Card"}
		assert.NotEqual(t, Hash("d1", card), Hash("d2", card))
	})

	t.Run("correct choice is part of identity", func(t *testing.T) {
		a := domain.CardContent{Front: "Pick", Choices: []domain.Choice{{Text: "x", Correct: true}, {Text: "y"}}}
		b := domain.CardContent{Front: "Pick", Choices: []domain.Choice{{Text: "x"}, {Text: "y", Correct: true}}}
		assert.NotEqual(t, Hash("d1", a), Hash("d1", b))
	})
}
