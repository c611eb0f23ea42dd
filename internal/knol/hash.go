package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// Normalize concatenates the card's identifying content after cleaning each
// part. It trims whitespace, lowercases, and normalizes line endings for each
// field before joining them. Notes and mnemonics are not part of a card's
// identity, so editing them keeps the card's review history.
func Normalize(c domain.CardContent) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		p = strings.TrimSpace(p)
		return p
	}

	parts := []string{
		normalizePart(c.Front),
		normalizePart(c.Back),
		normalizePart(c.Explanation),
	}
	for _, ch := range c.Choices {
		mark := "[ ]"
		if ch.Correct {
			mark = "[x]"
		}
		parts = append(parts, mark+" "+normalizePart(ch.Text))
	}
	if c.Cloze {
		parts = append(parts, "cloze")
	}

	// Fields are joined with a newline so that "question" and "answer"
	// never collapse into "questionanswer".
	return strings.Join(parts, "\n")
}

// Hash returns the SHA-256 hash of a card draft, scoped to its deck, as a hex
// string. The same card in two decks gets two ids.
func Hash(deckID string, c domain.CardContent) string {
	hashBytes := sha256.Sum256([]byte(deckID + "\n" + Normalize(c)))
	return fmt.Sprintf("%x", hashBytes)
}
