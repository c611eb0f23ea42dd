package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// ClozeBlank replaces the hidden part of a cloze card's front.
const ClozeBlank = "____"

type field int

const (
	seeking field = iota
	readingQuestion
	readingAnswer
	readingContext
	readingExplanation
	readingMnemonic
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"Q:", readingQuestion},
	{"A:", readingAnswer},
	{"C:", readingContext},
	{"E:", readingExplanation},
	{"M:", readingMnemonic},
}

// ParseFile reads a file from the given path and extracts all card drafts.
func ParseFile(path string) ([]domain.CardContent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all card drafts.
//
// A card starts at a "Q:" line and ends at the next "Q:" line, a "---"
// separator or the end of input. "A:", "C:", "E:" and "M:" lines open the
// answer, context notes, explanation and mnemonic; lines without a prefix
// continue the open field. "- [x] text" and "- [ ] text" lines add correct
// and incorrect choices. A "{{text}}" marker in the question turns the card
// into a cloze whose hidden answer is text.
func Parse(r io.Reader) ([]domain.CardContent, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.CardContent
	var current domain.CardContent
	var block []string
	state := seeking

	flush := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch state {
		case readingQuestion:
			current.Front = content
		case readingAnswer:
			current.Back = content
		case readingContext:
			current.Notes = content
		case readingExplanation:
			current.Explanation = content
		case readingMnemonic:
			current.Mnemonic = content
		}
		block = nil
	}

	finishCard := func() {
		flush()
		if strings.TrimSpace(current.Front) != "" {
			cards = append(cards, cloze(current))
		}
		current = domain.CardContent{}
		state = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishCard()
			continue
		}

		if next, rest, ok := cutPrefix(line); ok {
			if next == readingQuestion && state != seeking {
				// A new question always starts a new card.
				finishCard()
			}
			flush()
			state = next
			block = append(block, rest)
			continue
		}

		if state == seeking {
			continue
		}

		if choice, ok := parseChoice(line); ok {
			flush()
			current.Choices = append(current.Choices, choice)
			continue
		}
		block = append(block, line)
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

func cutPrefix(line string) (field, string, bool) {
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(line, p.prefix); ok {
			return p.field, strings.TrimPrefix(rest, " "), true
		}
	}
	return seeking, "", false
}

func parseChoice(line string) (domain.Choice, bool) {
	trimmed := strings.TrimSpace(line)
	for _, marker := range []struct {
		prefix  string
		correct bool
	}{
		{"- [x]", true},
		{"- [X]", true},
		{"- [ ]", false},
	} {
		if rest, ok := strings.CutPrefix(trimmed, marker.prefix); ok {
			return domain.Choice{Text: strings.TrimSpace(rest), Correct: marker.correct}, true
		}
	}
	return domain.Choice{}, false
}

// cloze hides the first {{...}} marker of the front behind ClozeBlank. Later
// markers are unwrapped. Without a marker the draft is returned unchanged.
func cloze(c domain.CardContent) domain.CardContent {
	start := strings.Index(c.Front, "{{")
	if start < 0 {
		return c
	}
	end := strings.Index(c.Front[start:], "}}")
	if end < 0 {
		return c
	}
	end += start

	hidden := strings.TrimSpace(c.Front[start+2 : end])
	rest := strings.NewReplacer("{{", "", "}}", "").Replace(c.Front[end+2:])
	c.Front = c.Front[:start] + ClozeBlank + rest
	if c.Explanation == "" {
		// An answer next to a cloze reads as its explanation.
		c.Explanation = c.Back
	}
	c.Back = hidden
	c.Cloze = true
	return c
}
