// Package parser extracts study cards from markdown notes.
//
// Two layouts are recognised. Question blocks:
//
//	Q: What is Go?
//	A: A programming language.
//	C: optional context
//	---
//
// and definition bullets, which become "What is <term>?" cards:
//
//	- **Goroutine**: a lightweight thread managed by the Go runtime.
package parser

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/conorfennell/knolsched/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	separator      = "---"
)

var (
	definitionRe = regexp.MustCompile(`^- \*\*(.+?)\*\*:\s*(.*)$`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingContext
	readingDefinition
)

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

type builder struct {
	cards []domain.Card
	card  domain.Card
	block []string
	state state
}

// flushBlock stores the lines collected so far into the field of the current state.
func (b *builder) flushBlock() {
	if len(b.block) == 0 {
		return
	}
	content := strings.TrimRight(strings.Join(b.block, "\n"), "\n")
	switch b.state {
	case readingQuestion:
		b.card.Prompt = content
	case readingAnswer:
		b.card.Response = content
	case readingContext:
		b.card.Context = content
	case readingDefinition:
		b.card.Response = strings.TrimSpace(spaceRe.ReplaceAllString(content, " "))
	}
	b.block = nil
}

func (b *builder) finishCard() {
	b.flushBlock()
	if b.card.Prompt != "" {
		b.cards = append(b.cards, b.card)
	}
	b.card = domain.Card{}
	b.state = seeking
}

func (b *builder) begin(s state, content string) {
	b.flushBlock()
	b.state = s
	b.block = append(b.block, content)
}

func trimPrefix(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}

// Parse reads from an io.Reader and extracts all cards.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	b := &builder{}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == separator:
			b.finishCard()
		case strings.HasPrefix(line, questionPrefix):
			// A new question always starts a new card.
			if b.state != seeking {
				b.finishCard()
			}
			b.begin(readingQuestion, trimPrefix(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix) && b.state != readingDefinition:
			b.begin(readingAnswer, trimPrefix(line, answerPrefix))
		case strings.HasPrefix(line, contextPrefix) && b.state != readingDefinition:
			b.begin(readingContext, trimPrefix(line, contextPrefix))
		case (b.state == seeking || b.state == readingDefinition) && definitionRe.MatchString(line):
			b.finishCard()
			m := definitionRe.FindStringSubmatch(line)
			b.card.Prompt = "What is " + strings.TrimSpace(m[1]) + "?"
			b.begin(readingDefinition, m[2])
		case b.state == readingDefinition && (strings.HasPrefix(line, "-") || strings.HasPrefix(line, "#")):
			// Another list item or heading ends the definition.
			b.finishCard()
		case b.state != seeking:
			b.block = append(b.block, line)
		}
	}

	b.finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b.cards, nil
}
