package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/study"
)

type action int

const (
	actionAnswer action = iota
	actionSkip
	actionQuit
	actionInvalid
)

// parseAnswer reads "y", "n", "y4", "n 1", "s" or "q". A missing quality
// falls back to the default for the answer.
func parseAnswer(line string) (action, bool, int) {
	line = strings.ToLower(strings.TrimSpace(line))
	if line == "" {
		return actionInvalid, false, 0
	}
	switch line[0] {
	case 'q':
		return actionQuit, false, 0
	case 's':
		return actionSkip, false, 0
	case 'y', 'n':
	default:
		return actionInvalid, false, 0
	}
	correct := line[0] == 'y'
	rest := strings.TrimSpace(line[1:])
	if rest == "" || rest == "es" || rest == "o" {
		return actionAnswer, correct, domain.DefaultQuality(correct)
	}
	q, err := strconv.Atoi(rest)
	if err != nil || q < domain.MinQuality || q > domain.MaxQuality {
		return actionInvalid, false, 0
	}
	return actionAnswer, correct, q
}

// runStudy drives a session from line-oriented input until the user quits,
// input ends or nothing is left to study.
func runStudy(in io.Reader, out io.Writer, s *study.Session) error {
	scanner := bufio.NewScanner(in)
	read := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return scanner.Text(), true
	}

	for {
		card, err := s.Next()
		if errors.Is(err, domain.ErrEmptyStore) {
			fmt.Fprintln(out, "Nothing to study.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(out)
		if card.Group != "" {
			fmt.Fprintf(out, "[%s] ", card.Group)
		}
		fmt.Fprintf(out, "Q: %s\n", card.Prompt)
		fmt.Fprint(out, "(Enter to reveal, q to quit) ")
		line, ok := read()
		if !ok || strings.EqualFold(strings.TrimSpace(line), "q") {
			return scanner.Err()
		}

		fmt.Fprintf(out, "A: %s\n", card.Response)
		if card.Context != "" {
			fmt.Fprintf(out, "C: %s\n", card.Context)
		}

	prompt:
		for {
			fmt.Fprint(out, "Correct? y/n with optional quality 0-5, s to skip, q to quit: ")
			line, ok := read()
			if !ok {
				return scanner.Err()
			}
			act, correct, quality := parseAnswer(line)
			switch act {
			case actionQuit:
				return nil
			case actionSkip:
				break prompt
			case actionInvalid:
				fmt.Fprintln(out, "Please answer y or n.")
				continue
			}

			res, err := s.Answer(card.ID, correct, quality)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Marked %s (%s).", map[bool]string{true: "correct", false: "wrong"}[correct], res.Card.Difficulty)
			if res.IntervalDays > 0 {
				fmt.Fprintf(out, " Next review in %d days.", res.IntervalDays)
			}
			fmt.Fprintln(out)
			break prompt
		}
	}
}

func printStats(out io.Writer, st study.Stats) {
	fmt.Fprintf(out, "\nReviewed %d cards: %d correct, %d wrong.\n", st.Reviewed, st.Correct, st.Wrong)
	fmt.Fprintf(out, "Deck: %d total, %d new, %d easy, %d medium, %d hard, %d due.\n",
		st.Total, st.New, st.Easy, st.Medium, st.Hard, st.Due)
}
