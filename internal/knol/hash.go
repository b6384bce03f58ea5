package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/knolsched/internal/domain"
)

// Normalize joins the card's prompt, response and context after lowercasing,
// trimming and normalizing line endings, so cosmetic edits keep the same id.
func Normalize(card domain.Card) string {
	parts := []string{card.Prompt, card.Response, card.Context}
	for i, p := range parts {
		p = strings.ReplaceAll(p, "\r\n", "\n")
		parts[i] = strings.TrimSpace(strings.ToLower(p))
	}
	// Newline separation keeps "ab"+"c" and "a"+"bc" distinct.
	return strings.Join(parts, "\n")
}

// Hash returns the hex SHA-256 of the normalized card content. It is the
// stable card id assigned at ingestion.
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}
