package answer

import (
	"strings"

	"github.com/kailas-cloud/bookqa/internal/domain"
)

const (
	// Separator precedes every page in the context block.
	Separator = "\n* "
	// MaxSectionLen is the default context budget, in words.
	MaxSectionLen = 500
)

// Assemble packs ranked pages into a context block of at most maxTokens words.
//
// Pages are taken greedily in rank order. The first page that does not fit
// is cut to its first remaining characters and assembly stops there, even if
// a shorter page further down would still fit.
func Assemble(ranked []domain.RankedEntry, maxTokens int) domain.AssembledContext {
	var b strings.Builder
	out := domain.AssembledContext{}
	remaining := maxTokens

	for _, r := range ranked {
		text := r.Entry.Text
		tokens := countTokens(text)

		b.WriteString(Separator)

		if remaining-tokens-len(Separator) < 0 {
			// Budget is in words, the cut is in characters.
			if fragment := prefix(text, remaining); fragment != "" {
				b.WriteString(fragment)
				out.Pages = append(out.Pages, r.Entry.ID)
			}
			out.Truncated = true
			break
		}

		b.WriteString(text)
		remaining -= tokens
		out.TokensUsed += tokens
		out.Pages = append(out.Pages, r.Entry.ID)
	}

	out.Text = b.String()
	return out
}

// countTokens approximates model tokens by whitespace-delimited words.
func countTokens(text string) int {
	return len(strings.Fields(text))
}

// prefix returns the first n characters of s.
func prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
