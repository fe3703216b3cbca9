package usecase

import (
	"strings"
	"unicode"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

const DefaultGroundingMinOverlap = 0.2

// GroundingChecker flags answers whose tokens barely appear in the retrieved
// text. It never changes the answer.
type GroundingChecker struct {
	minOverlap float64
}

func NewGroundingChecker(minOverlap float64) *GroundingChecker {
	if minOverlap < 0 {
		minOverlap = 0
	}
	return &GroundingChecker{minOverlap: minOverlap}
}

// Check returns the share of answer tokens found in the sources. The fallback
// reply is grounded by definition.
func (g *GroundingChecker) Check(answer string, sources []domain.RetrievedChunk) (float64, bool) {
	if strings.TrimSpace(answer) == FallbackAnswer {
		return 1, true
	}

	answerTokens := toTokenSet(answer)
	if len(answerTokens) == 0 {
		return 0, g.minOverlap == 0
	}

	contextTokens := make(map[string]struct{}, 256)
	for _, source := range sources {
		for token := range toTokenSet(source.Chunk.PageContent) {
			contextTokens[token] = struct{}{}
		}
	}

	score := tokenOverlap(answerTokens, contextTokens)
	return score, score >= g.minOverlap
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitWordsLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

// splitWordsLower splits on anything that is not a letter or digit in any
// script. Combining marks (Arabic diacritics) are dropped without splitting.
func splitWordsLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsMark(r) {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
