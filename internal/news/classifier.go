package news

import (
	"strings"
	"unicode"

	"github.com/wonny/aegis-swing/internal/contracts"
	"github.com/wonny/aegis-swing/internal/strategyconfig"
)

// Classifier matches headline words against keyword sets.
// material 세트가 먼저 (first match wins), 그 다음 긍정/부정 개수 비교
type Classifier struct {
	material []string
	positive []string
	negative []string
}

// NewClassifier builds a classifier from the configured keyword sets
func NewClassifier(cfg strategyconfig.News) *Classifier {
	return &Classifier{
		material: normalizeAll(cfg.Material),
		positive: normalizeAll(cfg.Positive),
		negative: normalizeAll(cfg.Negative),
	}
}

// Match is a classification with the keyword that decided it
type Match struct {
	Impact  contracts.NewsImpact
	Keyword string
}

// Classify returns the impact of one headline
func (c *Classifier) Classify(title string) Match {
	text := " " + normalize(title) + " "

	for _, kw := range c.material {
		if containsWord(text, kw) {
			return Match{Impact: contracts.NewsMaterial, Keyword: kw}
		}
	}

	pos, posKw := count(text, c.positive)
	neg, negKw := count(text, c.negative)
	switch {
	case pos > neg:
		return Match{Impact: contracts.NewsPositive, Keyword: posKw}
	case neg > pos:
		return Match{Impact: contracts.NewsNegative, Keyword: negKw}
	default:
		return Match{Impact: contracts.NewsNone}
	}
}

func count(text string, keywords []string) (int, string) {
	n, first := 0, ""
	for _, kw := range keywords {
		if containsWord(text, kw) {
			if n == 0 {
				first = kw
			}
			n++
		}
	}
	return n, first
}

// text 와 kw 는 normalize 된 상태, text 는 양쪽 공백 패딩.
// 하이픈 복합어는 통째로도, 나눈 단어로도 매칭 ("fda-approved" → "fda", "approved")
func containsWord(text, kw string) bool {
	if kw == "" {
		return false
	}
	if strings.Contains(text, " "+kw+" ") {
		return true
	}
	if !strings.Contains(text, "-") {
		return false
	}
	return strings.Contains(strings.ReplaceAll(text, "-", " "), " "+kw+" ")
}

// normalize lowercases and collapses punctuation to single spaces (hyphens kept)
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func normalizeAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if n := normalize(kw); n != "" {
			out = append(out, n)
		}
	}
	return out
}
