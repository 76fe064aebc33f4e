// Package summarizer produces short extractive summaries of the indexed
// documents.
package summarizer

import (
	"math"
	"regexp"
	"slices"
	"strings"

	"ragreader/internal/domain"
	"ragreader/internal/textutil"
)

// DefaultMaxSentences is used when a non-positive limit is requested.
const DefaultMaxSentences = 5

var sentencePattern = regexp.MustCompile(`[^.!?\n]+(?:[.!?]+|\n|$)`)

// FrequencySummarizer ranks sentences by the normalised frequency of their
// content words and returns the best ones in document order.
type FrequencySummarizer struct{}

var _ domain.Summarizer = FrequencySummarizer{}

func NewFrequencySummarizer() FrequencySummarizer { return FrequencySummarizer{} }

func (FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	var sentences []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" && len(textutil.Tokens(s)) > 0 {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	freq := map[string]float64{}
	maxF := 0.0
	for _, s := range sentences {
		for _, tok := range textutil.ContentTokens(s) {
			freq[tok]++
			maxF = max(maxF, freq[tok])
		}
	}

	if maxF == 0 {
		// Only stop words: every sentence scores zero.
		maxF = 1
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		score := 0.0
		toks := textutil.Tokens(s)
		for _, tok := range toks {
			score += freq[tok] / maxF
		}
		// Long sentences would otherwise always win.
		ranked[i] = scored{i, score / math.Sqrt(float64(len(toks)))}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	n := min(maxSentences, len(ranked))
	selected := make([]int, n)
	for i := range n {
		selected[i] = ranked[i].idx
	}
	slices.Sort(selected)

	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}
