package classify

import (
	"context"
	"strings"

	contractx "github.com/dmquizhpe/ventia/agent/contract"
	statex "github.com/dmquizhpe/ventia/agent/state"
)

// recentWindow is how many past user utterances feed style detection.
const recentWindow = 5

var stylePatterns = map[statex.Style][]string{
	statex.StyleRegional: {"ayayay", " ve ", " ve,", " ve?", "full", "chevere", "lindo", "pana"},
	statex.StyleYouthful: {"che", "bro", "tipo", " re ", "mal", "onda", "copado"},
	statex.StyleFormal:   {"usted", "señor", "señora", "por favor", "disculpe", "agradezco"},
}

var styleThresholds = map[statex.Style]int{
	statex.StyleRegional: 2,
	statex.StyleYouthful: 2,
	statex.StyleFormal:   1,
}

// PatternStyle matches register markers over the current query plus the
// recent user utterances. It never errors.
type PatternStyle struct{}

func NewPatternStyle() *PatternStyle { return &PatternStyle{} }

func (p *PatternStyle) Name() string { return "pattern" }

func (p *PatternStyle) Detect(_ context.Context, query string, recent []string) (contractx.StyleResult, error) {
	var sb strings.Builder
	for _, m := range recent {
		sb.WriteString(strings.ToLower(m))
		sb.WriteByte(' ')
	}
	sb.WriteString(strings.ToLower(query))
	// pad so word-boundary patterns like " ve " match at the edges
	corpus := " " + sb.String() + " "

	capacities := map[statex.Style]int{
		statex.StyleRegional: 3,
		statex.StyleYouthful: 3,
		statex.StyleFormal:   2,
	}

	// fixed priority: the first register over its threshold wins even
	// when a later one has more hits
	for _, style := range []statex.Style{statex.StyleRegional, statex.StyleYouthful, statex.StyleFormal} {
		hits := 0
		var matched []string
		for _, pat := range stylePatterns[style] {
			if strings.Contains(corpus, pat) {
				hits++
				matched = append(matched, strings.TrimSpace(pat))
			}
		}
		if hits < styleThresholds[style] {
			continue
		}

		confidence := float64(hits) / float64(capacities[style])
		if confidence > 1 {
			confidence = 1
		}
		return contractx.StyleResult{
			Style:      style,
			Confidence: confidence,
			Patterns:   matched,
		}, nil
	}

	return contractx.StyleResult{Style: statex.StyleNeutral, Confidence: 1.0}, nil
}
