// Package interpret turns raw judge replies into classification attempts.
//
// Interpretation is a three-tier cascade: structured JSON extraction, then
// line-oriented key/value extraction, then keyword-based semantic fallback.
// Each tier runs only when the prior one yields nothing usable, and no tier
// ever invents a pure verdict it cannot support. A reply that defeats all
// three tiers is an interpretation failure for the caller to record, never a
// guessed verdict.
package interpret

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/refjudge/refjudge/internal/classify"
)

var (
	// ErrEmptyReply marks a judge reply with no content at all.
	ErrEmptyReply = errors.New("empty judge reply")
	// ErrNoSignal marks a reply in which no tier found a usable verdict.
	ErrNoSignal = errors.New("no verdict signal in reply")
)

const maxJustification = 500

// Interpret extracts a classification attempt from a raw judge reply. The
// returned attempt may still miss required fields; Complete fills those from
// the commit context so synthesized-field bookkeeping stays in one place.
func Interpret(raw string) (*classify.Attempt, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyReply
	}

	text := stripReasoning(raw)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: reply held only reasoning markup", ErrNoSignal)
	}

	if a := extractStructured(text); a != nil {
		a.Tier = classify.TierStructured
		return a, nil
	}
	if a := extractLines(text); a != nil {
		a.Tier = classify.TierLine
		return a, nil
	}
	if a := extractKeywords(text); a != nil {
		a.Tier = classify.TierKeyword
		return a, nil
	}
	return nil, ErrNoSignal
}

var (
	thinkBlockRe  = regexp.MustCompile(`(?is)<think\b[^>]*>.*?</think>`)
	thinkSelfRe   = regexp.MustCompile(`(?is)<think\b[^>]*/>`)
	thinkDoubleRe = regexp.MustCompile(`(?is)<<think>>.*?<</think>>`)
	thinkLineRe   = regexp.MustCompile(`(?im)^\s*[\[(]?think[\])]?[:\-\s].*$`)

	promptEchoRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)critical:\s*you\s+must\s+respond.*?before\s+or\s+after\.`),
		regexp.MustCompile(`(?is)analyze\s+this\s+git\s+diff\s+and\s+classify.*?refactoring\.`),
		regexp.MustCompile(`(?im)^you\s+are\s+an?\s+expert.*$`),
		regexp.MustCompile(`(?im)^based\s+on\s+the\s+provided.*$`),
	}
)

// stripReasoning removes reasoning markup some local models leak into their
// replies (<think> blocks and variants), echoed prompt instructions, and
// degenerate word-loop lines, so the extraction tiers only see answer text.
func stripReasoning(text string) string {
	text = thinkBlockRe.ReplaceAllString(text, "")
	text = thinkSelfRe.ReplaceAllString(text, "")
	text = thinkDoubleRe.ReplaceAllString(text, "")
	text = thinkLineRe.ReplaceAllString(text, "")
	for _, re := range promptEchoRes {
		text = re.ReplaceAllString(text, "")
	}
	return dropDegenerateLines(text)
}

// dropDegenerateLines removes lines that are mostly the same word repeated, a
// failure mode of small models stuck in a generation loop.
func dropDegenerateLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		words := strings.Fields(line)
		if len(words) > 5 {
			uniq := make(map[string]struct{}, len(words))
			for _, w := range words {
				uniq[w] = struct{}{}
			}
			if len(uniq)*2 < len(words) {
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func capJustification(s string) string {
	r := []rune(s)
	if len(r) > maxJustification {
		return string(r[:maxJustification])
	}
	return s
}
