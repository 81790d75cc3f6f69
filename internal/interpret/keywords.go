package interpret

import (
	"regexp"
	"strings"

	"github.com/refjudge/refjudge/internal/classify"
)

// Tier 3 synthesizes a verdict from a fixed keyword vocabulary when the reply
// carries no explicit fields at all. Matches preceded by a nearby negator are
// inverted rather than counted, so "no behavior change" supports purity
// instead of defeating it. Behavior-changing evidence always outranks purity
// evidence, and a reply with no usable keyword yields nothing: the caller
// records a failure instead of guessing.

var (
	pureWordRe  = regexp.MustCompile(`\b(?:pure|purely)\b`)
	flossWordRe = regexp.MustCompile(`\bfloss\b`)

	behavioralRe = regexp.MustCompile(`\b(?:behavior|behaviors|behavioral|behaviour|behaviours|behavioural)\b`)
	functionalRe = regexp.MustCompile(`\bfunctional\b`)
	bugFixRe     = regexp.MustCompile(`\b(?:bug|bugs|fix|fixes|fixed)\b`)
	featureRe    = regexp.MustCompile(`\b(?:feature|features|new)\b`)

	negatorRe = regexp.MustCompile(`\b(?:no|not|non|none|never|without)\b[^.\n]*$`)
)

// purePhrases are matched verbatim; the negated forms are inherently positive
// purity statements, so they bypass the negation lookback.
var purePhrases = []string{
	"only structural",
	"structural-only",
	"structural only",
	"behavior-preserving",
	"behaviour-preserving",
	"no functional",
	"no behavioral",
	"no behavior",
}

// negationWindow is how far back (in bytes) a negator can sit and still
// invert a keyword match.
const negationWindow = 24

func extractKeywords(text string) *classify.Attempt {
	lower := strings.ToLower(text)

	pure := hasSignal(lower, pureWordRe)
	if !pure {
		for _, phrase := range purePhrases {
			if strings.Contains(lower, phrase) {
				pure = true
				break
			}
		}
	}

	// Purity phrases are masked before the blocker scan so their own words
	// ("behavior-preserving", "no functional") cannot count as
	// behavior-changing evidence.
	masked := maskPurePhrases(lower)
	blocked := hasSignal(masked, behavioralRe) ||
		hasSignal(masked, functionalRe) ||
		hasSignal(masked, bugFixRe) ||
		hasSignal(masked, featureRe)
	floss := hasSignal(lower, flossWordRe) || hasNegatedSignal(lower, pureWordRe) || blocked

	var verdict classify.Verdict
	switch {
	case floss:
		verdict = classify.VerdictFloss
	case pure:
		verdict = classify.VerdictPure
	default:
		return nil
	}

	return &classify.Attempt{
		Verdict:       verdict,
		Justification: keywordJustification(text, lower, verdict),
	}
}

// maskPurePhrases blanks every purity phrase, preserving offsets so negation
// windows stay aligned.
func maskPurePhrases(lower string) string {
	for _, phrase := range purePhrases {
		if strings.Contains(lower, phrase) {
			lower = strings.ReplaceAll(lower, phrase, strings.Repeat(" ", len(phrase)))
		}
	}
	return lower
}

func keywordJustification(text, lower string, verdict classify.Verdict) string {
	masked := maskPurePhrases(lower)

	var parts []string
	if hasSignal(masked, behavioralRe) {
		parts = append(parts, "Contains behavioral changes")
	}
	if strings.Contains(lower, "structural") {
		parts = append(parts, "Contains structural changes")
	}
	if hasSignal(masked, bugFixRe) {
		parts = append(parts, "Contains bug fixes")
	}
	if hasSignal(masked, featureRe) {
		parts = append(parts, "Contains new features")
	}
	if len(parts) == 0 {
		if verdict == classify.VerdictPure {
			parts = append(parts, "Reply indicates structural changes without behavioral impact")
		} else {
			parts = append(parts, "Unable to extract detailed analysis from the reply")
		}
	}

	if s := firstSentence(text); len(s) > 20 && len(s) < 200 {
		parts = append(parts, "Model output: "+s)
	}
	return capJustification(strings.Join(parts, ". "))
}

func firstSentence(text string) string {
	s, _, _ := strings.Cut(strings.TrimSpace(text), ".")
	return strings.TrimSpace(s)
}

// hasSignal reports whether re matches anywhere in lower without a negator in
// the preceding window.
func hasSignal(lower string, re *regexp.Regexp) bool {
	for _, loc := range re.FindAllStringIndex(lower, -1) {
		if !negated(lower, loc[0]) {
			return true
		}
	}
	return false
}

// hasNegatedSignal reports whether re matches anywhere in lower with a
// negator in the preceding window ("not a pure refactoring").
func hasNegatedSignal(lower string, re *regexp.Regexp) bool {
	for _, loc := range re.FindAllStringIndex(lower, -1) {
		if negated(lower, loc[0]) {
			return true
		}
	}
	return false
}

func negated(lower string, idx int) bool {
	start := idx - negationWindow
	if start < 0 {
		start = 0
	}
	return negatorRe.MatchString(lower[start:idx])
}
