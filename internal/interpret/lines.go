package interpret

import (
	"regexp"
	"strings"

	"github.com/refjudge/refjudge/internal/classify"
)

// Tier 2 assembles a partial attempt from key/value-shaped fragments when no
// parseable object exists, e.g. a reply that lists fields in prose or whose
// JSON was too mangled to repair. Quoted JSON-style fragments are preferred
// over loose "key: value" forms.

var (
	repositoryRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"(?:repository|project)"\s*:\s*"([^"]*)"`),
		regexp.MustCompile(`(?i)\b(?:repository|project)[:\s]+([^\n,}]+)`),
	}
	hashBeforeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"commit_hash_before"\s*:\s*"([^"]*)"`),
		regexp.MustCompile(`(?i)\bcommit_hash_before[:\s]+([^\n,}]+)`),
	}
	hashCurrentRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"commit_hash_current"\s*:\s*"([^"]*)"`),
		regexp.MustCompile(`(?i)\bcommit_hash_current[:\s]+([^\n,}]+)`),
	}
	verdictRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"(?:refactoring_type|verdict)"\s*:\s*"([^"]*)"`),
		regexp.MustCompile(`(?i)\b(?:refactoring_type|verdict)[:\s]+([^\n,}]+)`),
	}
	justificationQuotedRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"justification"\s*:\s*"([^"]*)"`),
	}
	justificationLooseRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bjustification[:\s]+([^\n,}]+)`),
		regexp.MustCompile(`(?i)\b(?:reasoning|explanation)[:\s]+([^\n,}]+)`),
	}
)

// Loose prose captures shorter than this are rejected as noise; quoted JSON
// fragments are taken as-is.
const minLooseJustification = 10

func extractLines(text string) *classify.Attempt {
	a := &classify.Attempt{}
	fields := 0

	if v := firstMatch(text, repositoryRes); v != "" {
		a.Repository = v
		fields++
	}
	if v := firstMatch(text, hashBeforeRes); v != "" {
		a.HashBefore = v
		fields++
	}
	if v := firstMatch(text, hashCurrentRes); v != "" {
		a.HashCurrent = v
		fields++
	}
	if v := classify.ParseVerdict(firstMatch(text, verdictRes)); v == classify.VerdictPure || v == classify.VerdictFloss {
		a.Verdict = v
		fields++
	}

	if v := firstMatch(text, justificationQuotedRes); v != "" {
		a.Justification = v
	} else if v := firstMatch(text, justificationLooseRes); len(v) > minLooseJustification {
		a.Justification = v
	}
	if a.Justification != "" {
		a.Justification = capJustification(a.Justification)
		fields++
	}

	// A verdict or a justification must be present, and a single stray field
	// is not enough to trust the reply as structured output.
	if fields < 2 || (a.Verdict == "" && a.Justification == "") {
		return nil
	}
	return a
}

func firstMatch(text string, res []*regexp.Regexp) string {
	for _, re := range res {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v := cleanLineValue(m[1]); v != "" {
			return v
		}
	}
	return ""
}

// cleanLineValue strips quoting and rejects placeholder values models emit
// for fields they do not know.
func cleanLineValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, `"'`)
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "unknown", "none", "null", "n/a":
		return ""
	}
	return v
}
