package interpret

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/refjudge/refjudge/internal/classify"
)

// attemptSchema is the shape a reply object must satisfy to count as a
// structured extraction: a JSON object asserting at least a verdict or a
// justification. Identity and evidence fields are optional because the
// validator can fill them from commit context.
const attemptSchema = `{
	"type": "object",
	"anyOf": [
		{"required": ["refactoring_type"]},
		{"required": ["verdict"]},
		{"required": ["justification"]}
	],
	"properties": {
		"refactoring_type": {"type": "string"},
		"verdict": {"type": "string"},
		"justification": {"type": "string"}
	}
}`

var fencedJSONRes = []*regexp.Regexp{
	regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```"),
	regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```"),
}

// extractStructured is tier 1: find the first syntactically valid JSON object
// in the reply that matches the expected schema. Objects may be the whole
// reply, fenced in a code block, or buried in prose.
func extractStructured(text string) *classify.Attempt {
	for _, candidate := range jsonCandidates(text) {
		m, ok := parseObject(candidate)
		if !ok {
			m, ok = parseObject(repairJSON(candidate))
		}
		if !ok {
			continue
		}
		if !matchesAttemptSchema(m) {
			continue
		}
		return attemptFromMap(m)
	}
	return nil
}

// jsonCandidates yields object-shaped substrings in preference order: the
// whole reply, fenced blocks, then a balanced-brace scan over every opening
// brace so nested objects inside prose are still found.
func jsonCandidates(text string) []string {
	var out []string

	if whole := strings.TrimSpace(text); strings.HasPrefix(whole, "{") {
		out = append(out, whole)
	}

	for _, re := range fencedJSONRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, m[1])
		}
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := braceEnd(text, i)
		if end < 0 {
			// Truncated object: fall back to the first closing brace so a
			// reply cut off mid-stream still produces a candidate.
			rest := strings.IndexByte(text[i:], '}')
			if rest < 0 {
				continue
			}
			end = i + rest
		}
		out = append(out, strings.Trim(text[i:end+1], "` \n"))
	}

	return out
}

// braceEnd returns the index of the brace closing the object that opens at
// start, skipping braces inside string literals, or -1 if unbalanced.
func braceEnd(text string, start int) int {
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escape {
			escape = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escape = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	lineCommentRe   = regexp.MustCompile(`(?m)//[^\n]*$`)
)

// repairJSON applies the repairs that recover the most common model output
// defects: stray code fences, line comments, and trailing commas.
func repairJSON(s string) string {
	s = strings.Trim(s, "` \n")
	s = lineCommentRe.ReplaceAllString(s, "")
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	return s
}

func parseObject(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	if m == nil {
		return nil, false
	}
	return m, true
}

func matchesAttemptSchema(m map[string]any) bool {
	schemaLoader := gojsonschema.NewStringLoader(attemptSchema)
	documentLoader := gojsonschema.NewGoLoader(m)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return false
	}
	return result.Valid()
}

func attemptFromMap(m map[string]any) *classify.Attempt {
	return &classify.Attempt{
		Repository:        stringField(m, "repository", "project"),
		HashBefore:        stringField(m, "commit_hash_before"),
		HashCurrent:       stringField(m, "commit_hash_current", "commit_hash"),
		Verdict:           classify.ParseVerdict(stringField(m, "refactoring_type", "verdict")),
		Justification:     stringField(m, "justification"),
		TechnicalEvidence: stringField(m, "technical_evidence"),
		ConfidenceLevel:   stringField(m, "confidence_level"),
		DiffSource:        stringField(m, "diff_source"),
	}
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
