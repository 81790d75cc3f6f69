package batch

import (
	"fmt"
	"strings"

	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/diffplan"
	"github.com/refjudge/refjudge/internal/judge"
)

const systemPrompt = `You are an expert software engineering analyst specializing in distinguishing between pure and floss refactoring patterns. You will analyze Git diffs to classify commits with high precision.

## CLASSIFICATION CRITERIA

PURE refactoring means ZERO functional changes. Only classify as PURE if the diff contains nothing but:
- Variable/method/class renaming with identical semantics
- Method extraction where the extracted code is exactly the same
- Moving code between classes without any logic changes
- Formatting, whitespace, and style improvements
- Import statement reorganization
- Access modifier changes without behavior impact

FLOSS refactoring is ANY functional change mixed into the restructuring. If you find any of these, it is FLOSS:
- Addition of any new functionality
- Bug fixes, even tiny ones
- Changes to method signatures affecting behavior
- Modification of return values, types, or logic
- New conditional logic, validations, null checks, or error handling
- Performance optimizations that alter execution
- Algorithm or data structure changes

## ANALYSIS METHODOLOGY

Default assumption: FLOSS. Only classify as PURE if you are certain no functional changes exist.
- When uncertain, choose FLOSS and set confidence_level to "low".
- Mixed changes are always FLOSS, even when the functional part is small.
- IGNORE the commit message entirely. Base your classification ONLY on the code changes in the diff.
- For FLOSS, quote the specific lines showing functional changes. For PURE, confirm the changes are purely structural.

## RESPONSE FORMAT

1. Start with a brief analysis (2-3 sentences maximum).
2. End with exactly this line: "FINAL: PURE" or "FINAL: FLOSS"
3. Then provide the JSON structure below. CRITICAL: You must respond with the JSON object completing your analysis, no additional text before or after.

{
    "repository": "[repository]",
    "commit_hash_before": "[commit1]",
    "commit_hash_current": "[commit2]",
    "refactoring_type": "pure|floss",
    "justification": "Concise technical justification citing concrete evidence.",
    "technical_evidence": "Exact lines or patterns from the diff supporting the decision.",
    "confidence_level": "high|medium|low",
    "diff_source": "direct|file"
}

Do NOT emit <think> or similar reasoning tokens. If you cannot produce the JSON for any reason, return it with "refactoring_type": "floss" and a brief note in "justification".`

const inlinePromptTemplate = `Repository: %s
Commit Hash (Before): %s
Commit Hash (Current): %s

Diff Statistics:
- Size: %d characters (%d lines)
- Approach: DIRECT (diff included in prompt)

Code Diff:
%s

Analyze this Git diff and classify the commit as a pure or floss refactoring.

Instructions:
1. Analyze ALL changes shown in the diff above
2. Look for behavioral vs structural modifications
3. Provide your brief analysis, then FINAL: PURE or FINAL: FLOSS, then the JSON with "diff_source": "direct"`

const outOfBandPromptTemplate = `Repository: %s
Commit Hash (Before): %s
Commit Hash (Current): %s

Diff Statistics:
- Size: %d characters (%d lines)
- Approach: FILE-BASED (diff saved to a file due to size)
- File Path: %s

IMPORTANT: The complete diff has been saved to the file above. Read and analyze the ENTIRE file content before classifying; do not guess from partial content.

Analyze this Git diff and classify the commit as a pure or floss refactoring.

Instructions:
1. Read the COMPLETE diff file content
2. Analyze ALL changes for behavioral vs structural modifications
3. Provide your brief analysis, then FINAL: PURE or FINAL: FLOSS, then the JSON with "diff_source": "file"`

// buildMessages assembles the judge conversation for one commit. The diff is
// embedded or referenced by path according to the transport plan.
func buildMessages(cc classify.CommitContext, diff string, plan diffplan.Plan, artifactPath string) []judge.Message {
	lines := strings.Count(diff, "\n") + 1

	var userPrompt string
	if plan.Mode == diffplan.ModeOutOfBand {
		userPrompt = fmt.Sprintf(outOfBandPromptTemplate,
			cc.Repository, cc.HashBefore, cc.HashCurrent, len(diff), lines, artifactPath)
	} else {
		userPrompt = fmt.Sprintf(inlinePromptTemplate,
			cc.Repository, cc.HashBefore, cc.HashCurrent, len(diff), lines, diff)
	}

	return []judge.Message{
		{Role: judge.RoleSystem, Content: systemPrompt},
		{Role: judge.RoleUser, Content: userPrompt},
	}
}

// promptExcerpt trims a prompt for failure records.
func promptExcerpt(msgs []judge.Message, max int) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.Role != judge.RoleUser {
			continue
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	s := b.String()
	if len(s) > max {
		s = s[:max]
	}
	return s
}
