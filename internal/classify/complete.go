package classify

import "strings"

// Conservative defaults for replies that omit required fields. A missing
// verdict is never promoted to pure: absence of evidence of purity is not
// evidence of purity.
const (
	MissingVerdictDefault = VerdictFloss
	MissingJustification  = "Analysis completed but no detailed justification was available"
)

// Complete turns an attempt into a schema-valid Classification. Required
// fields missing from the attempt are substituted from the commit context or
// from the conservative defaults above, and every substitution is recorded in
// SynthesizedFields. Complete never fails: downstream consumers always see a
// fully-populated verdict.
func Complete(attempt *Attempt, cctx CommitContext) Classification {
	var synthesized []string

	repo := strings.TrimSpace(attempt.Repository)
	if repo == "" {
		repo = cctx.Repository
		synthesized = append(synthesized, "repository")
	}

	hash := strings.TrimSpace(attempt.HashCurrent)
	if hash == "" {
		hash = cctx.HashCurrent
		synthesized = append(synthesized, "commit_hash")
	}

	verdict := attempt.Verdict
	if verdict != VerdictPure && verdict != VerdictFloss {
		verdict = MissingVerdictDefault
		synthesized = append(synthesized, "verdict")
	}

	justification := strings.TrimSpace(attempt.Justification)
	if justification == "" {
		justification = MissingJustification
		synthesized = append(synthesized, "justification")
	}

	return Classification{
		Key:               CommitKey{Repository: repo, Hash: hash},
		Verdict:           verdict,
		Source:            SourceJudge,
		Justification:     justification,
		SynthesizedFields: synthesized,
	}
}
