package reference

import (
	"strings"

	"github.com/refjudge/refjudge/internal/classify"
)

// Consolidate collapses raw records into exactly one canonical verdict per
// commit hash, resolving contradictions deterministically:
//
//   - any FALSE flag in a group makes the verdict floss, with HadConflict set
//     iff a TRUE flag is also present;
//   - otherwise any TRUE flag makes it pure;
//   - a group with no flags at all is unknown.
//
// Descriptions from all records in a group are deduplicated and joined in
// input order, so rerunning over the same dataset yields identical output.
// The reference dataset identifies commits by hash alone, so the returned map
// is keyed by hash and the verdicts carry an empty repository.
func Consolidate(records []Record) map[string]classify.Classification {
	order := make([]string, 0, len(records))
	groups := make(map[string][]Record, len(records))
	for _, rec := range records {
		if _, seen := groups[rec.Hash]; !seen {
			order = append(order, rec.Hash)
		}
		groups[rec.Hash] = append(groups[rec.Hash], rec)
	}

	out := make(map[string]classify.Classification, len(order))
	for _, hash := range order {
		out[hash] = consolidateGroup(hash, groups[hash])
	}
	return out
}

func consolidateGroup(hash string, group []Record) classify.Classification {
	hasTrue, hasFalse := false, false
	for _, rec := range group {
		if rec.Purity == nil {
			continue
		}
		if *rec.Purity {
			hasTrue = true
		} else {
			hasFalse = true
		}
	}

	verdict := classify.VerdictUnknown
	switch {
	case hasFalse:
		verdict = classify.VerdictFloss
	case hasTrue:
		verdict = classify.VerdictPure
	}
	hadConflict := hasTrue && hasFalse

	return classify.Classification{
		Key:           classify.CommitKey{Hash: hash},
		Verdict:       verdict,
		Source:        classify.SourceReference,
		Justification: groupJustification(group, hadConflict),
		HadConflict:   hadConflict,
	}
}

// groupJustification joins the group's descriptions, deduplicated in input
// order. In a conflicted group each description is prefixed with the flag of
// the record that produced it, so provenance survives the tie-break. Groups
// with no descriptions fall back to the refactoring type labels.
func groupJustification(group []Record, hadConflict bool) string {
	var parts []string
	seen := make(map[string]struct{})
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		parts = append(parts, s)
	}

	for _, rec := range group {
		if rec.Description == "" {
			continue
		}
		if hadConflict {
			add(flagPrefix(rec.Purity) + rec.Description)
		} else {
			add(rec.Description)
		}
	}
	if len(parts) == 0 {
		for _, rec := range group {
			add(rec.Type)
		}
	}
	return strings.Join(parts, " | ")
}

func flagPrefix(flag *bool) string {
	if flag == nil {
		return ""
	}
	if *flag {
		return "[TRUE] "
	}
	return "[FALSE] "
}
