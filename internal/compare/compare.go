// Package compare joins consolidated reference verdicts with judge verdicts
// and computes agreement statistics. Commits present on only one side are
// reported separately, never silently dropped.
package compare

import (
	"sort"
	"time"

	"github.com/refjudge/refjudge/internal/classify"
)

// Pair is one commit judged by both oracles.
type Pair struct {
	Repository     string           `json:"repository,omitempty"`
	Hash           string           `json:"hash"`
	Reference      classify.Verdict `json:"reference"`
	Judge          classify.Verdict `json:"judge"`
	Agree          bool             `json:"agree"`
	RefConflict    bool             `json:"reference_conflict"`
	JudgeSynthetic bool             `json:"judge_synthesized"`
}

// AgreementReport is the outcome of joining the two verdict sets on commit
// hash.
type AgreementReport struct {
	Model         string    `json:"model"`
	GeneratedAt   time.Time `json:"generated_at"`
	Compared      int       `json:"compared"`
	Agreements    int       `json:"agreements"`
	Pairs         []Pair    `json:"pairs"`
	Confusion     [3][3]int `json:"confusion"` // [reference][judge]
	OnlyReference []string  `json:"only_reference"`
	OnlyJudge     []string  `json:"only_judge"`
}

// Rate returns the agreement rate over compared commits, or 0 when nothing
// was comparable.
func (r *AgreementReport) Rate() float64 {
	if r.Compared == 0 {
		return 0
	}
	return float64(r.Agreements) / float64(r.Compared)
}

// VerdictLabels orders the confusion matrix axes.
var VerdictLabels = [3]classify.Verdict{
	classify.VerdictPure,
	classify.VerdictFloss,
	classify.VerdictUnknown,
}

func verdictIndex(v classify.Verdict) int {
	switch v {
	case classify.VerdictPure:
		return 0
	case classify.VerdictFloss:
		return 1
	}
	return 2
}

// Compare performs an outer join of the two verdict sets on commit hash. The
// reference dataset identifies commits by hash alone, so hashes are the join
// key even though judge verdicts also carry a repository. Output ordering is
// deterministic: pairs and one-sided lists are sorted by hash.
func Compare(reference, judge []classify.Classification) *AgreementReport {
	refByHash := make(map[string]classify.Classification, len(reference))
	for _, v := range reference {
		refByHash[v.Key.Hash] = v
	}
	judgeByHash := make(map[string]classify.Classification, len(judge))
	for _, v := range judge {
		judgeByHash[v.Key.Hash] = v
	}

	report := &AgreementReport{GeneratedAt: time.Now().UTC()}

	for hash, jv := range judgeByHash {
		if report.Model == "" {
			report.Model = jv.Model
		}
		rv, ok := refByHash[hash]
		if !ok {
			report.OnlyJudge = append(report.OnlyJudge, hash)
			continue
		}

		pair := Pair{
			Repository:     jv.Key.Repository,
			Hash:           hash,
			Reference:      rv.Verdict,
			Judge:          jv.Verdict,
			Agree:          rv.Verdict == jv.Verdict,
			RefConflict:    rv.HadConflict,
			JudgeSynthetic: len(jv.SynthesizedFields) > 0,
		}
		report.Pairs = append(report.Pairs, pair)
		report.Compared++
		if pair.Agree {
			report.Agreements++
		}
		report.Confusion[verdictIndex(rv.Verdict)][verdictIndex(jv.Verdict)]++
	}

	for hash := range refByHash {
		if _, ok := judgeByHash[hash]; !ok {
			report.OnlyReference = append(report.OnlyReference, hash)
		}
	}

	sort.Slice(report.Pairs, func(i, j int) bool { return report.Pairs[i].Hash < report.Pairs[j].Hash })
	sort.Strings(report.OnlyReference)
	sort.Strings(report.OnlyJudge)

	return report
}

// Disagreements returns the compared pairs where the oracles differ, in hash
// order.
func (r *AgreementReport) Disagreements() []Pair {
	var out []Pair
	for _, p := range r.Pairs {
		if !p.Agree {
			out = append(out, p)
		}
	}
	return out
}
