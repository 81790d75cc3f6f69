package compare

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/refjudge/refjudge/internal/classify"
)

func ref(hash string, v classify.Verdict, conflict bool) classify.Classification {
	return classify.Classification{
		Key:         classify.CommitKey{Hash: hash},
		Verdict:     v,
		Source:      classify.SourceReference,
		HadConflict: conflict,
	}
}

func judged(hash string, v classify.Verdict, synthesized ...string) classify.Classification {
	return classify.Classification{
		Key:               classify.CommitKey{Repository: "https://github.com/acme/widget.git", Hash: hash},
		Verdict:           v,
		Source:            classify.SourceJudge,
		Model:             "test-model",
		SynthesizedFields: synthesized,
	}
}

func TestCompareCountsAgreements(t *testing.T) {
	reference := []classify.Classification{
		ref("aaaaaaaa", classify.VerdictPure, false),
		ref("bbbbbbbb", classify.VerdictFloss, false),
		ref("cccccccc", classify.VerdictFloss, false),
	}
	judge := []classify.Classification{
		judged("aaaaaaaa", classify.VerdictPure),
		judged("bbbbbbbb", classify.VerdictPure),
		judged("cccccccc", classify.VerdictFloss),
	}

	r := Compare(reference, judge)

	if r.Compared != 3 {
		t.Fatalf("compared: got %d, want 3", r.Compared)
	}
	if r.Agreements != 2 {
		t.Errorf("agreements: got %d, want 2", r.Agreements)
	}
	if got := r.Rate(); got < 0.66 || got > 0.67 {
		t.Errorf("rate: got %f, want 2/3", got)
	}
	if r.Model != "test-model" {
		t.Errorf("model: got %q, want test-model", r.Model)
	}
}

func TestCompareConfusionMatrix(t *testing.T) {
	reference := []classify.Classification{
		ref("aaaaaaaa", classify.VerdictPure, false),
		ref("bbbbbbbb", classify.VerdictFloss, false),
		ref("cccccccc", classify.VerdictUnknown, false),
	}
	judge := []classify.Classification{
		judged("aaaaaaaa", classify.VerdictFloss),
		judged("bbbbbbbb", classify.VerdictFloss),
		judged("cccccccc", classify.VerdictPure),
	}

	r := Compare(reference, judge)

	// Rows: reference (pure, floss, unknown); columns: judge.
	if r.Confusion[0][1] != 1 {
		t.Errorf("pure/floss cell: got %d, want 1", r.Confusion[0][1])
	}
	if r.Confusion[1][1] != 1 {
		t.Errorf("floss/floss cell: got %d, want 1", r.Confusion[1][1])
	}
	if r.Confusion[2][0] != 1 {
		t.Errorf("unknown/pure cell: got %d, want 1", r.Confusion[2][0])
	}

	total := 0
	for i := range r.Confusion {
		for j := range r.Confusion[i] {
			total += r.Confusion[i][j]
		}
	}
	if total != r.Compared {
		t.Errorf("confusion total %d != compared %d", total, r.Compared)
	}
}

func TestCompareReportsUncomparedSeparately(t *testing.T) {
	reference := []classify.Classification{
		ref("aaaaaaaa", classify.VerdictPure, false),
		ref("bbbbbbbb", classify.VerdictFloss, false),
	}
	judge := []classify.Classification{
		judged("aaaaaaaa", classify.VerdictPure),
		judged("dddddddd", classify.VerdictFloss),
	}

	r := Compare(reference, judge)

	if r.Compared != 1 {
		t.Errorf("compared: got %d, want 1", r.Compared)
	}
	if len(r.OnlyReference) != 1 || r.OnlyReference[0] != "bbbbbbbb" {
		t.Errorf("only-reference: got %v, want [bbbbbbbb]", r.OnlyReference)
	}
	if len(r.OnlyJudge) != 1 || r.OnlyJudge[0] != "dddddddd" {
		t.Errorf("only-judge: got %v, want [dddddddd]", r.OnlyJudge)
	}
}

func TestCompareEmptyInputs(t *testing.T) {
	r := Compare(nil, nil)
	if r.Compared != 0 || r.Rate() != 0 {
		t.Errorf("empty compare: got compared=%d rate=%f", r.Compared, r.Rate())
	}
}

func TestCompareDeterministicOrdering(t *testing.T) {
	reference := []classify.Classification{
		ref("cccccccc", classify.VerdictPure, false),
		ref("aaaaaaaa", classify.VerdictPure, false),
		ref("bbbbbbbb", classify.VerdictPure, false),
	}
	judge := []classify.Classification{
		judged("bbbbbbbb", classify.VerdictPure),
		judged("cccccccc", classify.VerdictPure),
		judged("aaaaaaaa", classify.VerdictPure),
	}

	r := Compare(reference, judge)
	for i := 1; i < len(r.Pairs); i++ {
		if r.Pairs[i-1].Hash > r.Pairs[i].Hash {
			t.Fatalf("pairs not sorted: %q before %q", r.Pairs[i-1].Hash, r.Pairs[i].Hash)
		}
	}
}

func TestDisagreements(t *testing.T) {
	reference := []classify.Classification{
		ref("aaaaaaaa", classify.VerdictPure, true),
		ref("bbbbbbbb", classify.VerdictFloss, false),
	}
	judge := []classify.Classification{
		judged("aaaaaaaa", classify.VerdictFloss, "verdict"),
		judged("bbbbbbbb", classify.VerdictFloss),
	}

	r := Compare(reference, judge)
	d := r.Disagreements()
	if len(d) != 1 {
		t.Fatalf("disagreements: got %d, want 1", len(d))
	}
	if !d[0].RefConflict {
		t.Error("expected reference conflict flag carried into pair")
	}
	if !d[0].JudgeSynthetic {
		t.Error("expected synthesized flag carried into pair")
	}
}

func TestRenderText(t *testing.T) {
	r := Compare(
		[]classify.Classification{ref("aaaaaaaa", classify.VerdictPure, false)},
		[]classify.Classification{judged("aaaaaaaa", classify.VerdictPure)},
	)

	var buf bytes.Buffer
	RenderText(&buf, r)
	out := buf.String()

	if !strings.Contains(out, "Compared commits:  1") {
		t.Errorf("missing compared count in output:\n%s", out)
	}
	if !strings.Contains(out, "100.0%") {
		t.Errorf("missing rate in output:\n%s", out)
	}
}

func TestRenderMarkdownHasSections(t *testing.T) {
	r := Compare(
		[]classify.Classification{
			ref("aaaaaaaa", classify.VerdictPure, false),
			ref("bbbbbbbb", classify.VerdictFloss, false),
		},
		[]classify.Classification{
			judged("aaaaaaaa", classify.VerdictFloss),
		},
	)

	md := RenderMarkdown(r)
	for _, want := range []string{"## Confusion matrix", "## Disagreements", "reference only"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestWriteMarkdownAndJSON(t *testing.T) {
	dir := t.TempDir()
	r := Compare(
		[]classify.Classification{ref("aaaaaaaa", classify.VerdictPure, false)},
		[]classify.Classification{judged("aaaaaaaa", classify.VerdictPure)},
	)

	mdPath, err := WriteMarkdown(dir, "test-model", r)
	if err != nil {
		t.Fatalf("WriteMarkdown failed: %v", err)
	}
	if filepath.Base(mdPath) != "agreement_test-model.md" {
		t.Errorf("unexpected markdown path %q", mdPath)
	}

	jsonPath, err := WriteJSON(dir, "test-model", r)
	if err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if filepath.Base(jsonPath) != "agreement_test-model.json" {
		t.Errorf("unexpected json path %q", jsonPath)
	}
}
