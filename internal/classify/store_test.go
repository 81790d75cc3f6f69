package classify

import (
	"context"
	"fmt"
	"testing"

	"github.com/refjudge/refjudge/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database, "test-model")
}

func TestPutAndGetVerdict(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	c := Classification{
		Key:           CommitKey{Repository: "https://github.com/acme/widget", Hash: "abc1234"},
		Verdict:       VerdictPure,
		Source:        SourceJudge,
		Justification: "Renames a local variable with no behavioral impact",
		InputTokens:   1200,
		OutputTokens:  80,
	}
	if err := store.PutVerdict(ctx, c); err != nil {
		t.Fatalf("PutVerdict: %v", err)
	}

	got, err := store.GetVerdict(ctx, c.Key, SourceJudge)
	if err != nil {
		t.Fatalf("GetVerdict: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored verdict, got nil")
	}
	if got.ID == "" {
		t.Error("expected generated ID, got empty string")
	}
	if got.Verdict != VerdictPure {
		t.Errorf("Verdict = %q, want %q", got.Verdict, VerdictPure)
	}
	if got.Model != "test-model" {
		t.Errorf("Model = %q, want %q", got.Model, "test-model")
	}
	if got.Justification != c.Justification {
		t.Errorf("Justification = %q, want %q", got.Justification, c.Justification)
	}
	if got.InputTokens != 1200 || got.OutputTokens != 80 {
		t.Errorf("tokens = %d/%d, want 1200/80", got.InputTokens, got.OutputTokens)
	}
}

func TestGetVerdictMissing(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	got, err := store.GetVerdict(ctx, CommitKey{Repository: "r", Hash: "deadbee"}, SourceJudge)
	if err != nil {
		t.Fatalf("GetVerdict: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing verdict, got %+v", got)
	}
}

func TestHasVerdict(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	key := CommitKey{Repository: "https://github.com/acme/widget", Hash: "abc1234"}

	ok, err := store.HasVerdict(ctx, key, SourceJudge)
	if err != nil {
		t.Fatalf("HasVerdict: %v", err)
	}
	if ok {
		t.Error("expected no verdict before insert")
	}

	if err := store.PutVerdict(ctx, Classification{
		Key: key, Verdict: VerdictFloss, Source: SourceJudge,
		Justification: "Adds a null check changing behavior",
	}); err != nil {
		t.Fatalf("PutVerdict: %v", err)
	}

	ok, err = store.HasVerdict(ctx, key, SourceJudge)
	if err != nil {
		t.Fatalf("HasVerdict: %v", err)
	}
	if !ok {
		t.Error("expected verdict after insert")
	}

	// Same commit under the other source is still unclassified.
	ok, err = store.HasVerdict(ctx, key, SourceReference)
	if err != nil {
		t.Fatalf("HasVerdict: %v", err)
	}
	if ok {
		t.Error("judge verdict must not satisfy a reference lookup")
	}
}

func TestPutVerdictUpsert(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	key := CommitKey{Repository: "r", Hash: "abc1234"}

	if err := store.PutVerdict(ctx, Classification{
		Key: key, Verdict: VerdictPure, Source: SourceJudge, Justification: "first",
	}); err != nil {
		t.Fatalf("PutVerdict: %v", err)
	}
	if err := store.PutVerdict(ctx, Classification{
		Key: key, Verdict: VerdictFloss, Source: SourceJudge, Justification: "second",
	}); err != nil {
		t.Fatalf("PutVerdict (second): %v", err)
	}

	all, err := store.AllVerdicts(ctx, SourceJudge)
	if err != nil {
		t.Fatalf("AllVerdicts: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 verdict after upsert, got %d", len(all))
	}
	if all[0].Verdict != VerdictFloss {
		t.Errorf("Verdict = %q, want %q", all[0].Verdict, VerdictFloss)
	}
	if all[0].Justification != "second" {
		t.Errorf("Justification = %q, want %q", all[0].Justification, "second")
	}
}

func TestModelIsolation(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	storeA := NewStore(database, "model-a")
	storeB := NewStore(database, "model-b")
	ctx := context.Background()

	key := CommitKey{Repository: "r", Hash: "abc1234"}

	if err := storeA.PutVerdict(ctx, Classification{
		Key: key, Verdict: VerdictPure, Source: SourceJudge, Justification: "from model a",
	}); err != nil {
		t.Fatalf("PutVerdict: %v", err)
	}

	ok, err := storeB.HasVerdict(ctx, key, SourceJudge)
	if err != nil {
		t.Fatalf("HasVerdict: %v", err)
	}
	if ok {
		t.Error("model-b must not see model-a's verdict")
	}

	// Reference rows are shared between models.
	if err := storeA.PutVerdict(ctx, Classification{
		Key: key, Verdict: VerdictFloss, Source: SourceReference, Justification: "reference row",
	}); err != nil {
		t.Fatalf("PutVerdict reference: %v", err)
	}
	ok, err = storeB.HasVerdict(ctx, key, SourceReference)
	if err != nil {
		t.Fatalf("HasVerdict: %v", err)
	}
	if !ok {
		t.Error("reference verdict should be visible from any model's store")
	}
}

func TestQueryFilters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seed := []Classification{
		{Key: CommitKey{Repository: "repo-a", Hash: "aaa1111"}, Verdict: VerdictPure, Source: SourceJudge, Justification: "j"},
		{Key: CommitKey{Repository: "repo-a", Hash: "bbb2222"}, Verdict: VerdictFloss, Source: SourceJudge, Justification: "j"},
		{Key: CommitKey{Repository: "repo-b", Hash: "ccc3333"}, Verdict: VerdictFloss, Source: SourceJudge, Justification: "j"},
		{Key: CommitKey{Repository: "repo-b", Hash: "ccc3333"}, Verdict: VerdictPure, Source: SourceReference, Justification: "j", HadConflict: true},
	}
	for _, c := range seed {
		if err := store.PutVerdict(ctx, c); err != nil {
			t.Fatalf("PutVerdict: %v", err)
		}
	}

	floss, err := store.Query(ctx, VerdictFilter{Source: SourceJudge, Verdict: VerdictFloss})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(floss) != 2 {
		t.Errorf("expected 2 floss judge verdicts, got %d", len(floss))
	}

	repoA, err := store.Query(ctx, VerdictFilter{Source: SourceJudge, Repository: "repo-a"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(repoA) != 2 {
		t.Errorf("expected 2 repo-a verdicts, got %d", len(repoA))
	}

	conflicted := true
	withConflict, err := store.Query(ctx, VerdictFilter{Source: SourceReference, HadConflict: &conflicted})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(withConflict) != 1 {
		t.Errorf("expected 1 conflicted reference verdict, got %d", len(withConflict))
	}

	limited, err := store.Query(ctx, VerdictFilter{Source: SourceJudge, Limit: 1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 verdict with limit, got %d", len(limited))
	}
}

func TestVerdictCounts(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seed := []Verdict{VerdictPure, VerdictPure, VerdictFloss}
	for i, v := range seed {
		if err := store.PutVerdict(ctx, Classification{
			Key:     CommitKey{Repository: "r", Hash: fmt.Sprintf("abc%04d", i)},
			Verdict: v, Source: SourceJudge, Justification: "j",
		}); err != nil {
			t.Fatalf("PutVerdict: %v", err)
		}
	}

	counts, err := store.VerdictCounts(ctx, SourceJudge)
	if err != nil {
		t.Fatalf("VerdictCounts: %v", err)
	}
	if counts[VerdictPure] != 2 {
		t.Errorf("pure count = %d, want 2", counts[VerdictPure])
	}
	if counts[VerdictFloss] != 1 {
		t.Errorf("floss count = %d, want 1", counts[VerdictFloss])
	}
}

func TestSynthesizedFieldsRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	key := CommitKey{Repository: "r", Hash: "abc1234"}
	if err := store.PutVerdict(ctx, Classification{
		Key: key, Verdict: VerdictFloss, Source: SourceJudge,
		Justification:     "Analysis completed but no detailed justification was available",
		SynthesizedFields: []string{"verdict", "justification"},
	}); err != nil {
		t.Fatalf("PutVerdict: %v", err)
	}

	got, err := store.GetVerdict(ctx, key, SourceJudge)
	if err != nil {
		t.Fatalf("GetVerdict: %v", err)
	}
	if len(got.SynthesizedFields) != 2 || got.SynthesizedFields[0] != "verdict" {
		t.Errorf("SynthesizedFields = %v, want [verdict justification]", got.SynthesizedFields)
	}

	n, err := store.SynthesizedCount(ctx, SourceJudge)
	if err != nil {
		t.Fatalf("SynthesizedCount: %v", err)
	}
	if n != 1 {
		t.Errorf("SynthesizedCount = %d, want 1", n)
	}
}

func TestResetSource(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	key := CommitKey{Repository: "r", Hash: "abc1234"}
	for _, src := range []Source{SourceJudge, SourceReference} {
		if err := store.PutVerdict(ctx, Classification{
			Key: key, Verdict: VerdictPure, Source: src, Justification: "j",
		}); err != nil {
			t.Fatalf("PutVerdict: %v", err)
		}
	}

	deleted, err := store.ResetSource(ctx, SourceJudge)
	if err != nil {
		t.Fatalf("ResetSource: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	ok, err := store.HasVerdict(ctx, key, SourceReference)
	if err != nil {
		t.Fatalf("HasVerdict: %v", err)
	}
	if !ok {
		t.Error("reference verdict must survive a judge reset")
	}
}

func TestAppendFailureAndQuery(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	store.AppendFailure(ctx, FailureRecord{
		Key:         CommitKey{Repository: "r", Hash: "abc1234"},
		Stage:       StageInterpret,
		ErrorDetail: "no verdict signal in reply",
		RawExcerpt:  "the model said nothing useful",
	})

	records, err := store.Failures(ctx, 10)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(records))
	}
	rec := records[0]
	if rec.ID == "" {
		t.Error("expected generated ID, got empty string")
	}
	if rec.Stage != StageInterpret {
		t.Errorf("Stage = %q, want %q", rec.Stage, StageInterpret)
	}
	if rec.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", rec.Attempt)
	}
	if rec.Model != "test-model" {
		t.Errorf("Model = %q, want %q", rec.Model, "test-model")
	}

	n, err := store.FailureCount(ctx)
	if err != nil {
		t.Fatalf("FailureCount: %v", err)
	}
	if n != 1 {
		t.Errorf("FailureCount = %d, want 1", n)
	}
}

func TestAppendFailureTruncatesExcerpt(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	long := make([]byte, maxRawExcerpt+500)
	for i := range long {
		long[i] = 'x'
	}
	store.AppendFailure(ctx, FailureRecord{
		Key:         CommitKey{Repository: "r", Hash: "abc1234"},
		Stage:       StageInterpret,
		ErrorDetail: "oversized reply",
		RawExcerpt:  string(long),
	})

	records, err := store.Failures(ctx, 1)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(records))
	}
	if len(records[0].RawExcerpt) != maxRawExcerpt {
		t.Errorf("RawExcerpt length = %d, want %d", len(records[0].RawExcerpt), maxRawExcerpt)
	}
}

func TestRunLedger(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, err := store.StartRun(ctx, ModeResume)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if id == "" {
		t.Fatal("expected run ID, got empty string")
	}

	if err := store.FinishRun(ctx, id, 50, 47, 2, 1, false); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := store.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Mode != ModeResume {
		t.Errorf("Mode = %q, want %q", run.Mode, ModeResume)
	}
	if run.Processed != 50 || run.Succeeded != 47 || run.Failed != 2 || run.Skipped != 1 {
		t.Errorf("counters = %d/%d/%d/%d, want 50/47/2/1",
			run.Processed, run.Succeeded, run.Failed, run.Skipped)
	}
	if run.Interrupted {
		t.Error("expected interrupted = false")
	}
	if run.FinishedAt.IsZero() {
		t.Error("expected finished timestamp")
	}
}
