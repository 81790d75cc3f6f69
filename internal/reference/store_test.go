package reference

import (
	"context"
	"testing"

	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/db"
)

func setupStore(t *testing.T) *classify.Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return classify.NewStore(database, "test-model")
}

func flag(v bool) *bool { return &v }

func TestSyncCachesVerdicts(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	records := []Record{
		{Hash: "aaaaaaaa", Purity: flag(true), Description: "Rename Method"},
		{Hash: "bbbbbbbb", Purity: flag(false), Description: "Extract + fix"},
	}

	verdicts, err := Sync(ctx, store, records, classify.ModeResume)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(verdicts))
	}

	stored, err := store.AllVerdicts(ctx, classify.SourceReference)
	if err != nil {
		t.Fatalf("AllVerdicts failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored verdicts, got %d", len(stored))
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	records := []Record{
		{Hash: "aaaaaaaa", Purity: flag(true)},
		{Hash: "aaaaaaaa", Purity: flag(false)},
	}

	for i := 0; i < 3; i++ {
		if _, err := Sync(ctx, store, records, classify.ModeResume); err != nil {
			t.Fatalf("Sync pass %d failed: %v", i, err)
		}
	}

	stored, err := store.AllVerdicts(ctx, classify.SourceReference)
	if err != nil {
		t.Fatalf("AllVerdicts failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored verdict after repeated syncs, got %d", len(stored))
	}
	if stored[0].Verdict != classify.VerdictFloss {
		t.Errorf("expected floss verdict, got %q", stored[0].Verdict)
	}
	if !stored[0].HadConflict {
		t.Error("expected conflict flag to survive resync")
	}
}

func TestSyncRestartDropsStaleRows(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := []Record{
		{Hash: "aaaaaaaa", Purity: flag(true)},
		{Hash: "bbbbbbbb", Purity: flag(true)},
	}
	if _, err := Sync(ctx, store, first, classify.ModeResume); err != nil {
		t.Fatalf("initial sync failed: %v", err)
	}

	// A shrunk dataset with restart removes the commit no longer present.
	second := []Record{{Hash: "aaaaaaaa", Purity: flag(true)}}
	if _, err := Sync(ctx, store, second, classify.ModeRestart); err != nil {
		t.Fatalf("restart sync failed: %v", err)
	}

	stored, err := store.AllVerdicts(ctx, classify.SourceReference)
	if err != nil {
		t.Fatalf("AllVerdicts failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored verdict after restart, got %d", len(stored))
	}
	if stored[0].Key.Hash != "aaaaaaaa" {
		t.Errorf("expected aaaaaaaa to survive, got %q", stored[0].Key.Hash)
	}
}

func TestSyncResumeKeepsStaleRows(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := []Record{
		{Hash: "aaaaaaaa", Purity: flag(true)},
		{Hash: "bbbbbbbb", Purity: flag(true)},
	}
	if _, err := Sync(ctx, store, first, classify.ModeResume); err != nil {
		t.Fatalf("initial sync failed: %v", err)
	}

	second := []Record{{Hash: "aaaaaaaa", Purity: flag(false)}}
	if _, err := Sync(ctx, store, second, classify.ModeResume); err != nil {
		t.Fatalf("resume sync failed: %v", err)
	}

	stored, err := store.AllVerdicts(ctx, classify.SourceReference)
	if err != nil {
		t.Fatalf("AllVerdicts failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored verdicts after resume, got %d", len(stored))
	}
}

func TestSummarize(t *testing.T) {
	records := []Record{
		{Hash: "aaaaaaaa", Purity: flag(true)},
		{Hash: "bbbbbbbb", Purity: flag(true)},
		{Hash: "bbbbbbbb", Purity: flag(false)},
		{Hash: "cccccccc"},
	}
	st := Summarize(records, Consolidate(records))

	if st.Records != 4 {
		t.Errorf("records: got %d, want 4", st.Records)
	}
	if st.Commits != 3 {
		t.Errorf("commits: got %d, want 3", st.Commits)
	}
	if st.Pure != 1 || st.Floss != 1 || st.Unknown != 1 {
		t.Errorf("distribution: got pure=%d floss=%d unknown=%d, want 1/1/1", st.Pure, st.Floss, st.Unknown)
	}
	if st.Conflicts != 1 {
		t.Errorf("conflicts: got %d, want 1", st.Conflicts)
	}
}
