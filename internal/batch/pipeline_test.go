package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/corpus"
	"github.com/refjudge/refjudge/internal/db"
	"github.com/refjudge/refjudge/internal/judge"
)

// fakeGit serves canned diffs keyed by current hash.
type fakeGit struct {
	diffs    map[string]string
	missing  map[string]bool
	cloneErr error
	diffErr  error
}

func (f *fakeGit) EnsureCloned(ctx context.Context, repoURL string) (string, error) {
	if f.cloneErr != nil {
		return "", f.cloneErr
	}
	return "/fake/" + repoURL, nil
}

func (f *fakeGit) CommitExists(ctx context.Context, repoPath, hash string) bool {
	return !f.missing[hash]
}

func (f *fakeGit) Diff(ctx context.Context, repoPath, before, current string) (string, error) {
	if f.diffErr != nil {
		return "", f.diffErr
	}
	return f.diffs[current], nil
}

func (f *fakeGit) Message(ctx context.Context, repoPath, hash string) (string, error) {
	return "refactor: tidy things up", nil
}

// scriptedProvider returns queued replies in order and can run a hook before
// each call.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   int
	onCall  func(n int)
}

type scriptedReply struct {
	content string
	err     error
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Complete(ctx context.Context, req judge.CompletionRequest) (*judge.CompletionResponse, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	var r scriptedReply
	if len(s.replies) > 0 {
		r = s.replies[0]
		s.replies = s.replies[1:]
	} else {
		r = scriptedReply{err: errors.New("scripted provider exhausted")}
	}
	hook := s.onCall
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &judge.CompletionResponse{
		Content:      r.content,
		InputTokens:  120,
		OutputTokens: 40,
		Model:        "scripted-model",
		FinishReason: "stop",
	}, nil
}

func (s *scriptedProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func verdictReply(hash, verdict string) scriptedReply {
	content := fmt.Sprintf(`{
  "repository": "widgets",
  "commit_hash_before": "before-of-%s",
  "commit_hash_current": "%s",
  "refactoring_type": "%s",
  "justification": "Renames a helper with identical semantics throughout."
}`, hash, hash, verdict)
	return scriptedReply{content: content}
}

func testCommit(n int) corpus.Commit {
	return corpus.Commit{
		Repository:  "https://github.com/acme/widgets",
		Project:     "widgets",
		HashBefore:  fmt.Sprintf("a%07d", n),
		HashCurrent: fmt.Sprintf("b%07d", n),
	}
}

func testDataset(n int) (corpus.Dataset, *fakeGit) {
	ds := corpus.Dataset{}
	git := &fakeGit{diffs: map[string]string{}, missing: map[string]bool{}}
	for i := 1; i <= n; i++ {
		c := testCommit(i)
		ds.Commits = append(ds.Commits, c)
		git.diffs[c.HashCurrent] = fmt.Sprintf("diff --git a/f%d.go b/f%d.go\n-old\n+new\n", i, i)
	}
	return ds, git
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.CommitPause = time.Millisecond
	opts.BatchPause = time.Millisecond
	return opts
}

func setupPipeline(t *testing.T, provider judge.Provider, git GitClient, opts Options) (*Pipeline, *classify.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := classify.NewStore(database, "test-model")
	return New(store, provider, git, t.TempDir(), opts), store
}

func TestRunStoresVerdicts(t *testing.T) {
	ds, git := testDataset(2)
	provider := &scriptedProvider{replies: []scriptedReply{
		verdictReply(ds.Commits[0].HashCurrent, "pure"),
		verdictReply(ds.Commits[1].HashCurrent, "floss"),
	}}
	p, store := setupPipeline(t, provider, git, fastOptions())

	res, err := p.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Processed != 2 || res.Succeeded != 2 || res.Failed != 0 {
		t.Errorf("result = %+v, want 2 processed, 2 succeeded", res)
	}
	if res.Interrupted {
		t.Error("run should not be interrupted")
	}

	for i, want := range []classify.Verdict{classify.VerdictPure, classify.VerdictFloss} {
		got, err := store.GetVerdict(context.Background(), ds.Commits[i].Key(), classify.SourceJudge)
		if err != nil {
			t.Fatalf("GetVerdict: %v", err)
		}
		if got == nil {
			t.Fatalf("commit %d: no verdict stored", i)
		}
		if got.Verdict != want {
			t.Errorf("commit %d: verdict = %q, want %q", i, got.Verdict, want)
		}
		if got.InputTokens != 120 || got.OutputTokens != 40 {
			t.Errorf("commit %d: token counts not recorded: %+v", i, got)
		}
	}

	runs, err := store.Runs(context.Background(), 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run ledger row, got %d", len(runs))
	}
	if runs[0].Succeeded != 2 || runs[0].Interrupted {
		t.Errorf("ledger row = %+v", runs[0])
	}
}

func TestRunStoresUnderOrchestratorKey(t *testing.T) {
	// The reply claims a different repository and hash than the commit being
	// judged; the stored key must be the orchestrator's.
	ds, git := testDataset(1)
	provider := &scriptedProvider{replies: []scriptedReply{
		{content: `{"repository": "somewhere-else", "commit_hash_current": "ffffffff", "refactoring_type": "pure", "justification": "Pure structural move of two methods."}`},
	}}
	p, store := setupPipeline(t, provider, git, fastOptions())

	if _, err := p.Run(context.Background(), ds); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := store.GetVerdict(context.Background(), ds.Commits[0].Key(), classify.SourceJudge)
	if err != nil || got == nil {
		t.Fatalf("verdict not stored under commit key: %v", err)
	}
	if got.Verdict != classify.VerdictPure {
		t.Errorf("verdict = %q", got.Verdict)
	}
}

func TestRunSkipsAlreadyJudged(t *testing.T) {
	ds, git := testDataset(2)
	provider := &scriptedProvider{replies: []scriptedReply{
		verdictReply(ds.Commits[1].HashCurrent, "floss"),
	}}
	p, store := setupPipeline(t, provider, git, fastOptions())

	prior := classify.Classification{
		Key:           ds.Commits[0].Key(),
		Verdict:       classify.VerdictPure,
		Source:        classify.SourceJudge,
		Justification: "from an earlier run",
	}
	if err := store.PutVerdict(context.Background(), prior); err != nil {
		t.Fatalf("seeding verdict: %v", err)
	}

	res, err := p.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != 1 || res.Processed != 1 || res.Succeeded != 1 {
		t.Errorf("result = %+v, want 1 skipped, 1 processed", res)
	}
	if provider.callCount() != 1 {
		t.Errorf("judge called %d times, want 1", provider.callCount())
	}
}

func TestRunRestartClearsPreviousVerdicts(t *testing.T) {
	ds, git := testDataset(1)
	provider := &scriptedProvider{replies: []scriptedReply{
		verdictReply(ds.Commits[0].HashCurrent, "floss"),
	}}
	opts := fastOptions()
	opts.Mode = classify.ModeRestart
	p, store := setupPipeline(t, provider, git, opts)

	prior := classify.Classification{
		Key:           ds.Commits[0].Key(),
		Verdict:       classify.VerdictPure,
		Source:        classify.SourceJudge,
		Justification: "stale verdict",
	}
	if err := store.PutVerdict(context.Background(), prior); err != nil {
		t.Fatalf("seeding verdict: %v", err)
	}

	res, err := p.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != 0 || res.Succeeded != 1 {
		t.Errorf("result = %+v, want re-judged commit", res)
	}

	got, err := store.GetVerdict(context.Background(), ds.Commits[0].Key(), classify.SourceJudge)
	if err != nil || got == nil {
		t.Fatalf("verdict missing after restart: %v", err)
	}
	if got.Verdict != classify.VerdictFloss {
		t.Errorf("verdict = %q, want fresh floss", got.Verdict)
	}
}

func TestRunRecordsInterpretFailure(t *testing.T) {
	ds, git := testDataset(1)
	provider := &scriptedProvider{replies: []scriptedReply{
		{content: "The weather is nice today and I have nothing to add."},
	}}
	p, store := setupPipeline(t, provider, git, fastOptions())

	res, err := p.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 || res.Succeeded != 0 {
		t.Errorf("result = %+v, want 1 failed", res)
	}

	// The commit stays unjudged so the next run retries it.
	done, err := store.HasVerdict(context.Background(), ds.Commits[0].Key(), classify.SourceJudge)
	if err != nil {
		t.Fatalf("HasVerdict: %v", err)
	}
	if done {
		t.Error("failed commit must not carry a verdict")
	}

	failures, err := store.Failures(context.Background(), 10)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure record, got %d", len(failures))
	}
	f := failures[0]
	if f.Stage != classify.StageInterpret {
		t.Errorf("stage = %q", f.Stage)
	}
	if !strings.Contains(f.RawExcerpt, "weather") {
		t.Errorf("raw excerpt not captured: %q", f.RawExcerpt)
	}
	if f.PromptExcerpt == "" {
		t.Error("prompt excerpt not captured")
	}
}

func TestRunRecordsTransportFailure(t *testing.T) {
	ds, git := testDataset(1)
	provider := &scriptedProvider{replies: []scriptedReply{
		{err: errors.New("connection refused")},
	}}
	p, store := setupPipeline(t, provider, git, fastOptions())

	res, err := p.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("result = %+v, want 1 failed", res)
	}

	failures, err := store.Failures(context.Background(), 10)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(failures) != 1 || failures[0].Stage != classify.StageTransport {
		t.Fatalf("expected transport failure, got %+v", failures)
	}
}

func TestRunEmptyDiffIsFailure(t *testing.T) {
	ds, git := testDataset(1)
	git.diffs[ds.Commits[0].HashCurrent] = "   \n"
	provider := &scriptedProvider{}
	p, store := setupPipeline(t, provider, git, fastOptions())

	res, err := p.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("result = %+v, want 1 failed", res)
	}
	if provider.callCount() != 0 {
		t.Error("judge must not be called for an empty diff")
	}

	failures, _ := store.Failures(context.Background(), 10)
	if len(failures) != 1 || failures[0].Stage != classify.StageDiff {
		t.Fatalf("expected diff-stage failure, got %+v", failures)
	}
}

func TestRunMissingCommitIsFailure(t *testing.T) {
	ds, git := testDataset(1)
	git.missing[ds.Commits[0].HashBefore] = true
	provider := &scriptedProvider{}
	p, _ := setupPipeline(t, provider, git, fastOptions())

	res, err := p.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 || provider.callCount() != 0 {
		t.Errorf("result = %+v with %d calls, want diff failure before any call", res, provider.callCount())
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	ds, git := testDataset(3)
	provider := &scriptedProvider{}
	opts := fastOptions()
	opts.DryRun = true
	p, store := setupPipeline(t, provider, git, opts)

	res, err := p.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Processed != 3 || res.Succeeded != 3 {
		t.Errorf("result = %+v", res)
	}
	if provider.callCount() != 0 {
		t.Error("dry run must not call the judge")
	}

	verdicts, err := store.AllVerdicts(context.Background(), classify.SourceJudge)
	if err != nil {
		t.Fatalf("AllVerdicts: %v", err)
	}
	if len(verdicts) != 0 {
		t.Errorf("dry run stored %d verdicts", len(verdicts))
	}
	runs, _ := store.Runs(context.Background(), 10)
	if len(runs) != 0 {
		t.Errorf("dry run opened a ledger row")
	}
}

func TestRunSynthesizedFieldsCounted(t *testing.T) {
	ds, git := testDataset(1)
	provider := &scriptedProvider{replies: []scriptedReply{
		{content: `{"refactoring_type": "floss"}`},
	}}
	p, store := setupPipeline(t, provider, git, fastOptions())

	res, err := p.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded != 1 || res.Synthesized != 1 {
		t.Errorf("result = %+v, want 1 succeeded with synthesized fields", res)
	}

	got, err := store.GetVerdict(context.Background(), ds.Commits[0].Key(), classify.SourceJudge)
	if err != nil || got == nil {
		t.Fatalf("GetVerdict: %v", err)
	}
	if got.Justification != classify.MissingJustification {
		t.Errorf("justification = %q", got.Justification)
	}
	if len(got.SynthesizedFields) == 0 {
		t.Error("synthesized fields lost in storage")
	}
}

func TestRunInterruptAndResume(t *testing.T) {
	ds, git := testDataset(3)

	ctx, cancel := context.WithCancel(context.Background())
	provider := &scriptedProvider{
		replies: []scriptedReply{
			verdictReply(ds.Commits[0].HashCurrent, "pure"),
			{err: context.Canceled},
		},
	}
	// Cancel the run while the second commit is in flight.
	provider.onCall = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	p, store := setupPipeline(t, provider, git, fastOptions())
	res, err := p.Run(ctx, ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Interrupted {
		t.Fatal("run not marked interrupted")
	}
	if res.Succeeded != 1 {
		t.Errorf("first run succeeded = %d, want 1", res.Succeeded)
	}

	// The completed verdict survived the interrupt; the in-flight and
	// untouched commits carry none.
	done, _ := store.HasVerdict(context.Background(), ds.Commits[0].Key(), classify.SourceJudge)
	if !done {
		t.Error("first commit's verdict lost in interrupt")
	}
	for i := 1; i < 3; i++ {
		done, _ := store.HasVerdict(context.Background(), ds.Commits[i].Key(), classify.SourceJudge)
		if done {
			t.Errorf("commit %d should not have a verdict", i)
		}
	}

	runs, _ := store.Runs(context.Background(), 10)
	if len(runs) != 1 || !runs[0].Interrupted {
		t.Fatalf("interrupted run not recorded in ledger: %+v", runs)
	}

	// A fresh resume run judges only the two missing commits.
	resumed := &scriptedProvider{replies: []scriptedReply{
		verdictReply(ds.Commits[1].HashCurrent, "floss"),
		verdictReply(ds.Commits[2].HashCurrent, "pure"),
	}}
	p2 := New(store, resumed, git, t.TempDir(), fastOptions())

	res2, err := p2.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("resume Run: %v", err)
	}
	if res2.Skipped != 1 || res2.Succeeded != 2 {
		t.Errorf("resume result = %+v, want 1 skipped, 2 succeeded", res2)
	}
	if resumed.callCount() != 2 {
		t.Errorf("resume called judge %d times, want 2", resumed.callCount())
	}

	for i := range ds.Commits {
		done, _ := store.HasVerdict(context.Background(), ds.Commits[i].Key(), classify.SourceJudge)
		if !done {
			t.Errorf("commit %d still unjudged after resume", i)
		}
	}
}

func TestRunOutOfBandDiffStaged(t *testing.T) {
	ds, git := testDataset(1)
	git.diffs[ds.Commits[0].HashCurrent] = strings.Repeat("x", 150_000)

	var sawFilePrompt bool
	provider := &scriptedProvider{replies: []scriptedReply{
		verdictReply(ds.Commits[0].HashCurrent, "floss"),
	}}
	p, _ := setupPipeline(t, provider, git, fastOptions())

	// Inspect the prompt the provider received.
	inner := provider
	checking := providerFunc(func(ctx context.Context, req judge.CompletionRequest) (*judge.CompletionResponse, error) {
		for _, m := range req.Messages {
			if m.Role == judge.RoleUser && strings.Contains(m.Content, "FILE-BASED") {
				sawFilePrompt = true
				if strings.Contains(m.Content, strings.Repeat("x", 1000)) {
					t.Error("oversized diff embedded despite file-based plan")
				}
			}
		}
		return inner.Complete(ctx, req)
	})
	p.provider = checking

	res, err := p.Run(context.Background(), ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded != 1 {
		t.Errorf("result = %+v", res)
	}
	if !sawFilePrompt {
		t.Error("expected a file-based prompt for an oversized diff")
	}
}

// providerFunc adapts a function to the judge.Provider interface.
type providerFunc func(ctx context.Context, req judge.CompletionRequest) (*judge.CompletionResponse, error)

func (f providerFunc) Complete(ctx context.Context, req judge.CompletionRequest) (*judge.CompletionResponse, error) {
	return f(ctx, req)
}

func (f providerFunc) Name() string { return "func" }
