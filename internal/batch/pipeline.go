// Package batch drives the judging loop: select commits, extract diffs, call
// the judge, interpret and complete the reply, and persist exactly one
// outcome per commit. The loop is deliberately sequential; the judge is a
// shared, rate-limited endpoint and pacing between calls is part of the
// contract with it.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/corpus"
	"github.com/refjudge/refjudge/internal/diffplan"
	"github.com/refjudge/refjudge/internal/interpret"
	"github.com/refjudge/refjudge/internal/judge"
	"github.com/refjudge/refjudge/internal/progress"
)

// GitClient is the slice of git the pipeline needs. Satisfied by
// *gitio.Client.
type GitClient interface {
	EnsureCloned(ctx context.Context, repoURL string) (string, error)
	CommitExists(ctx context.Context, repoPath, hash string) bool
	Diff(ctx context.Context, repoPath, before, current string) (string, error)
	Message(ctx context.Context, repoPath, hash string) (string, error)
}

// Options tunes a batch run.
type Options struct {
	// Mode selects resume (skip already-judged commits) or restart (clear
	// this model's verdicts first, then judge everything).
	Mode string
	// DryRun walks the selection without touching git, the judge, or the
	// store.
	DryRun bool
	// CommitPause is the delay between consecutive judge calls.
	CommitPause time.Duration
	// BatchSize and BatchPause insert a longer breather every BatchSize
	// processed commits so a local judge server gets room to recover.
	BatchSize  int
	BatchPause time.Duration

	Temperature float64
	MaxTokens   int
}

// DefaultOptions returns the pacing the judge endpoint is calibrated for.
func DefaultOptions() Options {
	return Options{
		Mode:        classify.ModeResume,
		CommitPause: time.Second,
		BatchSize:   25,
		BatchPause:  5 * time.Second,
		Temperature: 0.1,
	}
}

// Result summarizes a run. Every selected commit lands in exactly one of
// Succeeded, Failed, or Skipped, or is left untouched by an interrupt.
type Result struct {
	RunID       string
	Processed   int
	Succeeded   int
	Failed      int
	Skipped     int
	Synthesized int
	Interrupted bool
}

// Pipeline wires the collaborators of a batch run.
type Pipeline struct {
	store    *classify.Store
	provider judge.Provider
	git      GitClient
	diffDir  string
	opts     Options
	reporter progress.Reporter
}

// New creates a Pipeline. diffDir holds staged artifacts for oversized diffs.
func New(store *classify.Store, provider judge.Provider, git GitClient, diffDir string, opts Options) *Pipeline {
	if opts.CommitPause == 0 {
		opts.CommitPause = time.Second
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 25
	}
	if opts.BatchPause == 0 {
		opts.BatchPause = 5 * time.Second
	}
	return &Pipeline{
		store:    store,
		provider: provider,
		git:      git,
		diffDir:  diffDir,
		opts:     opts,
		reporter: progress.NopReporter{},
	}
}

// SetReporter replaces the progress sink. The default discards events.
func (p *Pipeline) SetReporter(r progress.Reporter) {
	if r != nil {
		p.reporter = r
	}
}

// Run processes the dataset sequentially. Cancelling ctx is the supported
// interrupt: the commit in flight is abandoned without a verdict, everything
// already judged stays persisted, and the next resume run picks up at the
// first unclassified commit. Only persistence faults abort the run with an
// error; per-commit problems are recorded and skipped past.
func (p *Pipeline) Run(ctx context.Context, ds corpus.Dataset) (*Result, error) {
	if p.opts.Mode == classify.ModeRestart && !p.opts.DryRun {
		if _, err := p.store.ResetSource(ctx, classify.SourceJudge); err != nil {
			return nil, fmt.Errorf("clearing previous verdicts: %w", err)
		}
	}

	res := &Result{}
	if !p.opts.DryRun {
		runID, err := p.store.StartRun(ctx, p.opts.Mode)
		if err != nil {
			return nil, fmt.Errorf("opening run ledger: %w", err)
		}
		res.RunID = runID
	}

	p.reporter.Start(len(ds.Commits))
	defer p.reporter.Finish()

	sinceBreather := 0
	for i, c := range ds.Commits {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}

		key := c.Key()

		// The durable already-judged marker, checked before every call.
		if !p.opts.DryRun {
			done, err := p.store.HasVerdict(ctx, key, classify.SourceJudge)
			if err != nil {
				return res, p.finish(res, fmt.Errorf("checking %s: %w", key, err))
			}
			if done {
				res.Skipped++
				p.reporter.Update(i+1, "skipped "+shortHash(c.HashCurrent))
				continue
			}
		}

		res.Processed++
		p.reporter.Update(i+1, "judging "+shortHash(c.HashCurrent))

		if p.opts.DryRun {
			res.Succeeded++
			continue
		}

		cls, err := p.judgeOne(ctx, c)
		switch {
		case err != nil && ctx.Err() != nil:
			// Operator interrupt mid-call: no verdict, no failure record.
			res.Processed--
			res.Interrupted = true
		case err != nil:
			return res, p.finish(res, err)
		case cls == nil:
			res.Failed++
		default:
			res.Succeeded++
			if len(cls.SynthesizedFields) > 0 {
				res.Synthesized++
			}
		}
		if res.Interrupted {
			break
		}

		sinceBreather++
		if !p.pace(ctx, &sinceBreather) {
			res.Interrupted = true
			break
		}
	}

	return res, p.finish(res, nil)
}

// pace sleeps between commits, with a longer pause after each full batch.
// Returns false when the context was cancelled while waiting.
func (p *Pipeline) pace(ctx context.Context, sinceBreather *int) bool {
	pause := p.opts.CommitPause
	if *sinceBreather >= p.opts.BatchSize {
		pause = p.opts.BatchPause
		*sinceBreather = 0
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(pause):
		return true
	}
}

// finish closes the run ledger. The ledger write must not mask a run error,
// so runErr wins when both fail.
func (p *Pipeline) finish(res *Result, runErr error) error {
	if res.RunID == "" {
		return runErr
	}
	// The run context may already be cancelled; the ledger write still has
	// to land.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := p.store.FinishRun(ctx, res.RunID, res.Processed, res.Succeeded, res.Failed, res.Skipped, res.Interrupted)
	if runErr != nil {
		return runErr
	}
	if err != nil {
		return fmt.Errorf("closing run ledger: %w", err)
	}
	return nil
}

// judgeOne runs the full per-commit path: diff extraction, transport
// planning, the judge call, interpretation, and completion. A nil, nil
// return means the failure was recorded and the batch should move on; a
// non-nil error aborts the run.
func (p *Pipeline) judgeOne(ctx context.Context, c corpus.Commit) (*classify.Classification, error) {
	cc := c.Context()
	key := cc.Key()

	repoPath, err := p.git.EnsureCloned(ctx, c.Repository)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.recordFailure(ctx, cc, classify.StageDiff, fmt.Sprintf("preparing repository: %v", err), "", "")
		return nil, nil
	}

	if !p.git.CommitExists(ctx, repoPath, c.HashBefore) || !p.git.CommitExists(ctx, repoPath, c.HashCurrent) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.recordFailure(ctx, cc, classify.StageDiff, "commit pair not found in clone", "", "")
		return nil, nil
	}

	diff, err := p.git.Diff(ctx, repoPath, c.HashBefore, c.HashCurrent)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.recordFailure(ctx, cc, classify.StageDiff, fmt.Sprintf("extracting diff: %v", err), "", "")
		return nil, nil
	}
	if strings.TrimSpace(diff) == "" {
		p.recordFailure(ctx, cc, classify.StageDiff, "empty diff between commits", "", "")
		return nil, nil
	}

	// Best effort; the message only feeds failure records and is never shown
	// to the judge.
	if msg, err := p.git.Message(ctx, repoPath, c.HashCurrent); err == nil {
		cc.Message = msg
	}

	plan := diffplan.For(len(diff))
	var artifact string
	if plan.Mode == diffplan.ModeOutOfBand {
		artifact, err = diffplan.StageArtifact(p.diffDir, c.HashCurrent, diff)
		if err != nil {
			p.recordFailure(ctx, cc, classify.StageDiff, fmt.Sprintf("staging diff artifact: %v", err), "", "")
			return nil, nil
		}
		defer diffplan.RemoveArtifact(artifact)
	}

	msgs := buildMessages(cc, diff, plan, artifact)

	callCtx, cancel := context.WithTimeout(ctx, plan.Timeout)
	defer cancel()

	resp, err := judge.CompleteWithRetry(callCtx, p.provider, judge.CompletionRequest{
		Messages:    msgs,
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := fmt.Sprintf("judge call failed: %v", err)
		if errors.Is(err, context.DeadlineExceeded) {
			detail = fmt.Sprintf("judge call timed out after %s", plan.Timeout)
		}
		p.recordFailure(ctx, cc, classify.StageTransport, detail, "", promptExcerpt(msgs, 2000))
		return nil, nil
	}

	attempt, err := interpret.Interpret(resp.Content)
	if err != nil {
		p.recordFailure(ctx, cc, classify.StageInterpret, err.Error(), resp.Content, promptExcerpt(msgs, 2000))
		return nil, nil
	}

	cls := classify.Complete(attempt, cc)
	// Storage identity comes from the orchestrator, not from whatever
	// repository or hash the reply claimed; resume markers stay trustworthy
	// even against a hallucinating judge.
	cls.Key = key
	cls.InputTokens = resp.InputTokens
	cls.OutputTokens = resp.OutputTokens

	// A computed verdict is flushed even when the interrupt arrives right
	// after the judge call, so the paid-for work is never lost.
	putCtx, putCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer putCancel()
	if err := p.store.PutVerdict(putCtx, cls); err != nil {
		return nil, fmt.Errorf("storing verdict for %s: %w", key, err)
	}
	return &cls, nil
}

func (p *Pipeline) recordFailure(ctx context.Context, cc classify.CommitContext, stage, detail, raw, prompt string) {
	p.store.AppendFailure(ctx, classify.FailureRecord{
		Key:           cc.Key(),
		Stage:         stage,
		ErrorDetail:   detail,
		RawExcerpt:    raw,
		PromptExcerpt: prompt,
		Attempt:       1,
	})
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
