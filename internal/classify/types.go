// Package classify defines the canonical commit classification model shared
// by the reference and judge pipelines.
package classify

import (
	"strings"
	"time"
)

// Verdict is the canonical classification of a commit.
type Verdict string

const (
	// VerdictPure marks a behavior-preserving, structure-only change.
	VerdictPure Verdict = "pure"
	// VerdictFloss marks a change that mixes refactoring with behavioral
	// modification.
	VerdictFloss Verdict = "floss"
	// VerdictUnknown marks a commit for which no oracle produced a signal.
	VerdictUnknown Verdict = "unknown"
)

// ParseVerdict normalizes free-form verdict text. Unrecognized values map to
// the empty string, which callers treat as absent.
func ParseVerdict(s string) Verdict {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pure":
		return VerdictPure
	case "floss":
		return VerdictFloss
	case "unknown":
		return VerdictUnknown
	}
	return ""
}

// Source identifies which oracle produced a classification.
type Source string

const (
	SourceReference Source = "reference_tool"
	SourceJudge     Source = "llm_judge"
)

// CommitKey is the natural identity of a commit: the repository it lives in
// plus its hash. Raw inputs may repeat a key; stored output never does.
type CommitKey struct {
	Repository string
	Hash       string
}

func (k CommitKey) String() string {
	return k.Repository + "@" + k.Hash
}

// Classification is the canonical output unit: one verdict per commit per
// source. SynthesizedFields lists every field that was absent from the raw
// input and had to be filled by the validator, so consumers can tell
// judge-asserted data from defaults. HadConflict is set when multiple raw
// inputs disagreed and were reconciled.
type Classification struct {
	ID                string
	Key               CommitKey
	Verdict           Verdict
	Source            Source
	Model             string
	Justification     string
	SynthesizedFields []string
	HadConflict       bool
	InputTokens       int
	OutputTokens      int
	CreatedAt         time.Time
}

// DiffPayload is a commit's diff as produced by the extractor. Immutable once
// built; ByteLength drives transport planning.
type DiffPayload struct {
	Key        CommitKey
	Text       string
	ByteLength int
}

// NewDiffPayload builds a DiffPayload for the given commit.
func NewDiffPayload(key CommitKey, text string) DiffPayload {
	return DiffPayload{Key: key, Text: text, ByteLength: len(text)}
}

// ExtractionTier records which interpreter strategy produced an attempt.
type ExtractionTier int

const (
	TierNone ExtractionTier = iota
	TierStructured
	TierLine
	TierKeyword
)

func (t ExtractionTier) String() string {
	switch t {
	case TierStructured:
		return "structured"
	case TierLine:
		return "line"
	case TierKeyword:
		return "keyword"
	}
	return "none"
}

// Attempt is an unvalidated classification candidate assembled from a raw
// judge reply. Any field may be empty; Complete fills the required ones.
type Attempt struct {
	Repository        string
	HashBefore        string
	HashCurrent       string
	Verdict           Verdict
	Justification     string
	TechnicalEvidence string
	ConfidenceLevel   string
	DiffSource        string
	Tier              ExtractionTier
}

// CommitContext carries the facts about a commit that are known independently
// of any judge reply.
type CommitContext struct {
	Repository  string
	HashBefore  string
	HashCurrent string
	Message     string
}

// Key returns the CommitKey for this context.
func (c CommitContext) Key() CommitKey {
	return CommitKey{Repository: c.Repository, Hash: c.HashCurrent}
}

// Failure stages recorded by the batch loop.
const (
	StageDiff      = "diff"
	StageTransport = "transport"
	StageInterpret = "interpret"
)

// FailureRecord captures one unrecoverable or partially-recovered attempt for
// offline audit. Append-only; never mutated.
type FailureRecord struct {
	ID            string
	Key           CommitKey
	Stage         string
	ErrorDetail   string
	RawExcerpt    string
	PromptExcerpt string
	Attempt       int
	Model         string
	CreatedAt     time.Time
}

// Run is the ledger row for one batch pass.
type Run struct {
	ID          string
	Model       string
	Mode        string
	StartedAt   time.Time
	FinishedAt  time.Time
	Processed   int
	Succeeded   int
	Failed      int
	Skipped     int
	Interrupted bool
}

// Run modes.
const (
	ModeResume  = "resume"
	ModeRestart = "restart"
)
