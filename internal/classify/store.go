package classify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/refjudge/refjudge/internal/db"
)

// Store persists classifications, failure records, and run ledger rows. It is
// bound to the active judge model: judge-source operations are scoped to that
// model, reference-source operations to the empty model.
type Store struct {
	db    *db.DB
	model string
}

// NewStore creates a Store backed by the given database for the given judge
// model.
func NewStore(database *db.DB, model string) *Store {
	return &Store{db: database, model: model}
}

// Model returns the judge model this store is scoped to.
func (s *Store) Model() string { return s.model }

func (s *Store) modelFor(source Source) string {
	if source == SourceJudge {
		return s.model
	}
	return ""
}

// HasVerdict reports whether a verdict is already stored for the given commit
// and source. The batch loop checks this before every judge call so reruns
// resume from the first unclassified commit.
func (s *Store) HasVerdict(ctx context.Context, key CommitKey, source Source) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM verdicts
		WHERE repository = ? AND commit_hash = ? AND source = ? AND model = ?`,
		key.Repository, key.Hash, string(source), s.modelFor(source),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking verdict: %w", err)
	}
	return n > 0, nil
}

// PutVerdict inserts or replaces the verdict for (commit, source, model).
// If c.ID is empty a UUID is generated. Replacement happens only when a
// caller deliberately re-analyzes; the batch loop never overwrites silently
// because it checks HasVerdict first.
func (s *Store) PutVerdict(ctx context.Context, c Classification) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Source == SourceJudge && c.Model == "" {
		c.Model = s.model
	}

	synthesized, err := json.Marshal(c.SynthesizedFields)
	if err != nil {
		return fmt.Errorf("marshalling synthesized fields: %w", err)
	}
	if c.SynthesizedFields == nil {
		synthesized = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verdicts (
			id, repository, commit_hash, source, model, verdict,
			justification, synthesized_fields, had_conflict,
			input_tokens, output_tokens
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository, commit_hash, source, model) DO UPDATE SET
			verdict = excluded.verdict,
			justification = excluded.justification,
			synthesized_fields = excluded.synthesized_fields,
			had_conflict = excluded.had_conflict,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			created_at = datetime('now')`,
		c.ID,
		c.Key.Repository,
		c.Key.Hash,
		string(c.Source),
		c.Model,
		string(c.Verdict),
		c.Justification,
		string(synthesized),
		boolToInt(c.HadConflict),
		c.InputTokens,
		c.OutputTokens,
	)
	if err != nil {
		return fmt.Errorf("storing verdict: %w", err)
	}
	return nil
}

// GetVerdict retrieves the stored verdict for the given commit and source, or
// nil if none exists.
func (s *Store) GetVerdict(ctx context.Context, key CommitKey, source Source) (*Classification, error) {
	row := s.db.QueryRowContext(ctx, verdictColumns+`
		FROM verdicts
		WHERE repository = ? AND commit_hash = ? AND source = ? AND model = ?`,
		key.Repository, key.Hash, string(source), s.modelFor(source),
	)
	c, err := scanVerdict(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// AllVerdicts returns every stored verdict for the given source, in a stable
// repository/hash order.
func (s *Store) AllVerdicts(ctx context.Context, source Source) ([]Classification, error) {
	return s.Query(ctx, VerdictFilter{Source: source})
}

// VerdictFilter controls which verdicts Query returns.
type VerdictFilter struct {
	Source      Source
	Verdict     Verdict
	Repository  string
	HadConflict *bool
	Limit       int
	Offset      int
}

const verdictColumns = `
	SELECT id, repository, commit_hash, source, model, verdict,
	       justification, synthesized_fields, had_conflict,
	       input_tokens, output_tokens, created_at`

// Query returns verdicts matching the filter. Judge-source queries are scoped
// to the store's model.
func (s *Store) Query(ctx context.Context, filter VerdictFilter) ([]Classification, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Source != "" {
		clauses = append(clauses, "source = ?", "model = ?")
		args = append(args, string(filter.Source), s.modelFor(filter.Source))
	}
	if filter.Verdict != "" {
		clauses = append(clauses, "verdict = ?")
		args = append(args, string(filter.Verdict))
	}
	if filter.Repository != "" {
		clauses = append(clauses, "repository = ?")
		args = append(args, filter.Repository)
	}
	if filter.HadConflict != nil {
		clauses = append(clauses, "had_conflict = ?")
		args = append(args, boolToInt(*filter.HadConflict))
	}

	query := verdictColumns + " FROM verdicts"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY repository, commit_hash"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []Classification
	for rows.Next() {
		c, err := scanVerdict(rows)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, *c)
	}
	return verdicts, rows.Err()
}

// VerdictCounts returns the verdict distribution for the given source.
func (s *Store) VerdictCounts(ctx context.Context, source Source) (map[Verdict]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT verdict, COUNT(1) FROM verdicts
		WHERE source = ? AND model = ?
		GROUP BY verdict`,
		string(source), s.modelFor(source),
	)
	if err != nil {
		return nil, fmt.Errorf("counting verdicts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Verdict]int)
	for rows.Next() {
		var v string
		var n int
		if err := rows.Scan(&v, &n); err != nil {
			return nil, err
		}
		counts[Verdict(v)] = n
	}
	return counts, rows.Err()
}

// SynthesizedCount returns how many stored verdicts for the source carry at
// least one synthesized field.
func (s *Store) SynthesizedCount(ctx context.Context, source Source) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM verdicts
		WHERE source = ? AND model = ? AND synthesized_fields != '[]'`,
		string(source), s.modelFor(source),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting synthesized verdicts: %w", err)
	}
	return n, nil
}

// ResetSource deletes all stored verdicts for the given source (scoped to the
// store's model for the judge source). Returns the number of deleted rows.
// This is the restart-from-empty entry point; resume runs never call it.
func (s *Store) ResetSource(ctx context.Context, source Source) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM verdicts WHERE source = ? AND model = ?`,
		string(source), s.modelFor(source),
	)
	if err != nil {
		return 0, fmt.Errorf("resetting %s verdicts: %w", source, err)
	}
	return res.RowsAffected()
}

const maxRawExcerpt = 4000

// AppendFailure records one failed attempt. It is append-only and must never
// block the caller's batch loop: an insert error is written to stderr and
// swallowed.
func (s *Store) AppendFailure(ctx context.Context, rec FailureRecord) {
	if err := s.appendFailure(ctx, rec); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record failure for %s: %v\n", rec.Key, err)
	}
}

func (s *Store) appendFailure(ctx context.Context, rec FailureRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Model == "" {
		rec.Model = s.model
	}
	if rec.Attempt < 1 {
		rec.Attempt = 1
	}
	if len(rec.RawExcerpt) > maxRawExcerpt {
		rec.RawExcerpt = rec.RawExcerpt[:maxRawExcerpt]
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failures (
			id, repository, commit_hash, stage, error_detail,
			raw_excerpt, prompt_excerpt, attempt, model
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Key.Repository,
		rec.Key.Hash,
		rec.Stage,
		rec.ErrorDetail,
		rec.RawExcerpt,
		rec.PromptExcerpt,
		rec.Attempt,
		rec.Model,
	)
	return err
}

// Failures returns the most recent failure records, newest first.
func (s *Store) Failures(ctx context.Context, limit int) ([]FailureRecord, error) {
	query := `
		SELECT id, repository, commit_hash, stage, error_detail,
		       raw_excerpt, prompt_excerpt, attempt, model, created_at
		FROM failures ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer rows.Close()

	var records []FailureRecord
	for rows.Next() {
		var (
			rec FailureRecord
			ts  string
		)
		err := rows.Scan(
			&rec.ID, &rec.Key.Repository, &rec.Key.Hash, &rec.Stage,
			&rec.ErrorDetail, &rec.RawExcerpt, &rec.PromptExcerpt,
			&rec.Attempt, &rec.Model, &ts,
		)
		if err != nil {
			return nil, err
		}
		rec.CreatedAt = parseDBTime(ts)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FailureCount returns the total number of recorded failures.
func (s *Store) FailureCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM failures").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting failures: %w", err)
	}
	return n, nil
}

// StartRun opens a run ledger row and returns its ID.
func (s *Store) StartRun(ctx context.Context, mode string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, model, mode) VALUES (?, ?, ?)",
		id, s.model, mode,
	)
	if err != nil {
		return "", fmt.Errorf("starting run: %w", err)
	}
	return id, nil
}

// FinishRun records final counters for the given run.
func (s *Store) FinishRun(ctx context.Context, runID string, processed, succeeded, failed, skipped int, interrupted bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = datetime('now'),
			processed = ?, succeeded = ?, failed = ?, skipped = ?, interrupted = ?
		WHERE id = ?`,
		processed, succeeded, failed, skipped, boolToInt(interrupted), runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// Runs returns past runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, model, mode, started_at, finished_at,
		       processed, succeeded, failed, skipped, interrupted
		FROM runs ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r           Run
			started     string
			finished    sql.NullString
			interrupted int
		)
		err := rows.Scan(
			&r.ID, &r.Model, &r.Mode, &started, &finished,
			&r.Processed, &r.Succeeded, &r.Failed, &r.Skipped, &interrupted,
		)
		if err != nil {
			return nil, err
		}
		r.StartedAt = parseDBTime(started)
		if finished.Valid {
			r.FinishedAt = parseDBTime(finished.String)
		}
		r.Interrupted = interrupted != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanVerdict(sc scanner) (*Classification, error) {
	var (
		c                        Classification
		source, verdict          string
		synthesizedJSON, created string
		hadConflict              int
	)

	err := sc.Scan(
		&c.ID, &c.Key.Repository, &c.Key.Hash, &source, &c.Model, &verdict,
		&c.Justification, &synthesizedJSON, &hadConflict,
		&c.InputTokens, &c.OutputTokens, &created,
	)
	if err != nil {
		return nil, err
	}

	c.Source = Source(source)
	c.Verdict = Verdict(verdict)
	c.HadConflict = hadConflict != 0
	c.CreatedAt = parseDBTime(created)

	if err := json.Unmarshal([]byte(synthesizedJSON), &c.SynthesizedFields); err != nil {
		c.SynthesizedFields = nil
	}

	return &c, nil
}

func parseDBTime(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
