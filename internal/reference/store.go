package reference

import (
	"context"
	"fmt"

	"github.com/refjudge/refjudge/internal/classify"
)

// Sync consolidates raw records and caches the canonical verdicts in the
// store, so repeated runs over the same dataset are idempotent. In restart
// mode every previously stored reference verdict is deleted first; in resume
// mode existing rows are simply upserted in place.
func Sync(ctx context.Context, store *classify.Store, records []Record, mode string) (map[string]classify.Classification, error) {
	if mode == classify.ModeRestart {
		if _, err := store.ResetSource(ctx, classify.SourceReference); err != nil {
			return nil, fmt.Errorf("clearing reference verdicts: %w", err)
		}
	}

	verdicts := Consolidate(records)
	for _, v := range verdicts {
		if err := store.PutVerdict(ctx, v); err != nil {
			return nil, fmt.Errorf("caching reference verdict for %s: %w", v.Key.Hash, err)
		}
	}
	return verdicts, nil
}

// Stats summarizes a consolidation pass.
type Stats struct {
	Records   int
	Commits   int
	Pure      int
	Floss     int
	Unknown   int
	Conflicts int
}

// Summarize computes distribution stats over consolidated verdicts.
func Summarize(records []Record, verdicts map[string]classify.Classification) Stats {
	st := Stats{Records: len(records), Commits: len(verdicts)}
	for _, v := range verdicts {
		switch v.Verdict {
		case classify.VerdictPure:
			st.Pure++
		case classify.VerdictFloss:
			st.Floss++
		default:
			st.Unknown++
		}
		if v.HadConflict {
			st.Conflicts++
		}
	}
	return st
}
