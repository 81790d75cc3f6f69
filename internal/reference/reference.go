// Package reference loads the heuristic reference tool's raw classification
// records and consolidates them into canonical verdicts.
//
// The raw dataset may carry several records per commit, with contradictory
// purity flags. Consolidation is deterministic and conservative: one dissenting
// behavior-changing flag outranks any number of purity flags.
package reference

import "strings"

// Record is one raw reference-tool row: a commit hash, a nullable purity flag,
// and free-text refactoring metadata. Records are inputs to consolidation and
// are never persisted as verdicts themselves.
type Record struct {
	Hash        string
	Purity      *bool
	Type        string
	Description string
}

// ParseFlag interprets a raw purity cell. Anything that is not a recognizable
// boolean is treated as absent, the same as an empty cell.
func ParseFlag(s string) *bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "1", "yes":
		v := true
		return &v
	case "false", "f", "0", "no":
		v := false
		return &v
	}
	return nil
}

// MinHashLength is the shortest commit hash accepted from the raw dataset;
// shorter values are treated as corrupt rows and dropped.
const MinHashLength = 7
