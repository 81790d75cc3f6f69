// Package corpus loads the commit dataset driving a classification run: the
// CSV listing (repository, before-hash, current-hash) rows for every eligible
// commit pair.
package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/refjudge/refjudge/internal/classify"
)

// Commit is one eligible commit pair from the dataset.
type Commit struct {
	Repository  string // clone URL
	Project     string // short project name
	HashBefore  string
	HashCurrent string
}

// Context converts a corpus row into the commit context handed to the judge
// pipeline. The commit message is filled in later by the diff extractor.
func (c Commit) Context() classify.CommitContext {
	return classify.CommitContext{
		Repository:  c.Repository,
		HashBefore:  c.HashBefore,
		HashCurrent: c.HashCurrent,
	}
}

// Key returns the identity the verdict store uses for this commit.
func (c Commit) Key() classify.CommitKey {
	return classify.CommitKey{Repository: c.Repository, Hash: c.HashCurrent}
}

// Dataset is an ordered list of eligible commits. Order is the file order,
// which selection helpers preserve.
type Dataset struct {
	Commits []Commit
}

// Load reads the commit dataset from a comma-delimited CSV with a header
// naming the project, project_name, commit1, and commit2 columns.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening commit dataset: %w", err)
	}
	defer f.Close()

	ds, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading commit dataset %s: %w", path, err)
	}
	return ds, nil
}

// Read parses a dataset from r.
func Read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("dataset is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	repoCol, ok := cols["project"]
	if !ok {
		return nil, fmt.Errorf("dataset has no project column")
	}
	beforeCol, ok := cols["commit1"]
	if !ok {
		return nil, fmt.Errorf("dataset has no commit1 column")
	}
	currentCol, ok := cols["commit2"]
	if !ok {
		return nil, fmt.Errorf("dataset has no commit2 column")
	}
	nameCol, hasName := cols["project_name"]

	var commits []Commit
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		c := Commit{
			Repository:  strings.TrimSpace(field(row, repoCol)),
			HashBefore:  strings.TrimSpace(field(row, beforeCol)),
			HashCurrent: strings.TrimSpace(field(row, currentCol)),
		}
		if hasName {
			c.Project = strings.TrimSpace(field(row, nameCol))
		}
		if c.Project == "" {
			c.Project = projectFromURL(c.Repository)
		}
		if c.Repository == "" || c.HashBefore == "" || c.HashCurrent == "" {
			continue
		}
		commits = append(commits, c)
	}
	return &Dataset{Commits: commits}, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func projectFromURL(url string) string {
	url = strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

// Filter keeps the last perProject commits of each project and then removes
// duplicate current-hashes, first occurrence wins. The raw dataset repeats a
// commit once per detected refactoring, so deduplication is mandatory before
// a run: the store enforces one verdict per commit, and duplicate rows would
// just burn judge calls.
func (d *Dataset) Filter(perProject int) *Dataset {
	counts := make(map[string]int)
	for _, c := range d.Commits {
		counts[c.Project]++
	}

	seenPerProject := make(map[string]int)
	seenHash := make(map[string]struct{})
	var kept []Commit
	for _, c := range d.Commits {
		seenPerProject[c.Project]++
		if perProject > 0 && seenPerProject[c.Project] <= counts[c.Project]-perProject {
			continue
		}
		if _, dup := seenHash[c.HashCurrent]; dup {
			continue
		}
		seenHash[c.HashCurrent] = struct{}{}
		kept = append(kept, c)
	}
	return &Dataset{Commits: kept}
}

// MatchProjects keeps commits whose project name matches any of the glob
// patterns. An empty pattern list keeps everything.
func (d *Dataset) MatchProjects(patterns []string) (*Dataset, error) {
	if len(patterns) == 0 {
		return d, nil
	}
	var kept []Commit
	for _, c := range d.Commits {
		for _, pattern := range patterns {
			ok, err := doublestar.Match(pattern, c.Project)
			if err != nil {
				return nil, fmt.Errorf("invalid project pattern %q: %w", pattern, err)
			}
			if ok {
				kept = append(kept, c)
				break
			}
		}
	}
	return &Dataset{Commits: kept}, nil
}

// KeepHashes keeps only commits whose current hash is in the given set, in
// dataset order. Used to target the commits the reference tool flagged.
func (d *Dataset) KeepHashes(hashes map[string]struct{}) *Dataset {
	var kept []Commit
	for _, c := range d.Commits {
		if _, ok := hashes[c.HashCurrent]; ok {
			kept = append(kept, c)
		}
	}
	return &Dataset{Commits: kept}
}

// First returns up to n commits from the front of the dataset; n <= 0 returns
// everything.
func (d *Dataset) First(n int) []Commit {
	if n <= 0 || n >= len(d.Commits) {
		return d.Commits
	}
	return d.Commits[:n]
}

// Shuffle returns a copy of the dataset in random order.
func (d *Dataset) Shuffle(rng *rand.Rand) *Dataset {
	shuffled := make([]Commit, len(d.Commits))
	copy(shuffled, d.Commits)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return &Dataset{Commits: shuffled}
}

// DuplicateStats summarizes commit2 duplication in the raw dataset.
type DuplicateStats struct {
	TotalRows        int
	UniqueCommits    int
	DuplicatedHashes int
	MaxDuplicates    int
}

// Duplicates reports how much the raw dataset repeats current-hashes.
func (d *Dataset) Duplicates() DuplicateStats {
	counts := make(map[string]int)
	for _, c := range d.Commits {
		counts[c.HashCurrent]++
	}

	stats := DuplicateStats{
		TotalRows:     len(d.Commits),
		UniqueCommits: len(counts),
	}
	for _, n := range counts {
		if n > 1 {
			stats.DuplicatedHashes++
			if n > stats.MaxDuplicates {
				stats.MaxDuplicates = n
			}
		}
	}
	return stats
}
