// Package gitio wraps the git operations the pipeline needs: keeping local
// clones current and extracting diffs and commit messages.
package gitio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Client runs git against local clones kept under Root. All methods shell out
// to the git binary; the caller's context bounds each invocation.
type Client struct {
	Root string
}

// NewClient returns a Client cloning into root, creating it if needed.
func NewClient(root string) (*Client, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating repository root: %w", err)
	}
	return &Client{Root: root}, nil
}

// LocalPath maps a clone URL to its directory under Root.
func (c *Client) LocalPath(repoURL string) string {
	name := strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return filepath.Join(c.Root, name)
}

// EnsureCloned clones repoURL if no local copy exists, otherwise fetches all
// remotes. A failed fetch on an existing clone is reported but not fatal: the
// historical commits a run needs are almost always already present, and every
// hash is verified with CommitExists before use.
func (c *Client) EnsureCloned(ctx context.Context, repoURL string) (string, error) {
	path := c.LocalPath(repoURL)

	if _, err := os.Stat(path); err == nil {
		if err := c.run(ctx, path, "fetch", "--all"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: fetch failed for %s: %v\n", repoURL, err)
		}
		return path, nil
	}

	if err := c.run(ctx, "", "clone", repoURL, path); err != nil {
		return "", fmt.Errorf("cloning %s: %w", repoURL, err)
	}
	return path, nil
}

// CommitExists reports whether hash resolves to a commit in the clone.
func (c *Client) CommitExists(ctx context.Context, repoPath, hash string) bool {
	return c.run(ctx, repoPath, "cat-file", "-e", hash+"^{commit}") == nil
}

// Diff returns the textual diff between two commits.
func (c *Client) Diff(ctx context.Context, repoPath, before, current string) (string, error) {
	out, err := c.output(ctx, repoPath, "diff", before, current)
	if err != nil {
		return "", fmt.Errorf("diffing %s..%s: %w", before, current, err)
	}
	return decodeGitOutput(out), nil
}

// Message returns the full commit message for hash.
func (c *Client) Message(ctx context.Context, repoPath, hash string) (string, error) {
	out, err := c.output(ctx, repoPath, "log", "--format=%B", "-n", "1", hash)
	if err != nil {
		return "", fmt.Errorf("reading message of %s: %w", hash, err)
	}
	return strings.TrimSpace(decodeGitOutput(out)), nil
}

func (c *Client) run(ctx context.Context, dir string, args ...string) error {
	_, err := c.output(ctx, dir, args...)
	return err
}

func (c *Client) output(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("git %s: %s", args[0], firstLine(exitErr.Stderr))
		}
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	return out, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// decodeGitOutput tolerates repositories with mixed encodings: valid UTF-8
// passes through untouched, anything else is read as Latin-1 so no diff byte
// is ever lost to a decode error.
func decodeGitOutput(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
