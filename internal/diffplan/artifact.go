package diffplan

import (
	"fmt"
	"os"
	"path/filepath"
)

// StageArtifact writes the diff for an out-of-band call to
// dir/diff_<hash>.txt and returns the path.
func StageArtifact(dir, hash, diff string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("diff_%s.txt", hash))
	if err := os.WriteFile(path, []byte(diff), 0o644); err != nil {
		return "", fmt.Errorf("writing diff artifact: %w", err)
	}
	return path, nil
}

// RemoveArtifact deletes a staged diff. Failures are reported but never block
// the run; a leftover artifact is harmless.
func RemoveArtifact(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not remove diff artifact %s: %v\n", path, err)
	}
}
