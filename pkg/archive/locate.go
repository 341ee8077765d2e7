package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultOutputPattern matches the canonical result file among retrieved
// artifacts, per the platform worker's naming convention.
const DefaultOutputPattern = "output*"

// ErrNoOutput indicates no retrieved file matched the output pattern.
var ErrNoOutput = errors.New("no file matching the output naming convention")

// LocateOutput finds the result file in dir by glob pattern and renames
// it to canonicalName within the same directory, returning the final path.
//
// When several files match, the lexicographically smallest name wins.
// Filesystem iteration order varies across platforms; sorting makes the
// choice deterministic.
func LocateOutput(dir, pattern, canonicalName string) (string, error) {
	if pattern == "" {
		pattern = DefaultOutputPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return "", fmt.Errorf("invalid output pattern: %s", pattern)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir: %w", err)
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == canonicalName {
			continue
		}
		ok, err := doublestar.Match(pattern, entry.Name())
		if err != nil {
			return "", fmt.Errorf("match %s: %w", entry.Name(), err)
		}
		if ok {
			matches = append(matches, entry.Name())
		}
	}

	if len(matches) == 0 {
		// The canonical file may already be in place (e.g. a retried
		// retrieval after a partial failure).
		canonical := filepath.Join(dir, canonicalName)
		if info, err := os.Stat(canonical); err == nil && info.Mode().IsRegular() {
			return canonical, nil
		}
		return "", fmt.Errorf("%w (pattern %q in %s)", ErrNoOutput, pattern, dir)
	}

	sort.Strings(matches)
	src := filepath.Join(dir, matches[0])
	dst := filepath.Join(dir, canonicalName)
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("rename %s: %w", matches[0], err)
	}
	return dst, nil
}
