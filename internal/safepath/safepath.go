// Package safepath guards every client-driven filesystem access against
// escaping the media root, including escapes through symlinks.
package safepath

import (
	"os"
	"path/filepath"
	"strings"
)

// IsSafe reports whether requested, after absolute-path normalization and
// symlink resolution of both inputs, still lives under base. Any resolution
// failure that leaves the relationship unprovable denies access.
func IsSafe(base, requested string) bool {
	realBase, err := resolve(base)
	if err != nil {
		return false
	}
	realReq, err := resolve(requested)
	if err != nil {
		return false
	}
	return contains(realBase, realReq)
}

// resolve returns the canonical absolute path with symlinks evaluated. For a
// path whose leaf does not exist yet, the deepest existing ancestor is
// resolved and the remaining components re-appended, so a dangling name under
// a real directory still canonicalizes.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	// Walk up to the nearest existing ancestor.
	var tail []string
	dir := abs
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{real}, tail...)...), nil
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}
}

// contains reports whether target equals base or is a descendant of it.
func contains(base, target string) bool {
	if base == target {
		return true
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
