// Package security holds path and filename validation shared by code that
// writes files on behalf of an HTTP request.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// canonicalPath resolves symlinks in absPath, falling back to resolving the
// nearest existing parent when the file itself does not exist yet. Without
// the fallback a write through a symlinked directory (/tmp/link/out.csv where
// link points elsewhere) would pass a containment check against the
// unresolved path.
func canonicalPath(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}

	for dir := filepath.Dir(absPath); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, relErr := filepath.Rel(dir, absPath)
			if relErr != nil {
				return absPath
			}
			return filepath.Join(resolved, rel)
		}
		if dir == filepath.Dir(dir) {
			return absPath
		}
	}
}

// ValidatePathWithinDirectory reports whether filePath stays inside dir once
// relative components and symlinks are resolved. An error means the path
// escapes dir, or that either side could not be resolved.
func ValidatePathWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}
	resolvedDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(resolvedDir, canonicalPath(absPath))
	if err != nil {
		return fmt.Errorf("path outside directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path %s escapes %s", filePath, dir)
	}
	return nil
}

// ValidateExportPath accepts paths that land in the OS temp directory or the
// current working directory. Export code builds its own output paths, so
// anything outside those two roots means a constructed path went wrong.
func ValidateExportPath(filePath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	for _, root := range []string{os.TempDir(), cwd} {
		if ValidatePathWithinDirectory(filePath, root) == nil {
			return nil
		}
	}
	return fmt.Errorf("export path %s is outside the temp and working directories", filePath)
}

// SanitizeFilename reduces an arbitrary identifier to a string safe to embed
// in a file name: ASCII letters, digits, dots, dashes and underscores, with
// runs of anything else collapsed to a single underscore. Results are capped
// at 128 characters and never empty.
func SanitizeFilename(s string) string {
	const maxLen = 128

	var b strings.Builder
	prevUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
