// Package security validates filesystem paths before the server or CLI
// writes grid exports to them, and sanitizes run labels before they are
// embedded in file names.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateWithinDir checks that path resolves to a location inside dir.
// Both sides are canonicalized through EvalSymlinks, so a symlink planted
// inside dir cannot redirect a write outside it.
func ValidateWithinDir(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}

	canonicalPath := canonicalize(absPath)
	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("path is outside directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", path, dir)
	}
	return nil
}

// canonicalize resolves symlinks in absPath. The path itself usually does
// not exist yet (we are about to create it), so on failure we walk up to
// the nearest existing ancestor, resolve that, and rejoin the remainder.
// This catches attacks of the form dir/evil-symlink/new.vxg where
// evil-symlink points outside dir.
func canonicalize(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}

	check := absPath
	for {
		parent := filepath.Dir(check)
		if parent == check {
			// Reached the root without finding an existing ancestor.
			return absPath
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, _ := filepath.Rel(parent, absPath)
			return filepath.Join(resolved, rel)
		}
		check = parent
	}
}

// ValidateWithinDirs checks that path is inside at least one of the given
// directories.
func ValidateWithinDirs(path string, dirs []string) error {
	if len(dirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}
	for _, dir := range dirs {
		if err := ValidateWithinDir(path, dir); err == nil {
			return nil
		}
	}
	return fmt.Errorf("path must be within one of the allowed directories: %v", dirs)
}

// ValidateExportPath checks a destination for a grid or metadata export.
// Writes are confined to the configured export directory plus the system
// temp directory. An empty exportDir falls back to the working directory.
func ValidateExportPath(path, exportDir string) error {
	if exportDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		exportDir = cwd
	}
	return ValidateWithinDirs(path, []string{exportDir, os.TempDir()})
}

// SanitizeFilename makes a safe filename fragment from a run label. Any
// character outside ASCII letters, digits, dot, underscore and dash becomes
// an underscore, runs of underscores collapse, and the result is trimmed to
// a bounded length.
func SanitizeFilename(s string) string {
	const maxLen = 128

	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "grid"
	}
	return out
}
