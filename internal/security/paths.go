// Package security guards the work directory against keys and output paths
// that would make the analysis read or write outside of it.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafeKey is returned for directory keys that are not a single plain
// path element.
var ErrUnsafeKey = errors.New("unsafe key")

// ErrOutsideDirectory is returned when a path resolves outside the
// directory it must stay in.
var ErrOutsideDirectory = errors.New("path outside directory")

const maxKeyLen = 128

// ValidateKey checks that an instrument or observation key can be used as
// one path element below the work directory. Only ASCII letters, digits,
// dot, underscore and dash are allowed, and the key may not start with a
// dot.
func ValidateKey(key string) error {
	if key == "" || len(key) > maxKeyLen {
		return fmt.Errorf("%w: %q", ErrUnsafeKey, key)
	}
	if key[0] == '.' {
		return fmt.Errorf("%w: %q starts with a dot", ErrUnsafeKey, key)
	}
	for _, r := range key {
		if !keyRune(r) {
			return fmt.Errorf("%w: %q contains %q", ErrUnsafeKey, key, r)
		}
	}
	return nil
}

func keyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	}
	return false
}

// SanitizeKey maps an arbitrary label onto a string ValidateKey accepts.
// Runs of disallowed characters become one underscore; an empty result is
// "unknown".
func SanitizeKey(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxKeyLen {
			break
		}
		if keyRune(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// ValidatePathWithinDirectory checks that filePath resolves inside dir.
// Symlinks are resolved on the longest existing prefix of filePath, so a
// link inside dir pointing elsewhere is rejected even for files that do
// not exist yet.
func ValidatePathWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory path: %w", err)
	}
	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalDir, resolveExisting(absPath))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutsideDirectory, filePath, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s escapes %s", ErrOutsideDirectory, filePath, dir)
	}
	return nil
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of an
// absolute path and re-appends the rest.
func resolveExisting(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}
	for p := absPath; ; {
		parent := filepath.Dir(p)
		if parent == p {
			return absPath
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rest, _ := filepath.Rel(parent, absPath)
			return filepath.Join(resolved, rest)
		}
		p = parent
	}
}

// ValidatePathWithinAllowedDirs accepts filePath if it lies in any of dirs.
func ValidatePathWithinAllowedDirs(filePath string, dirs []string) error {
	if len(dirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}
	for _, dir := range dirs {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be within one of %v", ErrOutsideDirectory, filePath, dirs)
}

// ValidateOutputPath checks a plot or export destination. It must be in
// the work directory, the current directory or the temp directory.
func ValidateOutputPath(filePath, workDir string) error {
	dirs := []string{os.TempDir()}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if workDir != "" {
		dirs = append(dirs, workDir)
	}
	return ValidatePathWithinAllowedDirs(filePath, dirs)
}
