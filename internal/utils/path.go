package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AbsPath resolves p against the working directory and collapses "." and ".." segments.
func AbsPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	return filepath.Clean(abs), nil
}

// ResolveFrom resolves ref relative to the directory dir unless it is already absolute.
func ResolveFrom(dir, ref string) string {
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}

	return filepath.Clean(filepath.Join(dir, ref))
}

// IsOption reports whether a raw argument looks like a command line option.
func IsOption(arg string) bool {
	return strings.HasPrefix(arg, "-")
}
