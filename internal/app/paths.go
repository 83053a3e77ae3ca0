package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: expand %s: %w", ErrPathResolution, p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// resolveRoot expands, checks and canonicalizes an image root directory.
func resolveRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: images root is empty", ErrPathResolution)
	}
	expanded, err := expandHome(root)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(expanded); err != nil {
		return "", fmt.Errorf("%w: images root %q: %w", ErrPathResolution, root, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("%w: images root %q: %w", ErrPathResolution, root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: images root %q: %w", ErrPathResolution, root, err)
	}
	return resolved, nil
}

// resolveImage keeps absolute references and joins relative ones to root.
func resolveImage(root, ref string) string {
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(root, ref)
}
