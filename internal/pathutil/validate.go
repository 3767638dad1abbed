// Package pathutil confines client-supplied paths to a set of root folders.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoots is matched by Confine errors for paths that escape every
// root.
var ErrOutsideRoots = errors.New("path is outside allowed directories")

// Redact shortens a path to .../<parent>/<base> for error messages.
func Redact(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	base := filepath.Base(cleaned)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// Confine resolves path (relative paths against the current directory,
// symlinks followed as far as they exist) and returns the resolved absolute
// path when it lies inside one of roots.
func Confine(path string, roots []string) (string, error) {
	switch {
	case path == "":
		return "", fmt.Errorf("path is empty")
	case strings.ContainsRune(path, '\x00'):
		return "", fmt.Errorf("path contains null byte")
	case len(roots) == 0:
		return "", fmt.Errorf("no allowed directories configured")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %s: %w", Redact(path), err)
	}
	resolved, err := resolve(abs)
	if err != nil {
		return "", err
	}

	for _, root := range roots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rootResolved, err := resolve(rootAbs)
		if err != nil {
			continue
		}
		if within(resolved, rootResolved) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideRoots, Redact(abs))
}

// resolve follows symlinks on the longest existing prefix of an absolute
// path and re-appends the rest.
func resolve(abs string) (string, error) {
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		return r, nil
	}
	parent := filepath.Dir(abs)
	if parent == abs {
		return "", fmt.Errorf("cannot resolve %s", Redact(abs))
	}
	r, err := resolve(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(r, filepath.Base(abs)), nil
}

func within(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, string(os.PathSeparator))+string(os.PathSeparator))
}
