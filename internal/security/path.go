// Package security confines form file access to the configured form directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FormDirectory resolves user supplied form paths inside one directory
type FormDirectory struct {
	root string
}

// NewFormDirectory creates a resolver rooted at dir
func NewFormDirectory(dir string) (*FormDirectory, error) {
	if dir == "" {
		return nil, fmt.Errorf("form directory cannot be empty")
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve form directory: %w", err)
	}

	return &FormDirectory{root: filepath.Clean(absDir)}, nil
}

// Root returns the absolute form directory
func (d *FormDirectory) Root() string {
	return d.root
}

// Resolve turns path into an absolute path inside the form directory.
// Relative paths are taken relative to the directory.
func (d *FormDirectory) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(d.root, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	if !d.Contains(absPath) {
		return "", fmt.Errorf("path is outside form directory: %s", path)
	}

	return absPath, nil
}

// Contains reports whether an absolute, cleaned path lies inside the
// directory, both as written and with every symlink along it evaluated
func (d *FormDirectory) Contains(path string) bool {
	realRoot := d.root
	if resolved, err := filepath.EvalSymlinks(d.root); err == nil {
		realRoot = resolved
	}

	resolved, err := realPath(path)
	if err != nil {
		return false
	}

	return within(path, d.root, realRoot) && within(resolved, d.root, realRoot)
}

// realPath evaluates symlinks in path. Trailing components that do not
// exist yet are kept as written below their nearest existing ancestor.
func realPath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if _, lerr := os.Lstat(path); lerr == nil {
		// Present but unresolvable: a dangling or looping link.
		return "", err
	}

	parent := filepath.Dir(path)
	if parent == path {
		return path, nil
	}
	realParent, err := realPath(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(realParent, filepath.Base(path)), nil
}

func within(path string, roots ...string) bool {
	for _, root := range roots {
		if path == root {
			return true
		}
		prefix := root
		if !strings.HasSuffix(prefix, string(filepath.Separator)) {
			prefix += string(filepath.Separator)
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
