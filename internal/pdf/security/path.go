// Package security confines document and template paths to the configured
// BOM directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideDirectory is returned for paths that resolve outside the sandbox.
var ErrOutsideDirectory = errors.New("path is outside configured directory")

// PathValidator resolves caller paths against the BOM directory.
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at dir. The directory does not
// need to exist yet.
func NewPathValidator(dir string) (*PathValidator, error) {
	if dir == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute sandbox directory.
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve turns path into an absolute path inside the sandbox. Relative
// paths are taken relative to the root.
func (v *PathValidator) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("path contains a NUL byte")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	ok, err := v.Contains(abs)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrOutsideDirectory, path)
	}
	return abs, nil
}

// Contains reports whether path lies inside the sandbox, both lexically and
// after following symlinks.
func (v *PathValidator) Contains(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	clean := filepath.Clean(abs)

	realRoot := v.root
	if resolved, err := filepath.EvalSymlinks(v.root); err == nil {
		realRoot = resolved
	}

	if !within(clean, v.root) && !within(clean, realRoot) {
		return false, nil
	}

	real, err := evalExisting(clean)
	if err != nil {
		return false, err
	}
	return within(real, v.root) || within(real, realRoot), nil
}

// OutputPath derives a sibling path for a generated artifact, e.g.
// boms/kit.pdf + "_dd1750.pdf" -> boms/kit_dd1750.pdf.
func (v *PathValidator) OutputPath(source, suffix string) (string, error) {
	resolved, err := v.Resolve(source)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(resolved, filepath.Ext(resolved))
	return v.Resolve(base + suffix)
}

// evalExisting follows symlinks on the longest existing prefix of path, so
// files that are about to be written are checked through their parent.
func evalExisting(path string) (string, error) {
	rest := ""
	cur := path
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}
