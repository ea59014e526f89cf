package safeio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	// ErrNoProject is returned when no project root is configured.
	// Distinct from ErrTraversal so callers can tell "no project open"
	// apart from an actual escape attempt.
	ErrNoProject = errors.New("safeio: no project root configured")

	// ErrTraversal is returned when a path would resolve outside the root.
	ErrTraversal = errors.New("safeio: path escapes project root")

	// ErrNotFound is returned when a path resolves inside the root but
	// no file exists there.
	ErrNotFound = errors.New("safeio: file not found")
)

// SafeFS resolves paths relative to a fixed project root and refuses any
// operation that would leave it. A nil SafeFS fails every operation with
// ErrNoProject; there is no process-wide default instance, callers thread
// the value explicitly.
type SafeFS struct {
	absRoot string // absolute root with symlinks resolved
}

// NewSafeFS locks all future operations to the given root directory.
// The root path is resolved to an absolute, symlink-free directory.
func NewSafeFS(root string) (*SafeFS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ErrNoProject
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("safeio: root is not a directory")
	}
	return &SafeFS{absRoot: abs}, nil
}

// Root returns the absolute root directory bound to this SafeFS.
func (s *SafeFS) Root() string {
	if s == nil {
		return ""
	}
	return s.absRoot
}

// Resolve maps a relative user path to an absolute path under the root.
// The check is purely textual (join, clean, prefix) and runs before any
// filesystem call, so ".." escapes and absolute-path overrides are rejected
// without ever touching the disk.
func (s *SafeFS) Resolve(userPath string) (string, error) {
	if s == nil || s.absRoot == "" {
		return "", ErrNoProject
	}
	if strings.TrimSpace(userPath) == "" {
		return "", fmt.Errorf("safeio: empty path: %w", ErrTraversal)
	}
	clean := filepath.Clean(filepath.FromSlash(userPath))
	if clean == "." {
		return s.absRoot, nil
	}
	if filepath.IsAbs(clean) || (runtime.GOOS == "windows" && filepath.VolumeName(clean) != "") {
		return "", fmt.Errorf("safeio: absolute path %q: %w", userPath, ErrTraversal)
	}
	joined := filepath.Clean(filepath.Join(s.absRoot, clean))
	if !hasPathPrefix(joined, s.absRoot) {
		return "", fmt.Errorf("safeio: %q resolves outside root: %w", userPath, ErrTraversal)
	}
	return joined, nil
}

// SafeReadFile reads a file relative to the root.
func (s *SafeFS) SafeReadFile(userPath string) ([]byte, error) {
	p, err := s.Resolve(userPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("safeio: %s: %w", userPath, ErrNotFound)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("safeio: path is a directory")
	}
	return os.ReadFile(p)
}

// SafeWriteFile writes a file relative to the root, creating parent
// directories as needed and overwriting any existing file.
func (s *SafeFS) SafeWriteFile(userPath string, content []byte) error {
	p, err := s.Resolve(userPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, content, 0o644)
}

// SafeRemove deletes a file relative to the root.
func (s *SafeFS) SafeRemove(userPath string) error {
	p, err := s.Resolve(userPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("safeio: %s: %w", userPath, ErrNotFound)
		}
		return err
	}
	return os.Remove(p)
}

// SafeStat returns metadata for a file or directory under the root.
func (s *SafeFS) SafeStat(userPath string) (fs.FileInfo, error) {
	p, err := s.Resolve(userPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("safeio: %s: %w", userPath, ErrNotFound)
		}
		return nil, err
	}
	return info, nil
}

// Open implements the fs.FS interface (names use "/" separators).
func (s *SafeFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, fs.ErrInvalid
	}
	p, err := s.Resolve(filepath.FromSlash(name))
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if len(root) == 0 {
		return true
	}
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	if !strings.HasSuffix(path, sep) {
		path += sep
	}
	return strings.HasPrefix(path, root)
}
