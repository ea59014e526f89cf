package project

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Files walks the project root and returns root-relative, slash-separated
// file paths. VCS metadata and build output directories are skipped.
func (h *Handle) Files() ([]string, error) {
	root := h.FS.Root()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", ".hg", ".svn", "node_modules", "vendor", "target", "build", ".next", ".cache":
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// FilesWithExtensions filters Files down to the given extensions,
// case-insensitive, with or without a leading dot.
func (h *Handle) FilesWithExtensions(exts []string) ([]string, error) {
	if len(exts) == 0 {
		return nil, nil
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	if len(allowed) == 0 {
		return nil, nil
	}

	all, err := h.Files()
	if err != nil {
		return nil, err
	}
	files := all[:0]
	for _, path := range all {
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := allowed[ext]; ok {
			files = append(files, path)
		}
	}
	return files, nil
}
