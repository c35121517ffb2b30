// Package resolver locates imported KDL files, caches their contents and
// tracks which files are being loaded so import cycles can be refused.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extension is appended to import paths that have none.
const Extension = ".kdl"

// Resolver maps import paths to files. It is not safe for concurrent use;
// each compile owns one.
type Resolver struct {
	searchPaths []string          // tried after the importing file's directory
	overlay     map[string]string // in-memory files, keyed by clean path
	cache       map[string]string // clean path → source
	loading     map[string]bool   // files on the current import chain
	done        map[string]bool   // files fully processed
	chain       []string
}

// New creates a Resolver that also looks in searchPaths.
func New(searchPaths ...string) *Resolver {
	return &Resolver{
		searchPaths: append([]string(nil), searchPaths...),
		overlay:     make(map[string]string),
		cache:       make(map[string]string),
		loading:     make(map[string]bool),
		done:        make(map[string]bool),
	}
}

// AddFile registers an in-memory file. Overlay files shadow the disk and
// are how the playground and tests supply sources.
func (r *Resolver) AddFile(path, src string) {
	r.overlay[clean(path)] = src
}

// SearchPaths returns the configured search directories.
func (r *Resolver) SearchPaths() []string {
	return append([]string(nil), r.searchPaths...)
}

func clean(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (r *Resolver) exists(path string) bool {
	if _, ok := r.overlay[path]; ok {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Resolve converts an import path to a clean file path. Relative paths are
// tried against currentDir first, then each search path in order.
func (r *Resolver) Resolve(importPath, currentDir string) (string, error) {
	if importPath == "" {
		return "", fmt.Errorf("empty import path")
	}
	if filepath.Ext(importPath) == "" {
		importPath += Extension
	}

	if filepath.IsAbs(importPath) {
		p := clean(importPath)
		if r.exists(p) {
			return p, nil
		}
		return "", fmt.Errorf("file %s not found", importPath)
	}

	dirs := append([]string{currentDir}, r.searchPaths...)
	var tried []string
	for _, dir := range dirs {
		p := clean(filepath.Join(dir, importPath))
		if r.exists(p) {
			return p, nil
		}
		tried = append(tried, p)
	}
	return "", fmt.Errorf("file %s not found (tried %s)", importPath, strings.Join(tried, ", "))
}

// Read returns the contents of a resolved path, reading it once.
func (r *Resolver) Read(path string) (string, error) {
	path = clean(path)
	if src, ok := r.cache[path]; ok {
		return src, nil
	}
	if src, ok := r.overlay[path]; ok {
		r.cache[path] = src
		return src, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	r.cache[path] = string(data)
	return string(data), nil
}

// Loading reports whether path is on the current import chain.
func (r *Resolver) Loading(path string) bool {
	return r.loading[clean(path)]
}

// Done reports whether path has already been processed.
func (r *Resolver) Done(path string) bool {
	return r.done[clean(path)]
}

// Begin marks path as being loaded.
func (r *Resolver) Begin(path string) {
	path = clean(path)
	r.loading[path] = true
	r.chain = append(r.chain, path)
}

// Finish ends the load of path started by Begin.
func (r *Resolver) Finish(path string) {
	path = clean(path)
	delete(r.loading, path)
	r.done[path] = true
	if n := len(r.chain); n > 0 && r.chain[n-1] == path {
		r.chain = r.chain[:n-1]
	}
}

// Chain describes the current import chain ending in path, for cycle
// diagnostics.
func (r *Resolver) Chain(path string) string {
	path = clean(path)
	parts := []string{}
	start := -1
	for i, p := range r.chain {
		if p == path {
			start = i
			break
		}
	}
	if start >= 0 {
		for _, p := range r.chain[start:] {
			parts = append(parts, filepath.Base(p))
		}
	}
	return strings.Join(append(parts, filepath.Base(path)), " -> ")
}

// Files lists every path read so far, sorted.
func (r *Resolver) Files() []string {
	out := make([]string, 0, len(r.cache))
	for p := range r.cache {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
