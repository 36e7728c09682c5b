// Package snapshot provides immutable value representations of a file tree
// (path to bytes plus content hash) for one point in time. Plans are pure
// functions over three snapshots, so snapshots never touch the filesystem
// after construction.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/fleetform/tplsync/pkg/ignore"
)

// File is one file's captured content and hash.
type File struct {
	Data []byte
	Sum  string
}

// Snapshot is an immutable mapping from repository-relative slash-separated
// path to file content. Iteration order is always sorted.
type Snapshot struct {
	files map[string]File
	paths []string
}

// Hash returns the canonical content hash string for data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// New builds a snapshot from an in-memory path-to-content map. The map is
// copied; later mutation of the argument does not affect the snapshot.
func New(files map[string][]byte) *Snapshot {
	s := &Snapshot{files: make(map[string]File, len(files))}
	for p, data := range files {
		d := make([]byte, len(data))
		copy(d, data)
		s.files[filepath.ToSlash(p)] = File{Data: d, Sum: Hash(d)}
	}
	s.indexPaths()
	return s
}

// FromDir captures the file tree rooted at dir, skipping VCS metadata and
// gitignored paths. Paths are stored relative with forward slashes.
func FromDir(dir string) (*Snapshot, error) {
	absRoot, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if st, err := os.Stat(absRoot); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("snapshot root is not a directory: %s", dir)
	}

	matcher, err := ignore.NewMatcher(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to build ignore matcher: %w", err)
	}

	s := &Snapshot{files: make(map[string]File)}
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if matcher.IsIgnoredDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.IsIgnored(rel) {
			return nil
		}
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the walked root
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		s.files[rel] = File{Data: data, Sum: Hash(data)}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	s.indexPaths()
	return s, nil
}

func (s *Snapshot) indexPaths() {
	s.paths = make([]string, 0, len(s.files))
	for p := range s.files {
		s.paths = append(s.paths, p)
	}
	sort.Strings(s.paths)
}

// Paths returns the sorted list of paths in the snapshot. The returned
// slice is a copy.
func (s *Snapshot) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Get returns the file at path.
func (s *Snapshot) Get(path string) (File, bool) {
	f, ok := s.files[filepath.ToSlash(path)]
	return f, ok
}

// Contains reports whether the snapshot holds path.
func (s *Snapshot) Contains(path string) bool {
	_, ok := s.files[filepath.ToSlash(path)]
	return ok
}

// Len returns the number of files captured.
func (s *Snapshot) Len() int {
	return len(s.files)
}

// Empty is the zero-file snapshot, used as the baseline before adoption.
func Empty() *Snapshot {
	return New(nil)
}
