// Package ignore provides gitignore-based file filtering using go-git
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Matcher filters paths that template sync should never walk: VCS metadata,
// gitignored build output, and anything listed in .tplsyncignore.
type Matcher struct {
	root    string
	matcher gitignore.Matcher
}

// NewMatcher creates a matcher rooted at repoRoot with layered patterns:
// 1. built-in exclusions (.git, the lockfile's temp files)
// 2. .gitignore and related git ignore files
// 3. .tplsyncignore (repo-level overrides)
func NewMatcher(repoRoot string) (*Matcher, error) {
	fs := osfs.New(repoRoot)

	var allPatterns []gitignore.Pattern

	defaultPatterns := []string{".git/**", "*.tmp"}
	for _, pattern := range defaultPatterns {
		allPatterns = append(allPatterns, gitignore.ParsePattern(pattern, nil))
	}

	// ReadPatterns with nil reads .gitignore, global excludes, and .git/info/exclude
	if gitPatterns, err := gitignore.ReadPatterns(fs, nil); err == nil {
		allPatterns = append(allPatterns, gitPatterns...)
	}

	if overrides, err := readIgnoreFile(filepath.Join(repoRoot, ".tplsyncignore")); err == nil {
		for _, pattern := range overrides {
			allPatterns = append(allPatterns, gitignore.ParsePattern(pattern, nil))
		}
	}

	return &Matcher{
		root:    repoRoot,
		matcher: gitignore.NewMatcher(allPatterns),
	}, nil
}

// readIgnoreFile reads patterns from a .tplsyncignore file
func readIgnoreFile(path string) ([]string, error) {
	cleaned := filepath.Clean(path)
	if !strings.HasSuffix(cleaned, string(os.PathSeparator)+".tplsyncignore") {
		return nil, os.ErrNotExist
	}
	content, err := os.ReadFile(cleaned) // #nosec G304 -- path cleaned and suffix-checked
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}

// IsIgnored checks if a repo-relative file path should be excluded
func (m *Matcher) IsIgnored(relPath string) bool {
	parts := splitPath(filepath.ToSlash(relPath))
	if len(parts) == 0 {
		return false
	}
	return m.matcher.Match(parts, false)
}

// IsIgnoredDir checks if a repo-relative directory should be skipped entirely
func (m *Matcher) IsIgnoredDir(relPath string) bool {
	parts := splitPath(filepath.ToSlash(relPath))
	if len(parts) == 0 {
		return false
	}
	return m.matcher.Match(parts, true)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}
