package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestDefaultExclusions(t *testing.T) {
	root := t.TempDir()
	m, err := NewMatcher(root)
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}

	if !m.IsIgnored(".git/config") {
		t.Error(".git contents should be ignored")
	}
	if !m.IsIgnoredDir(".git") {
		t.Error(".git directory should be skipped")
	}
	if !m.IsIgnored("stage.tmp") {
		t.Error("temp files should be ignored")
	}
	if m.IsIgnored("README.md") {
		t.Error("regular files should not be ignored by default")
	}
}

func TestGitignorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "dist/\n*.log\n")

	m, err := NewMatcher(root)
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}

	if !m.IsIgnoredDir("dist") {
		t.Error("dist/ should be skipped per .gitignore")
	}
	if !m.IsIgnored("build.log") {
		t.Error("*.log should be ignored per .gitignore")
	}
	if m.IsIgnored("src/main.go") {
		t.Error("unmatched path should not be ignored")
	}
}

func TestTplsyncignoreOverrides(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".tplsyncignore", "# comment line\nvendor/\n\nsecrets.yaml\n")

	m, err := NewMatcher(root)
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}

	if !m.IsIgnoredDir("vendor") {
		t.Error("vendor/ should be skipped per .tplsyncignore")
	}
	if !m.IsIgnored("secrets.yaml") {
		t.Error("secrets.yaml should be ignored per .tplsyncignore")
	}
	if m.IsIgnored("vendor.txt") {
		t.Error("vendor.txt should not match the vendor/ dir pattern")
	}
}
