package safeio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCleanUserPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		hasError bool
	}{
		{
			name:     "simple path",
			input:    "file.txt",
			expected: "file.txt",
			hasError: false,
		},
		{
			name:     "relative path",
			input:    "./subdir/file.txt",
			expected: "subdir/file.txt",
			hasError: false,
		},
		{
			name:     "path with traversal",
			input:    "../../../etc/passwd",
			expected: "",
			hasError: true,
		},
		{
			name:     "path with traversal in middle",
			input:    "valid/../../../etc/passwd",
			expected: "",
			hasError: true,
		},
		{
			name:     "path with dots but no traversal",
			input:    "file.with.dots.txt",
			expected: "file.with.dots.txt",
			hasError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanUserPath(tt.input)
			if tt.hasError {
				if err == nil {
					t.Errorf("expected error for input %q, got none", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("CleanUserPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.txt")

	if err := WriteFileAtomic(path, []byte("first")); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("content = %q, want %q", data, "first")
	}

	// Overwrite preserves custom mode
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second")); err != nil {
		t.Fatalf("WriteFileAtomic overwrite failed: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if st.Mode()&0o777 != 0o600 {
		t.Errorf("mode = %o, want 600", st.Mode()&0o777)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}

	// No stray temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected single file in dir, got %d entries", len(entries))
	}
}

func TestRemoveFilePruneEmpty(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	path := filepath.Join(sub, "gone.txt")
	if err := WriteFileAtomic(path, []byte("x")); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	if err := RemoveFilePruneEmpty(path); err != nil {
		t.Fatalf("RemoveFilePruneEmpty failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists after removal")
	}
	if _, err := os.Stat(sub); !os.IsNotExist(err) {
		t.Errorf("empty parent directory not pruned")
	}

	// Removing a missing file is not an error
	if err := RemoveFilePruneEmpty(path); err != nil {
		t.Errorf("removal of missing file returned error: %v", err)
	}
}

func TestReadFileContained(t *testing.T) {
	dir := t.TempDir()
	inside := filepath.Join(dir, "ok.txt")
	if err := os.WriteFile(inside, []byte("inside"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	data, err := ReadFileContained(dir, inside)
	if err != nil {
		t.Fatalf("ReadFileContained failed for contained path: %v", err)
	}
	if string(data) != "inside" {
		t.Errorf("content = %q", data)
	}

	if _, err := ReadFileContained(dir, filepath.Join(dir, "..", "escape.txt")); err == nil {
		t.Error("expected error for path outside base directory")
	}
}
