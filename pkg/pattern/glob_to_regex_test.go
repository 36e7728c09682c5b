package pattern

import "testing"

func TestCompileGlob(t *testing.T) {
	tests := []struct {
		name    string
		glob    string
		match   []string
		noMatch []string
	}{
		{
			name:    "exact file",
			glob:    "Dockerfile",
			match:   []string{"Dockerfile"},
			noMatch: []string{"sub/Dockerfile", "Dockerfile.dev"},
		},
		{
			name:    "single star stays in segment",
			glob:    "*.yml",
			match:   []string{"ci.yml", "a.yml"},
			noMatch: []string{".github/ci.yml", "ci.yaml"},
		},
		{
			name:    "double star crosses segments",
			glob:    ".github/**",
			match:   []string{".github/workflows/ci.yml", ".github/CODEOWNERS"},
			noMatch: []string{"github/ci.yml"},
		},
		{
			name:    "leading double star",
			glob:    "**/Makefile",
			match:   []string{"Makefile", "tools/Makefile", "a/b/Makefile"},
			noMatch: []string{"Makefile.am"},
		},
		{
			name:    "question mark",
			glob:    "v?.txt",
			match:   []string{"v1.txt", "vX.txt"},
			noMatch: []string{"v12.txt", "v/.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := CompileGlob(tt.glob)
			if err != nil {
				t.Fatalf("CompileGlob(%q) failed: %v", tt.glob, err)
			}
			for _, p := range tt.match {
				if !re.MatchString(p) {
					t.Errorf("pattern %q should match %q", tt.glob, p)
				}
			}
			for _, p := range tt.noMatch {
				if re.MatchString(p) {
					t.Errorf("pattern %q should not match %q", tt.glob, p)
				}
			}
		})
	}
}

func TestGlobToRegexpErrors(t *testing.T) {
	if _, err := GlobToRegexp(""); err != ErrEmptyPattern {
		t.Errorf("empty glob: got %v, want ErrEmptyPattern", err)
	}
	if _, err := GlobToRegexp("!excluded"); err != ErrNegationNotSupported {
		t.Errorf("negated glob: got %v, want ErrNegationNotSupported", err)
	}
}

func TestIsLiteral(t *testing.T) {
	tests := []struct {
		glob    string
		literal bool
	}{
		{"pyproject.toml", true},
		{".github/workflows/ci.yml", true},
		{"src/**", false},
		{"*.md", false},
		{"v?.txt", false},
	}

	for _, tt := range tests {
		if got := IsLiteral(tt.glob); got != tt.literal {
			t.Errorf("IsLiteral(%q) = %v, want %v", tt.glob, got, tt.literal)
		}
	}
}
