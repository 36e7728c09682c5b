package annotate

import (
	"errors"
	"strings"
	"testing"

	"github.com/fleetform/tplsync/pkg/config"
)

func newTestParser() *Parser {
	return NewParser(config.DefaultCommentPrefixes())
}

func TestParseSingleBlock(t *testing.T) {
	content := strings.Join([]string{
		"name: ci",
		"# tplsync:begin id=steps mode=ignore",
		"steps: local",
		"# tplsync:end",
		"after: true",
	}, "\n")

	blocks, err := newTestParser().Parse("ci.yml", content)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	b := blocks[0]
	if b.ID != "steps" || b.Mode != ModeIgnore {
		t.Errorf("block = %+v", b)
	}
	if b.Start != 1 || b.End != 3 {
		t.Errorf("block span = [%d, %d], want [1, 3] (markers included)", b.Start, b.End)
	}
}

func TestParseCommentSyntaxes(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
	}{
		{
			name:    "hash comments",
			path:    "Dockerfile",
			content: "FROM alpine\n# tplsync:begin mode=protect\nRUN custom\n# tplsync:end\n",
		},
		{
			name:    "slash comments",
			path:    "main.go",
			content: "package main\n// tplsync:begin mode=protect\nvar x = 1\n// tplsync:end\n",
		},
		{
			name:    "html comments",
			path:    "README.md",
			content: "# Title\n<!-- tplsync:begin mode=protect -->\nlocal text\n<!-- tplsync:end -->\n",
		},
		{
			name:    "unknown extension bare markers",
			path:    "data.unknownext",
			content: "a\ntplsync:begin mode=protect\nb\ntplsync:end\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, err := newTestParser().Parse(tt.path, tt.content)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(blocks) != 1 {
				t.Fatalf("expected 1 block, got %d", len(blocks))
			}
			if blocks[0].Mode != ModeProtect {
				t.Errorf("mode = %q, want protect", blocks[0].Mode)
			}
		})
	}
}

func TestParseMultipleBlocks(t *testing.T) {
	content := "# tplsync:begin id=a mode=ignore\nx\n# tplsync:end\nmiddle\n# tplsync:begin id=b mode=protect\ny\n# tplsync:end\n"

	blocks, err := newTestParser().Parse("conf.yaml", content)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].ID != "a" || blocks[1].ID != "b" {
		t.Errorf("ids = %q, %q", blocks[0].ID, blocks[1].ID)
	}
	if blocks[0].Overlaps(blocks[1].Start, blocks[1].End+1) {
		t.Error("blocks must not overlap")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "missing mode",
			content: "# tplsync:begin id=x\ny\n# tplsync:end\n",
			wantMsg: "missing required mode",
		},
		{
			name:    "invalid mode",
			content: "# tplsync:begin mode=readonly\ny\n# tplsync:end\n",
			wantMsg: "invalid mode",
		},
		{
			name:    "unterminated begin",
			content: "a\n# tplsync:begin mode=ignore\nb\n",
			wantMsg: "without matching end",
		},
		{
			name:    "end without begin",
			content: "a\n# tplsync:end\n",
			wantMsg: "without matching begin",
		},
		{
			name:    "nested begin",
			content: "# tplsync:begin mode=ignore\n# tplsync:begin mode=protect\n# tplsync:end\n# tplsync:end\n",
			wantMsg: "nested",
		},
		{
			name:    "duplicate id",
			content: "# tplsync:begin id=dup mode=ignore\n# tplsync:end\n# tplsync:begin id=dup mode=ignore\n# tplsync:end\n",
			wantMsg: "duplicate block id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestParser().Parse("file.yaml", tt.content)
			if err == nil {
				t.Fatal("expected ParseError, got nil")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if !strings.Contains(pe.Msg, tt.wantMsg) {
				t.Errorf("error %q does not mention %q", pe.Msg, tt.wantMsg)
			}
			if pe.Line == 0 {
				t.Error("ParseError should carry a 1-based line number")
			}
		})
	}
}

func TestEmptyIDsNeedNotBeUnique(t *testing.T) {
	content := "# tplsync:begin mode=ignore\n# tplsync:end\n# tplsync:begin mode=ignore\n# tplsync:end\n"
	blocks, err := newTestParser().Parse("f.yaml", content)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(blocks) != 2 {
		t.Errorf("expected 2 blocks, got %d", len(blocks))
	}
}

func TestIsMarker(t *testing.T) {
	p := newTestParser()
	if !p.IsMarker("a.yml", "# tplsync:begin mode=ignore") {
		t.Error("begin marker not recognized")
	}
	if !p.IsMarker("a.yml", "  # tplsync:end") {
		t.Error("indented end marker not recognized")
	}
	if p.IsMarker("a.yml", "steps: tplsync:begin") {
		t.Error("non-comment line misrecognized as marker")
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a\n"}},
		{"a\nb", []string{"a\n", "b"}},
		{"a\nb\n", []string{"a\n", "b\n"}},
		{"\n\n", []string{"\n", "\n"}},
	}

	for _, tt := range tests {
		got := SplitLines(tt.input)
		if len(got) != len(tt.expected) {
			t.Errorf("SplitLines(%q) = %q, want %q", tt.input, got, tt.expected)
			continue
		}
		joined := strings.Join(got, "")
		if joined != tt.input {
			t.Errorf("SplitLines(%q) does not round-trip: %q", tt.input, joined)
		}
	}
}
