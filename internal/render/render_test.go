package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetform/tplsync/internal/snapshot"
	"github.com/fleetform/tplsync/internal/tplsrc"
)

func TestApplyLiteralSubstitution(t *testing.T) {
	r, err := New([]tplsrc.RenderRule{
		{Glob: "**/*.md", Find: "__PROJECT__", Replace: "{{project}}"},
	}, map[string]string{"project": "billing-api"})
	require.NoError(t, err)

	snap := snapshot.New(map[string][]byte{
		"README.md":   []byte("# __PROJECT__\n\nWelcome to __PROJECT__.\n"),
		"main.go":     []byte("package main // __PROJECT__ untouched\n"),
		"docs/use.md": []byte("run __PROJECT__ --help\n"),
	})

	out := r.Apply(snap)

	f, _ := out.Get("README.md")
	assert.Equal(t, "# billing-api\n\nWelcome to billing-api.\n", string(f.Data))
	f, _ = out.Get("docs/use.md")
	assert.Equal(t, "run billing-api --help\n", string(f.Data))

	// glob did not match, bytes unchanged
	f, _ = out.Get("main.go")
	assert.Equal(t, "package main // __PROJECT__ untouched\n", string(f.Data))
}

func TestApplyRegexSubstitution(t *testing.T) {
	r, err := New([]tplsrc.RenderRule{
		{Glob: "*.toml", Find: `version = "[^"]*"`, Replace: `version = "{{version}}"`, Regex: true},
	}, map[string]string{"version": "2.0.0"})
	require.NoError(t, err)

	snap := snapshot.New(map[string][]byte{
		"app.toml": []byte("version = \"0.0.1\"\nname = \"x\"\n"),
	})

	f, _ := r.Apply(snap).Get("app.toml")
	assert.Equal(t, "version = \"2.0.0\"\nname = \"x\"\n", string(f.Data))
}

func TestMissingValueFailsLoudly(t *testing.T) {
	_, err := New([]tplsrc.RenderRule{
		{Glob: "**", Find: "x", Replace: "{{undefined_value}}"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined_value")
}

func TestNoRulesReturnsSameSnapshot(t *testing.T) {
	r, err := New(nil, nil)
	require.NoError(t, err)
	snap := snapshot.New(map[string][]byte{"a.txt": []byte("x")})
	assert.Same(t, snap, r.Apply(snap))
}

func TestBinaryContentUntouched(t *testing.T) {
	r, err := New([]tplsrc.RenderRule{
		{Glob: "**", Find: "a", Replace: "b"},
	}, nil)
	require.NoError(t, err)

	bin := []byte{0x61, 0x00, 0x61}
	f, _ := r.Apply(snapshot.New(map[string][]byte{"blob": bin})).Get("blob")
	assert.Equal(t, bin, f.Data)
}
