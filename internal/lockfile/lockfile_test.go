package lockfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetform/tplsync/internal/pathrule"
	"github.com/fleetform/tplsync/internal/snapshot"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultName)

	lock := New(Template{
		Source: "rat:gh:fleetform/platform-template",
		Ref:    "v1.4.0",
		Commit: "0123456789abcdef0123456789abcdef01234567",
	}, []pathrule.Rule{
		{Pattern: ".github/**", Ownership: pathrule.OwnershipTemplate},
		{Pattern: "**", Ownership: pathrule.OwnershipMixed},
	})
	lock.Upsert(Entry{
		Path:      ".github/workflows/ci.yml",
		Version:   "v1.4.0",
		Hash:      snapshot.Hash([]byte("name: ci\n")),
		Ownership: pathrule.OwnershipTemplate,
	})
	lock.Upsert(Entry{
		Path:      "Makefile",
		Version:   "v1.4.0",
		Hash:      snapshot.Hash([]byte("build:\n")),
		Ownership: pathrule.OwnershipMixed,
	})

	require.NoError(t, lock.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, lock.Template, got.Template)
	assert.Equal(t, lock.Rules, got.Rules)
	require.Len(t, got.Entries, 2)

	e, ok := got.Entry("Makefile")
	require.True(t, ok)
	assert.Equal(t, pathrule.OwnershipMixed, e.Ownership)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultName))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadCorruptYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)
	require.NoError(t, os.WriteFile(path, []byte("{{{not yaml"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing template", "version: 1\nfiles: []\n"},
		{"missing ref", "version: 1\ntemplate:\n  source: rat:local:/tmp/t\nfiles: []\n"},
		{"bad ownership", `
version: 1
template:
  source: rat:local:/tmp/t
  ref: main
files:
  - path: a.txt
    version: main
    hash: "sha256:` + strings.Repeat("ab", 32) + `"
    ownership: enforced
`},
		{"bad hash format", `
version: 1
template:
  source: rat:local:/tmp/t
  ref: main
files:
  - path: a.txt
    version: main
    hash: md5:abc
    ownership: mixed
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultName)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	body := `
version: 1
template:
  source: rat:local:/tmp/t
  ref: main
future_field: something
files:
  - path: a.txt
    version: main
    hash: "sha256:` + strings.Repeat("ab", 32) + `"
    ownership: mixed
    another_future_field: 42
`
	path := filepath.Join(t.TempDir(), DefaultName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	lock, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "main", lock.Template.Ref)
	_, ok := lock.Entry("a.txt")
	assert.True(t, ok)
}

func TestSaveIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	lock := New(Template{Source: "rat:local:/tmp/t", Ref: "main"}, nil)
	// inserted out of order
	lock.Upsert(Entry{Path: "z.txt", Version: "main", Hash: snapshot.Hash(nil), Ownership: pathrule.OwnershipMixed})
	lock.Upsert(Entry{Path: "a.txt", Version: "main", Hash: snapshot.Hash(nil), Ownership: pathrule.OwnershipMixed})

	p1 := filepath.Join(dir, "one.lock")
	p2 := filepath.Join(dir, "two.lock")
	require.NoError(t, lock.Save(p1))
	require.NoError(t, lock.Save(p2))

	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	b2, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
	assert.True(t, strings.Index(string(b1), "a.txt") < strings.Index(string(b1), "z.txt"))
}

func TestUpsertReplacesAndRemoveDrops(t *testing.T) {
	lock := New(Template{Source: "rat:local:/tmp/t", Ref: "main"}, nil)
	lock.Upsert(Entry{Path: "a.txt", Version: "v1", Hash: snapshot.Hash(nil), Ownership: pathrule.OwnershipMixed})
	lock.Upsert(Entry{Path: "a.txt", Version: "v2", Hash: snapshot.Hash(nil), Ownership: pathrule.OwnershipMixed})

	require.Len(t, lock.Entries, 1)
	e, _ := lock.Entry("a.txt")
	assert.Equal(t, "v2", e.Version)

	lock.Remove("a.txt")
	_, ok := lock.Entry("a.txt")
	assert.False(t, ok)
}
