package tplsrc

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/fleetform/tplsync/internal/pathrule"
	"github.com/fleetform/tplsync/internal/snapshot"
)

// ManifestName is the template's own manifest filename. The manifest is
// metadata about the template and is never synced into adopters.
const ManifestName = "tplsync.toml"

// Manifest is the template author's declaration of what the template
// manages and how.
type Manifest struct {
	// Name labels the template in logs and reports.
	Name string `toml:"name"`
	// Paths are the managed-path rules the template ships as defaults.
	// Adopters may override them in their lockfile.
	Paths []ManagedPath `toml:"paths"`
	// Render lists content substitutions applied to template files before
	// reconciliation, so templates can carry adopter-specific placeholders.
	Render []RenderRule `toml:"render"`
}

// ManagedPath binds a path pattern to an ownership mode.
type ManagedPath struct {
	Pattern   string `toml:"pattern"`
	Ownership string `toml:"ownership"`
}

// RenderRule is one substitution: in files matching Glob, occurrences of
// Find become Replace. Find is a literal unless Regex is set.
type RenderRule struct {
	Glob    string `toml:"glob"`
	Find    string `toml:"find"`
	Replace string `toml:"replace"`
	Regex   bool   `toml:"regex"`
}

// ParseManifest decodes and validates manifest bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid template manifest: %w", err)
	}
	for _, p := range m.Paths {
		if p.Pattern == "" {
			return nil, fmt.Errorf("invalid template manifest: path rule with empty pattern")
		}
		if _, err := pathrule.ParseOwnership(p.Ownership); err != nil {
			return nil, fmt.Errorf("invalid template manifest: pattern %q: %w", p.Pattern, err)
		}
	}
	for _, r := range m.Render {
		if r.Glob == "" || r.Find == "" {
			return nil, fmt.Errorf("invalid template manifest: render rule needs glob and find")
		}
	}
	return &m, nil
}

// LoadManifest extracts the manifest from a template snapshot, if present.
func LoadManifest(snap *snapshot.Snapshot) (*Manifest, error) {
	f, ok := snap.Get(ManifestName)
	if !ok {
		return nil, nil
	}
	return ParseManifest(f.Data)
}

// Rules converts the manifest's path declarations into engine rules.
func (m *Manifest) Rules() []pathrule.Rule {
	out := make([]pathrule.Rule, 0, len(m.Paths))
	for _, p := range m.Paths {
		out = append(out, pathrule.Rule{Pattern: p.Pattern, Ownership: pathrule.Ownership(p.Ownership)})
	}
	return out
}
