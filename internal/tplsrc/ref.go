// Package tplsrc resolves template references into immutable snapshots.
// A reference names a template source (a local directory or a hosted git
// repository) plus the version to sync against.
package tplsrc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadRef marks a template reference that does not parse.
var ErrBadRef = errors.New("invalid template ref")

// Kind is the template source family.
type Kind string

const (
	// KindLocal is a filesystem path, optionally a git checkout.
	KindLocal Kind = "local"
	// KindGitHub is a hosted org/repo coordinate.
	KindGitHub Kind = "gh"
)

// Ref addresses a template source at a specific version. Once resolved to
// a snapshot it is immutable: the same Ref plus the same commit always
// yields the same content.
type Ref struct {
	Kind Kind
	// Location is a filesystem path for local refs, or "org/repo" for
	// hosted refs.
	Location string
	// Version is the requested git ref (branch, tag, or commit hash).
	// Empty for a plain local directory.
	Version string
}

// ParseRef parses the textual ref forms:
//
//	rat:local:<path>[@<ref>]
//	rat:gh:<org>/<repo>@<ref>
func ParseRef(s string) (Ref, error) {
	rest, ok := strings.CutPrefix(s, "rat:")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q: missing rat: prefix", ErrBadRef, s)
	}

	kindStr, loc, ok := strings.Cut(rest, ":")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q: missing source kind", ErrBadRef, s)
	}

	var version string
	if at := strings.LastIndex(loc, "@"); at >= 0 {
		loc, version = loc[:at], loc[at+1:]
		if version == "" {
			return Ref{}, fmt.Errorf("%w: %q: empty version after @", ErrBadRef, s)
		}
	}
	if loc == "" {
		return Ref{}, fmt.Errorf("%w: %q: empty location", ErrBadRef, s)
	}

	switch Kind(kindStr) {
	case KindLocal:
		return Ref{Kind: KindLocal, Location: loc, Version: version}, nil
	case KindGitHub:
		if strings.Count(loc, "/") != 1 || strings.HasPrefix(loc, "/") || strings.HasSuffix(loc, "/") {
			return Ref{}, fmt.Errorf("%w: %q: hosted refs use org/repo form", ErrBadRef, s)
		}
		if version == "" {
			return Ref{}, fmt.Errorf("%w: %q: hosted refs require @<version>", ErrBadRef, s)
		}
		return Ref{Kind: KindGitHub, Location: loc, Version: version}, nil
	default:
		return Ref{}, fmt.Errorf("%w: %q: unknown source kind %q", ErrBadRef, s, kindStr)
	}
}

// WithVersion returns a copy of the ref pointing at a different version.
func (r Ref) WithVersion(version string) Ref {
	r.Version = version
	return r
}

// Source is the ref string without the version component, as stored in the
// lockfile's template.source field.
func (r Ref) Source() string {
	return fmt.Sprintf("rat:%s:%s", r.Kind, r.Location)
}

func (r Ref) String() string {
	if r.Version == "" {
		return r.Source()
	}
	return r.Source() + "@" + r.Version
}
