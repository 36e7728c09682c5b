// Package pathrule resolves which repository paths are governed by template
// sync and their whole-file ownership mode. Rule sets are compiled once per
// run into an exact-match index plus a specificity-ordered glob list, so
// lookup cost does not grow with repeated evaluation across large trees.
package pathrule

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fleetform/tplsync/pkg/pattern"
)

// Ownership is the whole-file ownership mode of a managed path.
type Ownership string

const (
	// OwnershipTemplate paths always take the template's target content.
	OwnershipTemplate Ownership = "template"
	// OwnershipLocal paths never change regardless of template delta.
	OwnershipLocal Ownership = "local"
	// OwnershipMixed paths get annotation-governed region reconciliation.
	OwnershipMixed Ownership = "mixed"
)

// ParseOwnership validates an ownership mode string.
func ParseOwnership(s string) (Ownership, error) {
	switch Ownership(s) {
	case OwnershipTemplate, OwnershipLocal, OwnershipMixed:
		return Ownership(s), nil
	}
	return "", fmt.Errorf("invalid ownership mode %q (want template, local, or mixed)", s)
}

// Rule pairs a slash-separated path pattern with an ownership mode.
// Patterns follow glob syntax: exact paths, `dir/**` subtree globs, and
// `*`/`?` wildcards.
type Rule struct {
	Pattern   string    `yaml:"pattern" json:"pattern"`
	Ownership Ownership `yaml:"ownership" json:"ownership"`
}

// Specificity classes, most specific first. Within a class the longer
// pattern wins, matching the precedence of exact > subtree glob > wildcard.
const (
	classExact = iota
	classSubtree
	classWildcard
)

type compiledRule struct {
	rule   Rule
	re     *regexp.Regexp
	class  int
	length int
}

// RuleSet is a compiled, immutable rule index.
type RuleSet struct {
	exact map[string]Rule
	globs []compiledRule
}

// Compile validates and indexes a rule list. Literal patterns go into a map;
// glob patterns are converted to anchored regexps once and ordered by
// specificity so Match can return the first hit.
func Compile(rules []Rule) (*RuleSet, error) {
	rs := &RuleSet{exact: make(map[string]Rule)}

	for _, r := range rules {
		pat := strings.TrimSpace(r.Pattern)
		if pat == "" {
			return nil, fmt.Errorf("managed path pattern cannot be empty")
		}
		pat = strings.TrimPrefix(pat, "./")
		if _, err := ParseOwnership(string(r.Ownership)); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pat, err)
		}
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid path pattern %q", pat)
		}

		r.Pattern = pat
		if pattern.IsLiteral(pat) {
			if _, dup := rs.exact[pat]; dup {
				return nil, fmt.Errorf("duplicate managed path %q", pat)
			}
			rs.exact[pat] = r
			continue
		}

		re, err := pattern.CompileGlob(pat)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pat, err)
		}
		class := classWildcard
		if strings.HasSuffix(pat, "/**") {
			class = classSubtree
		}
		rs.globs = append(rs.globs, compiledRule{rule: r, re: re, class: class, length: len(pat)})
	}

	sort.SliceStable(rs.globs, func(i, j int) bool {
		if rs.globs[i].class != rs.globs[j].class {
			return rs.globs[i].class < rs.globs[j].class
		}
		if rs.globs[i].length != rs.globs[j].length {
			return rs.globs[i].length > rs.globs[j].length
		}
		return rs.globs[i].rule.Pattern < rs.globs[j].rule.Pattern
	})

	return rs, nil
}

// Match returns the most specific rule governing the path, or false when the
// path is unmanaged. A subtree glob `dir/**` also matches `dir` itself,
// mirroring the adopted pattern semantics.
func (rs *RuleSet) Match(path string) (Rule, bool) {
	path = strings.TrimPrefix(path, "./")

	if r, ok := rs.exact[path]; ok {
		return r, true
	}
	for _, c := range rs.globs {
		if c.re.MatchString(path) {
			return c.rule, true
		}
		if c.class == classSubtree && path == strings.TrimSuffix(c.rule.Pattern, "/**") {
			return c.rule, true
		}
	}
	return Rule{}, false
}

// Rules returns the indexed rules in deterministic order: exact patterns
// sorted lexically, then globs in specificity order. Used for lockfile
// round-tripping and plan output.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, 0, len(rs.exact)+len(rs.globs))
	exactPats := make([]string, 0, len(rs.exact))
	for p := range rs.exact {
		exactPats = append(exactPats, p)
	}
	sort.Strings(exactPats)
	for _, p := range exactPats {
		out = append(out, rs.exact[p])
	}
	for _, c := range rs.globs {
		out = append(out, c.rule)
	}
	return out
}
