// Package render applies a template's content substitutions to its
// snapshot before reconciliation, so templates can ship adopter-specific
// placeholders (project name, default branch) that each adopter fills in.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/fleetform/tplsync/internal/snapshot"
	"github.com/fleetform/tplsync/internal/tplsrc"
	"github.com/fleetform/tplsync/pkg/pattern"
)

type compiledRule struct {
	glob    *regexp.Regexp
	find    *regexp.Regexp // nil for literal rules
	literal string
	replace string
}

// Renderer applies a fixed set of substitution rules. Replacement strings
// may reference adopter-supplied values as {{name}}.
type Renderer struct {
	rules []compiledRule
}

// New compiles the manifest's render rules against the adopter's values.
// A {{name}} placeholder with no configured value is an error, so a
// missing value fails loudly at setup instead of leaking the placeholder
// into files.
func New(rules []tplsrc.RenderRule, values map[string]string) (*Renderer, error) {
	r := &Renderer{}
	for _, rule := range rules {
		glob, err := pattern.CompileGlob(rule.Glob)
		if err != nil {
			return nil, fmt.Errorf("render rule %q: %w", rule.Glob, err)
		}
		replace, err := expand(rule.Replace, values)
		if err != nil {
			return nil, fmt.Errorf("render rule %q: %w", rule.Glob, err)
		}

		cr := compiledRule{glob: glob, replace: replace}
		if rule.Regex {
			find, err := regexp.Compile(rule.Find)
			if err != nil {
				return nil, fmt.Errorf("render rule %q: bad find pattern: %w", rule.Glob, err)
			}
			cr.find = find
		} else {
			cr.literal = rule.Find
		}
		r.rules = append(r.rules, cr)
	}
	return r, nil
}

// Apply returns a snapshot with all substitutions performed. Files with no
// matching rule keep their original bytes; binary content is never touched.
func (r *Renderer) Apply(snap *snapshot.Snapshot) *snapshot.Snapshot {
	if len(r.rules) == 0 {
		return snap
	}

	files := make(map[string][]byte, snap.Len())
	for _, p := range snap.Paths() {
		f, _ := snap.Get(p)
		files[p] = r.renderFile(p, f.Data)
	}
	return snapshot.New(files)
}

func (r *Renderer) renderFile(path string, data []byte) []byte {
	if bytes.IndexByte(data, 0) >= 0 {
		return data
	}
	out := data
	for _, rule := range r.rules {
		if !rule.glob.MatchString(path) {
			continue
		}
		if rule.find != nil {
			out = rule.find.ReplaceAll(out, []byte(rule.replace))
		} else {
			out = bytes.ReplaceAll(out, []byte(rule.literal), []byte(rule.replace))
		}
	}
	return out
}

var placeholderRe = regexp.MustCompile(`\{\{([a-zA-Z0-9_.-]+)\}\}`)

func expand(s string, values map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := values[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("no value configured for placeholder %s", strings.Join(missing, ", "))
	}
	return out, nil
}
