// Package pattern converts path glob patterns into anchored regular
// expressions so a rule set can be compiled once and matched many times.
package pattern

import (
	"regexp"
	"strings"
)

// GlobToRegexp converts a glob pattern into a regular expression source
// string. Supported syntax: `*` (any run within one path segment), `?`
// (one character within a segment), `**` (any run across segments),
// `**/` prefix (zero or more leading directories). Negation is not
// supported; patterns are matched against slash-separated relative paths.
func GlobToRegexp(glob string) (string, error) {
	if glob == "" {
		return "", ErrEmptyPattern
	}

	if strings.HasPrefix(glob, "!") {
		return "", ErrNegationNotSupported
	}

	var result strings.Builder

	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				if i+2 < len(glob) && glob[i+2] == '/' {
					result.WriteString("(.*/)?")
					i += 2
				} else {
					result.WriteString(".*")
					i++
				}
			} else {
				result.WriteString("[^/]*")
			}
		case '?':
			result.WriteString("[^/]")
		case '.':
			result.WriteString(`\.`)
		case '+':
			result.WriteString(`\+`)
		case '(':
			result.WriteString(`\(`)
		case ')':
			result.WriteString(`\)`)
		case '[':
			result.WriteString(`\[`)
		case ']':
			result.WriteString(`\]`)
		case '{':
			result.WriteString(`\{`)
		case '}':
			result.WriteString(`\}`)
		case '^':
			result.WriteString(`\^`)
		case '$':
			result.WriteString(`\$`)
		case '|':
			result.WriteString(`\|`)
		case '\\':
			result.WriteString(`\\`)
		default:
			result.WriteByte(c)
		}
	}

	return result.String(), nil
}

// CompileGlob converts a glob into a compiled, fully anchored regexp.
func CompileGlob(glob string) (*regexp.Regexp, error) {
	src, err := GlobToRegexp(glob)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile("^" + src + "$")
	if err != nil {
		return nil, err
	}
	return re, nil
}

// IsLiteral reports whether a glob contains no metacharacters, meaning it
// can only ever match itself. Literal patterns can be indexed in a map
// instead of compiled.
func IsLiteral(glob string) bool {
	return !strings.ContainsAny(glob, "*?[{\\")
}

var (
	ErrEmptyPattern         = errorString("empty pattern")
	ErrNegationNotSupported = errorString("negation patterns not supported")
)

type errorString string

func (e errorString) Error() string { return string(e) }
