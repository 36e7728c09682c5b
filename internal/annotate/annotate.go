// Package annotate extracts ownership-annotated regions from file text.
//
// The marker grammar is comment-syntax independent:
//
//	<prefix> tplsync:begin id=<optional> mode=ignore|protect
//	...
//	<prefix> tplsync:end
//
// where <prefix> is the comment prefix configured for the file's extension.
// Parsing is a pure function over the file text.
package annotate

import (
	"fmt"
	"path"
	"strings"
)

// Mode is the ownership mode declared by an inline block.
type Mode string

const (
	// ModeIgnore regions keep adopter content verbatim; template deltas
	// touching them are discarded by contract.
	ModeIgnore Mode = "ignore"
	// ModeProtect regions surface template deltas as conflicts instead of
	// auto-applying them.
	ModeProtect Mode = "protect"
)

const (
	beginToken = "tplsync:begin"
	endToken   = "tplsync:end"
)

// Block is a delimited region within one file. Start and End are 0-based
// line indexes inclusive of the marker lines themselves, so the markers
// travel with the region they delimit.
type Block struct {
	ID    string
	Mode  Mode
	Start int
	End   int
}

// Contains reports whether the 0-based line index falls inside the block.
func (b Block) Contains(line int) bool {
	return line >= b.Start && line <= b.End
}

// Overlaps reports whether the half-open line range [start, end) intersects
// the block.
func (b Block) Overlaps(start, end int) bool {
	return start <= b.End && end > b.Start
}

// ParseError identifies a malformed marker. It is file scoped: the engine
// reports the file as an error and continues with siblings.
type ParseError struct {
	Path string
	Line int // 1-based line of the offending marker
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// Parser recognizes marker lines using a per-extension comment prefix table.
// Keys are extensions including the dot (".yaml") or exact basenames for
// extensionless files ("Dockerfile").
type Parser struct {
	prefixes map[string]string
}

// NewParser creates a parser over the given comment-prefix table.
func NewParser(prefixes map[string]string) *Parser {
	return &Parser{prefixes: prefixes}
}

// PrefixFor returns the comment prefix configured for the file, or "" when
// the file type is unknown (bare markers are still recognized then).
func (p *Parser) PrefixFor(filePath string) string {
	base := path.Base(filePath)
	if pre, ok := p.prefixes[base]; ok {
		return pre
	}
	if pre, ok := p.prefixes[path.Ext(base)]; ok {
		return pre
	}
	return ""
}

// Parse extracts the ordered list of blocks from the file content, or fails
// with a *ParseError naming the offending marker. Blocks may not nest or
// overlap, every begin needs a matching end, a missing mode is an error, and
// non-empty ids must be unique within the file.
func (p *Parser) Parse(filePath, content string) ([]Block, error) {
	prefix := p.PrefixFor(filePath)
	lines := SplitLines(content)

	var blocks []Block
	var open *Block
	seen := make(map[string]bool)

	for i, raw := range lines {
		marker, ok := p.markerText(raw, prefix)
		if !ok {
			continue
		}

		switch {
		case strings.HasPrefix(marker, beginToken):
			if open != nil {
				return nil, &ParseError{Path: filePath, Line: i + 1, Msg: "nested begin marker (blocks must not overlap)"}
			}
			attrs := parseAttrs(strings.TrimPrefix(marker, beginToken))
			mode, okMode := attrs["mode"]
			if !okMode {
				return nil, &ParseError{Path: filePath, Line: i + 1, Msg: "begin marker is missing required mode attribute"}
			}
			if mode != string(ModeIgnore) && mode != string(ModeProtect) {
				return nil, &ParseError{Path: filePath, Line: i + 1, Msg: fmt.Sprintf("invalid mode %q (want ignore or protect)", mode)}
			}
			id := attrs["id"]
			if id != "" {
				if seen[id] {
					return nil, &ParseError{Path: filePath, Line: i + 1, Msg: fmt.Sprintf("duplicate block id %q", id)}
				}
				seen[id] = true
			}
			open = &Block{ID: id, Mode: Mode(mode), Start: i}

		case strings.HasPrefix(marker, endToken):
			if open == nil {
				return nil, &ParseError{Path: filePath, Line: i + 1, Msg: "end marker without matching begin"}
			}
			open.End = i
			blocks = append(blocks, *open)
			open = nil
		}
	}

	if open != nil {
		return nil, &ParseError{Path: filePath, Line: open.Start + 1, Msg: "begin marker without matching end before end of file"}
	}

	return blocks, nil
}

// markerText strips the comment prefix and reports the marker payload when
// the line is a marker line. Unknown file types fall back to bare markers.
func (p *Parser) markerText(line, prefix string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if prefix != "" {
		if !strings.HasPrefix(trimmed, prefix) {
			return "", false
		}
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		// HTML/XML style comments close on the same line
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "-->"))
	}
	if strings.HasPrefix(trimmed, beginToken) || strings.HasPrefix(trimmed, endToken) {
		return trimmed, true
	}
	return "", false
}

// parseAttrs parses space-separated key=value pairs from a marker payload.
func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, field := range strings.Fields(s) {
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		attrs[key] = value
	}
	return attrs
}

// IsMarker reports whether the line is a begin or end marker for the file.
// Marker lines are annotation metadata, not content.
func (p *Parser) IsMarker(filePath, line string) bool {
	_, ok := p.markerText(line, p.PrefixFor(filePath))
	return ok
}

// SplitLines splits content into lines preserving line endings, so joining
// the slice reproduces the input byte for byte. The last element has no
// trailing newline when the input does not end with one.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
