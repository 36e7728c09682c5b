package engine

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/fleetform/tplsync/internal/annotate"
)

// hunk is one contiguous edit: baseline lines [Start, End) are replaced by
// Lines. Start == End denotes a pure insertion before baseline line Start.
type hunk struct {
	Start int
	End   int
	Lines []string
}

// diffLines computes the line-level edit script turning a into b. The diff
// runs without a time budget so identical inputs always produce the
// identical script; plan determinism depends on it.
func diffLines(a, b []string) []hunk {
	if linesEqual(a, b) {
		return nil
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	c1, c2, lineArray := dmp.DiffLinesToChars(strings.Join(a, ""), strings.Join(b, ""))
	diffs := dmp.DiffMain(c1, c2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var hunks []hunk
	aPos := 0
	i := 0
	for i < len(diffs) {
		if diffs[i].Type == diffmatchpatch.DiffEqual {
			aPos += lineCount(diffs[i].Text)
			i++
			continue
		}

		start := aPos
		deleted := 0
		var inserted []string
		for i < len(diffs) && diffs[i].Type != diffmatchpatch.DiffEqual {
			switch diffs[i].Type {
			case diffmatchpatch.DiffDelete:
				deleted += lineCount(diffs[i].Text)
			case diffmatchpatch.DiffInsert:
				inserted = append(inserted, annotate.SplitLines(diffs[i].Text)...)
			}
			i++
		}
		hunks = append(hunks, hunk{Start: start, End: start + deleted, Lines: inserted})
		aPos += deleted
	}

	return hunks
}

func lineCount(text string) int {
	return len(annotate.SplitLines(text))
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// applyHunks materializes the segment [segStart, segEnd) of base after
// applying the given hunks, which must all fall within the segment and be
// ordered by Start.
func applyHunks(base []string, segStart, segEnd int, hunks []hunk) []string {
	out := make([]string, 0, segEnd-segStart)
	pos := segStart
	for _, h := range hunks {
		out = append(out, base[pos:h.Start]...)
		out = append(out, h.Lines...)
		pos = h.End
	}
	out = append(out, base[pos:segEnd]...)
	return out
}
