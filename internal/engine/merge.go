package engine

import (
	"sort"
	"strings"

	"github.com/fleetform/tplsync/internal/annotate"
	"github.com/fleetform/tplsync/pkg/config"
)

// span is a half-open line range in adopter coordinates.
type span struct {
	s, e int
}

func (sp span) overlaps(s, e int) bool {
	if sp.s == sp.e {
		// insertion point
		if s == e {
			return sp.s == s
		}
		return s <= sp.s && sp.s < e
	}
	if s == e {
		return sp.s <= s && s < sp.e
	}
	return sp.s < e && s < sp.e
}

// touches extends overlaps to count an insertion sitting on the range's end
// boundary. Content inserted at the edge of a differing run cannot be placed
// independently of that run's resolution.
func (sp span) touches(s, e int) bool {
	if sp.overlaps(s, e) {
		return true
	}
	return sp.s == sp.e && s < e && sp.s == e
}

// blockSpan converts a block to the half-open adopter range it occupies.
func blockSpan(b annotate.Block) span {
	return span{s: b.Start, e: b.End + 1}
}

// insideBlock reports whether the adopter range [s, e) falls in the block.
// An insertion point sits inside only when strictly after the begin marker,
// so prepending before a block stays outside it.
func insideBlock(b annotate.Block, s, e int) bool {
	if s == e {
		return b.Start < s && s <= b.End
	}
	return blockSpan(b).overlaps(s, e)
}

// merger accumulates the merged output and conflicts for one file.
type merger struct {
	blocks      []annotate.Block
	driftPolicy config.DriftPolicy

	out       []string
	conflicts []Conflict

	// adopter-coordinate extents of the local and template deltas for the
	// region currently being merged
	locSpans []span
	tplSpans []span
	// blocks the template delta touches, by index into blocks
	tplTouched map[int]bool
}

// mergeThreeWay reconciles one file. base, target, and adopter are the
// file's lines (line endings preserved); blocks are the adopter's inline
// blocks. Returns the merged lines plus region conflicts and drift notices.
// The computation is pure and deterministic.
func mergeThreeWay(base, target, adopter []string, blocks []annotate.Block, driftPolicy config.DriftPolicy) ([]string, []Conflict) {
	tplHunks := diffLines(base, target)
	locHunks := diffLines(base, adopter)

	m := &merger{blocks: blocks, driftPolicy: driftPolicy}

	i, j := 0, 0
	basePos := 0
	aOff := 0

	for i < len(tplHunks) || j < len(locHunks) {
		regionStart := len(base)
		if i < len(tplHunks) && tplHunks[i].Start < regionStart {
			regionStart = tplHunks[i].Start
		}
		if j < len(locHunks) && locHunks[j].Start < regionStart {
			regionStart = locHunks[j].Start
		}

		// lines unchanged on both sides
		m.out = append(m.out, base[basePos:regionStart]...)

		// grow the region until no further hunk overlaps or adjoins it
		regionEnd := regionStart
		var tIn, lIn []hunk
		for {
			progressed := false
			for i < len(tplHunks) && tplHunks[i].Start <= regionEnd {
				if tplHunks[i].End > regionEnd {
					regionEnd = tplHunks[i].End
				}
				tIn = append(tIn, tplHunks[i])
				i++
				progressed = true
			}
			for j < len(locHunks) && locHunks[j].Start <= regionEnd {
				if locHunks[j].End > regionEnd {
					regionEnd = locHunks[j].End
				}
				lIn = append(lIn, locHunks[j])
				j++
				progressed = true
			}
			if !progressed {
				break
			}
		}

		baseSeg := base[regionStart:regionEnd]
		locSeg := applyHunks(base, regionStart, regionEnd, lIn)
		tplSeg := applyHunks(base, regionStart, regionEnd, tIn)

		m.mergeRegion(baseSeg, locSeg, tplSeg, regionStart+aOff)

		aOff += len(locSeg) - len(baseSeg)
		basePos = regionEnd
	}

	m.out = append(m.out, base[basePos:]...)
	return m.out, m.conflicts
}

// mergeRegion reconciles one region where at least one side changed.
// aStart is the region's first line in adopter coordinates.
func (m *merger) mergeRegion(baseSeg, locSeg, tplSeg []string, aStart int) {
	if linesEqual(locSeg, tplSeg) {
		// both sides converged on the same content
		m.out = append(m.out, locSeg...)
		return
	}

	locHunks := diffLines(baseSeg, locSeg)
	tplHunks := diffLines(baseSeg, tplSeg)
	m.computeSpans(locHunks, tplHunks, aStart)

	// Settle each cluster of baseline-overlapping hunks on its own, so a
	// template edit keeps its full content even when an unrelated local
	// edit sits on an adjacent baseline range.
	basePos := 0
	for _, c := range clusterHunks(locHunks, tplHunks) {
		m.out = append(m.out, baseSeg[basePos:c.start]...)

		ours := applyHunks(baseSeg, c.start, c.end, c.loc)
		theirs := applyHunks(baseSeg, c.start, c.end, c.tpl)
		aS := aStart + mapBaseToAdopter(c.start, locHunks)
		aE := aS + len(ours)

		switch {
		case linesEqual(ours, theirs):
			m.out = append(m.out, ours...)
		case len(m.overlappingBlocks(aS, aE)) > 0:
			m.mergeAligned(ours, theirs, aS)
		case len(c.tpl) == 0:
			// local edit of a default-owned range with no competing
			// template change
			m.recordDrift(ours, aS, aE)
		case len(c.loc) == 0:
			m.out = append(m.out, theirs...)
		default:
			m.mergeAligned(ours, theirs, aS)
		}
		basePos = c.end
	}
	m.out = append(m.out, baseSeg[basePos:]...)
}

// cluster is a maximal run of mutually dependent hunks over one baseline
// range [start, end), split by side.
type cluster struct {
	start, end int
	loc, tpl   []hunk
}

// clusterHunks groups the local and template edit scripts into independent
// sub-ranges of the baseline segment.
func clusterHunks(loc, tpl []hunk) []cluster {
	type tagged struct {
		h     hunk
		local bool
	}
	all := make([]tagged, 0, len(loc)+len(tpl))
	for _, h := range loc {
		all = append(all, tagged{h: h, local: true})
	}
	for _, h := range tpl {
		all = append(all, tagged{h: h})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].h.Start != all[j].h.Start {
			return all[i].h.Start < all[j].h.Start
		}
		return all[i].h.End < all[j].h.End
	})

	var out []cluster
	for _, t := range all {
		if n := len(out); n > 0 && joins(out[n-1], t.h) {
			c := &out[n-1]
			if t.h.End > c.end {
				c.end = t.h.End
			}
			if t.local {
				c.loc = append(c.loc, t.h)
			} else {
				c.tpl = append(c.tpl, t.h)
			}
			continue
		}
		c := cluster{start: t.h.Start, end: t.h.End}
		if t.local {
			c.loc = []hunk{t.h}
		} else {
			c.tpl = []hunk{t.h}
		}
		out = append(out, c)
	}
	return out
}

// joins reports whether hunk h must be settled together with cluster c.
// Baseline ranges that genuinely overlap always join. An insertion also
// joins when it sits on the cluster's boundary: lines inserted at the edge
// of an edited run have no anchor of their own.
func joins(c cluster, h hunk) bool {
	if h.Start < c.end && c.start < h.End {
		return true
	}
	if h.Start == h.End {
		return c.start <= h.Start && h.Start <= c.end
	}
	if c.start == c.end {
		return h.Start <= c.start && c.start <= h.End
	}
	return false
}

// mergeAligned reconciles one cluster where both sides (or a block) are in
// play, by diffing the adopter content against the template content.
func (m *merger) mergeAligned(ours, theirs []string, aStart int) {
	ov := diffLines(ours, theirs)
	pos := 0
	for _, h := range ov {
		m.out = append(m.out, ours[pos:h.Start]...)
		m.mergeChunk(ours[h.Start:h.End], h.Lines, aStart+h.Start, aStart+h.End)
		pos = h.End
	}
	m.out = append(m.out, ours[pos:]...)
}

// computeSpans records where the local and template deltas land in adopter
// coordinates, and which blocks the template delta touches.
func (m *merger) computeSpans(locHunks, tplHunks []hunk, aStart int) {
	m.locSpans = m.locSpans[:0]
	off := 0
	for _, h := range locHunks {
		s := aStart + h.Start + off
		m.locSpans = append(m.locSpans, span{s: s, e: s + len(h.Lines)})
		off += len(h.Lines) - (h.End - h.Start)
	}

	m.tplSpans = m.tplSpans[:0]
	for _, h := range tplHunks {
		s := aStart + mapBaseToAdopter(h.Start, locHunks)
		e := aStart + mapBaseToAdopter(h.End, locHunks)
		if e < s {
			e = s
		}
		m.tplSpans = append(m.tplSpans, span{s: s, e: e})
	}

	m.tplTouched = make(map[int]bool)
	for bi, b := range m.blocks {
		bs := blockSpan(b)
		for _, sp := range m.tplSpans {
			if sp.overlaps(bs.s, bs.e) {
				m.tplTouched[bi] = true
				break
			}
		}
	}
}

// mapBaseToAdopter translates a region-relative baseline line position into
// the adopter-side position through the local edit script.
func mapBaseToAdopter(p int, locHunks []hunk) int {
	off := 0
	for _, h := range locHunks {
		if p <= h.Start {
			break
		}
		if p < h.End {
			return h.Start + off
		}
		off += len(h.Lines) - (h.End - h.Start)
	}
	return p + off
}

// mergeChunk resolves one differing run between adopter content (ours) and
// template content (theirs) spanning adopter lines [aS, aE).
func (m *merger) mergeChunk(ours, theirs []string, aS, aE int) {
	overlapping := m.overlappingBlocks(aS, aE)
	if len(overlapping) == 0 {
		m.mergePlainChunk(ours, theirs, aS, aE)
		return
	}

	// Carve the chunk at block boundaries: block content is settled by its
	// mode, the remainder merges under default ownership. Template content
	// is sliced positionally across the non-block parts, following the
	// structural-base strategy.
	pos := 0
	tpos := 0
	for _, bi := range overlapping {
		b := m.blocks[bi]
		bs := clamp(b.Start-aS, 0, len(ours))
		be := clamp(b.End+1-aS, 0, len(ours))

		if pre := ours[pos:bs]; len(pre) > 0 || tpos < len(theirs) {
			n := min(len(pre), len(theirs)-tpos)
			if n < 0 {
				n = 0
			}
			m.mergeSubChunk(pre, theirs[tpos:tpos+n], aS+pos)
			tpos += n
		}

		blockLines := ours[bs:be]
		switch b.Mode {
		case annotate.ModeIgnore:
			// adopter content retained verbatim; template delta discarded
			m.out = append(m.out, blockLines...)
		case annotate.ModeProtect:
			if m.tplTouched[bi] {
				m.conflicts = append(m.conflicts, Conflict{
					Kind:            ConflictProtected,
					Severity:        SeverityBlocking,
					StartLine:       aS + bs + 1,
					EndLine:         aS + be,
					BlockID:         b.ID,
					TemplateContent: strings.Join(theirs, ""),
					LocalContent:    strings.Join(blockLines, ""),
				})
			}
			m.out = append(m.out, blockLines...)
		}
		pos = be
	}

	if pos >= len(ours) {
		// The chunk ended at a block boundary. Leftover template lines
		// are either the template's proposal for the blocked region
		// (settled by the block's mode, so dropped) or a pure insertion
		// next to the block, which still applies.
		if m.outsideInsertionOnly(aS, aE) {
			m.out = append(m.out, theirs[tpos:]...)
		}
		return
	}
	m.mergeSubChunk(ours[pos:], theirs[tpos:], aS+pos)
}

// outsideInsertionOnly reports whether every template edit landing in
// adopter range [aS, aE) is a pure insertion outside all blocks.
func (m *merger) outsideInsertionOnly(aS, aE int) bool {
	found := false
	for _, sp := range m.tplSpans {
		if !sp.overlaps(aS, aE) {
			continue
		}
		if sp.s != sp.e {
			return false
		}
		inside := false
		for _, b := range m.blocks {
			if insideBlock(b, sp.s, sp.e) {
				inside = true
				break
			}
		}
		if inside {
			return false
		}
		found = true
	}
	return found
}

// mergeSubChunk merges a block-free slice of a chunk by re-diffing it.
func (m *merger) mergeSubChunk(ours, theirs []string, aStart int) {
	if linesEqual(ours, theirs) {
		m.out = append(m.out, ours...)
		return
	}
	ov := diffLines(ours, theirs)
	pos := 0
	for _, h := range ov {
		m.out = append(m.out, ours[pos:h.Start]...)
		m.mergePlainChunk(ours[h.Start:h.End], h.Lines, aStart+h.Start, aStart+h.End)
		pos = h.End
	}
	m.out = append(m.out, ours[pos:]...)
}

// mergePlainChunk applies default-owned policy to a differing run outside
// any block.
func (m *merger) mergePlainChunk(ours, theirs []string, aS, aE int) {
	tplHere := m.anySpanTouches(m.tplSpans, aS, aE)
	locHere := m.anySpanTouches(m.locSpans, aS, aE)

	switch {
	case tplHere && !locHere:
		// template-only change: apply target content
		m.out = append(m.out, theirs...)
	case locHere && !tplHere:
		m.recordDrift(ours, aS, aE)
	default:
		// both deltas touch the region with differing results
		m.out = append(m.out, ours...)
		m.conflicts = append(m.conflicts, Conflict{
			Kind:            ConflictContent,
			Severity:        SeverityBlocking,
			StartLine:       aS + 1,
			EndLine:         aE,
			TemplateContent: strings.Join(theirs, ""),
			LocalContent:    strings.Join(ours, ""),
		})
	}
}

// recordDrift keeps the adopter's lines and notes the drift per policy.
func (m *merger) recordDrift(ours []string, aS, aE int) {
	m.out = append(m.out, ours...)
	if m.driftPolicy == config.DriftLocalWins {
		return
	}
	severity := SeverityDrift
	if m.driftPolicy == config.DriftConflict {
		severity = SeverityBlocking
	}
	m.conflicts = append(m.conflicts, Conflict{
		Kind:         ConflictDrift,
		Severity:     severity,
		StartLine:    aS + 1,
		EndLine:      aE,
		LocalContent: strings.Join(ours, ""),
	})
}

// overlappingBlocks returns indexes of blocks intersecting adopter range
// [aS, aE), in file order.
func (m *merger) overlappingBlocks(aS, aE int) []int {
	var out []int
	for bi, b := range m.blocks {
		if insideBlock(b, aS, aE) || blockSpan(b).overlaps(aS, aE) {
			out = append(out, bi)
		}
	}
	sort.Ints(out)
	return out
}

func (m *merger) anySpanTouches(spans []span, s, e int) bool {
	for _, sp := range spans {
		if sp.touches(s, e) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
