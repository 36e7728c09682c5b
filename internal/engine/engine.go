package engine

import (
	"bytes"
	"context"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fleetform/tplsync/internal/annotate"
	"github.com/fleetform/tplsync/internal/pathrule"
	"github.com/fleetform/tplsync/internal/snapshot"
	"github.com/fleetform/tplsync/pkg/config"
)

// Options configures an Engine.
type Options struct {
	// Rules bind path patterns to whole-file ownership. Unmatched paths
	// get mixed ownership.
	Rules *pathrule.RuleSet
	// DriftPolicy selects the disposition for adopter edits to
	// default-owned regions.
	DriftPolicy config.DriftPolicy
	// Workers bounds parallel per-file reconciliation (0 = NumCPU).
	Workers int
	// CommentPrefixes maps file extension or basename to the comment
	// prefix used when scanning inline markers.
	CommentPrefixes map[string]string
}

// Engine computes reconciliation plans. It never touches the filesystem;
// all inputs arrive as snapshots and the output is a Plan.
type Engine struct {
	rules       *pathrule.RuleSet
	parser      *annotate.Parser
	driftPolicy config.DriftPolicy
	workers     int
}

// New builds an Engine. Zero-value options fall back to mixed-only rules,
// the warn drift policy, and the built-in comment prefix table.
func New(opts Options) *Engine {
	rules := opts.Rules
	if rules == nil {
		// manage everything under mixed ownership by default
		rules, _ = pathrule.Compile([]pathrule.Rule{{Pattern: "**", Ownership: pathrule.OwnershipMixed}})
	}
	policy := opts.DriftPolicy
	if policy == "" {
		policy = config.DriftWarn
	}
	prefixes := opts.CommentPrefixes
	if prefixes == nil {
		prefixes = config.DefaultCommentPrefixes()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{
		rules:       rules,
		parser:      annotate.NewParser(prefixes),
		driftPolicy: policy,
		workers:     workers,
	}
}

// Inputs are the three snapshots a plan reconciles: the template at the
// adopter's applied version (baseline), the template at the requested
// version (target), and the adopter's current working tree restricted to
// managed paths.
type Inputs struct {
	Baseline *snapshot.Snapshot
	Target   *snapshot.Snapshot
	Adopter  *snapshot.Snapshot
}

// Plan computes a FileChange for every path present in the baseline or
// target template. Per-file work runs in parallel; the resulting plan is
// ordered by path and identical across runs for identical inputs.
func (e *Engine) Plan(ctx context.Context, in Inputs) (*Plan, error) {
	paths := managedPaths(in.Baseline, in.Target)

	changes := make([]FileChange, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for idx, p := range paths {
		idx, p := idx, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			changes[idx] = e.planFile(p, in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Plan{Changes: changes}, nil
}

// managedPaths is the sorted union of baseline and target paths.
func managedPaths(baseline, target *snapshot.Snapshot) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range []*snapshot.Snapshot{baseline, target} {
		if s == nil {
			continue
		}
		for _, p := range s.Paths() {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}

// planFile decides one path's disposition.
func (e *Engine) planFile(path string, in Inputs) FileChange {
	base, hasBase := get(in.Baseline, path)
	tgt, hasTgt := get(in.Target, path)
	loc, hasLoc := get(in.Adopter, path)

	rule, managed := e.rules.Match(path)
	if !managed {
		return FileChange{Path: path, Kind: ChangeSkip, Reason: "unmanaged"}
	}
	own := rule.Ownership

	switch {
	case !hasTgt:
		// template removed (or never had) the path
		return e.planDelete(path, own, base, loc, hasLoc)
	case !hasLoc:
		return e.planMissing(path, own, base, hasBase, tgt)
	default:
		return e.planPresent(path, own, base, hasBase, tgt, loc)
	}
}

// planMissing handles a path the target template carries but the adopter
// does not.
func (e *Engine) planMissing(path string, own pathrule.Ownership, base snapshot.File, hasBase bool, tgt snapshot.File) FileChange {
	if own == pathrule.OwnershipLocal {
		return FileChange{Path: path, Kind: ChangeSkip, Reason: "local-owned"}
	}
	if hasBase && base.Sum != tgt.Sum && own == pathrule.OwnershipMixed {
		// the adopter deleted a file the template is still evolving
		return FileChange{Path: path, Kind: ChangeSkip, Reason: "deleted-locally", Conflicts: []Conflict{{
			Kind:            ConflictDelete,
			Severity:        SeverityBlocking,
			StartLine:       1,
			EndLine:         0,
			TemplateContent: string(tgt.Data),
		}}}
	}
	if hasBase && base.Sum == tgt.Sum {
		// deleted locally, template unchanged: drift
		fc := FileChange{Path: path, Kind: ChangeSkip, Reason: "deleted-locally"}
		if e.driftPolicy != config.DriftLocalWins {
			severity := SeverityDrift
			if e.driftPolicy == config.DriftConflict {
				severity = SeverityBlocking
			}
			fc.Conflicts = append(fc.Conflicts, Conflict{
				Kind:            ConflictDrift,
				Severity:        severity,
				StartLine:       1,
				EndLine:         0,
				TemplateContent: string(tgt.Data),
			})
		}
		return fc
	}
	return FileChange{Path: path, Kind: ChangeAdd, Content: cloneBytes(tgt.Data)}
}

// planDelete handles a path the baseline carried but the target dropped.
func (e *Engine) planDelete(path string, own pathrule.Ownership, base snapshot.File, loc snapshot.File, hasLoc bool) FileChange {
	if !hasLoc {
		return FileChange{Path: path, Kind: ChangeSkip, Reason: "already-absent"}
	}
	if own == pathrule.OwnershipLocal {
		return FileChange{Path: path, Kind: ChangeSkip, Reason: "local-owned"}
	}
	if own == pathrule.OwnershipTemplate {
		return FileChange{Path: path, Kind: ChangeDelete}
	}

	locLines := annotate.SplitLines(string(loc.Data))
	blocks, err := e.parser.Parse(path, string(loc.Data))
	if err != nil {
		return FileChange{Path: path, Kind: ChangeError, Err: err.Error()}
	}
	if wrapsWholeFile(blocks, locLines) && blocks[0].Mode == annotate.ModeIgnore {
		return FileChange{Path: path, Kind: ChangeSkip, Reason: "ignored"}
	}
	if len(blocks) > 0 || loc.Sum != base.Sum {
		// local investment in a file the template wants gone
		return FileChange{Path: path, Kind: ChangeSkip, Reason: "delete-blocked", Conflicts: []Conflict{{
			Kind:         ConflictDelete,
			Severity:     SeverityBlocking,
			StartLine:    1,
			EndLine:      len(locLines),
			LocalContent: string(loc.Data),
		}}}
	}
	return FileChange{Path: path, Kind: ChangeDelete}
}

// planPresent handles a path all three sides know about (baseline may be
// absent when the template added the file after the applied version).
func (e *Engine) planPresent(path string, own pathrule.Ownership, base snapshot.File, hasBase bool, tgt, loc snapshot.File) FileChange {
	if loc.Sum == tgt.Sum {
		return FileChange{Path: path, Kind: ChangeSkip, Reason: "up-to-date"}
	}
	if own == pathrule.OwnershipLocal {
		return FileChange{Path: path, Kind: ChangeSkip, Reason: "local-owned"}
	}
	if own == pathrule.OwnershipTemplate {
		return FileChange{Path: path, Kind: ChangeModify, Content: cloneBytes(tgt.Data)}
	}

	if isBinary(base.Data) || isBinary(tgt.Data) || isBinary(loc.Data) {
		return e.planBinary(path, base, hasBase, tgt, loc)
	}

	var baseText string
	if hasBase {
		baseText = string(base.Data)
	}
	return e.planMerge(path, baseText, string(tgt.Data), string(loc.Data))
}

// planMerge performs annotation-governed region reconciliation.
func (e *Engine) planMerge(path, base, tgt, loc string) FileChange {
	blocks, err := e.parser.Parse(path, loc)
	if err != nil {
		return FileChange{Path: path, Kind: ChangeError, Err: err.Error()}
	}

	locLines := annotate.SplitLines(loc)
	if wrapsWholeFile(blocks, locLines) && blocks[0].Mode == annotate.ModeIgnore {
		return FileChange{Path: path, Kind: ChangeSkip, Reason: "ignored"}
	}

	merged, conflicts := mergeThreeWay(
		annotate.SplitLines(base),
		annotate.SplitLines(tgt),
		locLines,
		blocks,
		e.driftPolicy,
	)

	content := strings.Join(merged, "")
	if content == loc {
		fc := FileChange{Path: path, Kind: ChangeSkip, Reason: "up-to-date", Conflicts: conflicts}
		for _, c := range conflicts {
			fc.Reason = "drift"
			if c.Blocking() {
				fc.Reason = "needs-resolution"
				break
			}
		}
		return fc
	}
	return FileChange{Path: path, Kind: ChangeModify, Content: []byte(content), Conflicts: conflicts}
}

// planBinary handles content that cannot be merged by line. The template
// version wins when the adopter left the file alone; anything else needs a
// human.
func (e *Engine) planBinary(path string, base snapshot.File, hasBase bool, tgt, loc snapshot.File) FileChange {
	if hasBase && loc.Sum == base.Sum {
		return FileChange{Path: path, Kind: ChangeModify, Content: cloneBytes(tgt.Data)}
	}
	if hasBase && base.Sum == tgt.Sum {
		// template unchanged: local edit to a binary is drift
		fc := FileChange{Path: path, Kind: ChangeSkip, Reason: "local-edit"}
		if e.driftPolicy != config.DriftLocalWins {
			severity := SeverityDrift
			if e.driftPolicy == config.DriftConflict {
				severity = SeverityBlocking
			}
			fc.Conflicts = append(fc.Conflicts, Conflict{Kind: ConflictDrift, Severity: severity, StartLine: 1, EndLine: 0})
		}
		return fc
	}
	return FileChange{Path: path, Kind: ChangeSkip, Reason: "binary-conflict", Conflicts: []Conflict{{
		Kind:      ConflictContent,
		Severity:  SeverityBlocking,
		StartLine: 1,
		EndLine:   0,
	}}}
}

// wrapsWholeFile reports whether a single block spans every line of the
// file, ignoring trailing blank lines after the end marker.
func wrapsWholeFile(blocks []annotate.Block, lines []string) bool {
	if len(blocks) != 1 {
		return false
	}
	b := blocks[0]
	if b.Start != 0 || b.End >= len(lines) {
		return false
	}
	for _, l := range lines[b.End+1:] {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

func get(s *snapshot.Snapshot, path string) (snapshot.File, bool) {
	if s == nil {
		return snapshot.File{}, false
	}
	return s.Get(path)
}

func isBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
