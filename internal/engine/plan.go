package engine

import "fmt"

// ChangeKind classifies a FileChange.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeModify ChangeKind = "modify"
	ChangeDelete ChangeKind = "delete"
	ChangeSkip   ChangeKind = "skip"
	ChangeError  ChangeKind = "error"
)

// ConflictSeverity separates blocking conflicts from drift notices.
type ConflictSeverity string

const (
	// SeverityBlocking conflicts require human resolution before the path
	// can advance to the target version.
	SeverityBlocking ConflictSeverity = "conflict"
	// SeverityDrift marks an adopter edit to a default-owned region with no
	// competing template change. Visible but not blocking.
	SeverityDrift ConflictSeverity = "drift"
)

// ConflictKind names what collided.
type ConflictKind string

const (
	// ConflictContent is a region-level collision between template and
	// local deltas.
	ConflictContent ConflictKind = "content"
	// ConflictProtected is a template delta touching a protect block.
	ConflictProtected ConflictKind = "protected"
	// ConflictDelete is a file-level presence disagreement: a template
	// removal blocked by local state, or a local removal of a file the
	// template is still evolving.
	ConflictDelete ConflictKind = "delete"
	// ConflictDrift is drift-without-annotation.
	ConflictDrift ConflictKind = "drift"
)

// Conflict references the competing template and local content for one
// region, with enough context to render a diff for human review.
type Conflict struct {
	Kind     ConflictKind     `json:"kind"`
	Severity ConflictSeverity `json:"severity"`
	// StartLine and EndLine are 1-based line numbers in the adopter's
	// current file delimiting the region (EndLine inclusive; EndLine ==
	// StartLine-1 denotes a pure insertion point).
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	// BlockID is set when the region falls inside a named inline block.
	BlockID string `json:"block_id,omitempty"`
	// TemplateContent is the template's proposed content for the region.
	TemplateContent string `json:"template_content"`
	// LocalContent is the adopter's current content for the region.
	LocalContent string `json:"local_content"`
}

// Blocking reports whether the conflict requires human action.
func (c Conflict) Blocking() bool {
	return c.Severity == SeverityBlocking
}

// FileChange is the unit of a Plan: one managed path's disposition when
// moving from baseline to target.
type FileChange struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
	// Content is the resulting file content (nil for skip, delete, error).
	Content []byte `json:"-"`
	// Conflicts holds region conflicts and drift notices for the path.
	Conflicts []Conflict `json:"conflicts,omitempty"`
	// Err describes a file-scoped failure (malformed annotations); such
	// paths are excluded from auto-apply.
	Err string `json:"error,omitempty"`
	// Reason explains skip dispositions ("local-owned", "ignored", ...).
	Reason string `json:"reason,omitempty"`
}

// Conflicted reports whether any blocking conflict is attached. Conflicted
// changes are never auto-applied.
func (fc *FileChange) Conflicted() bool {
	for _, c := range fc.Conflicts {
		if c.Blocking() {
			return true
		}
	}
	return false
}

// Actionable reports whether apply should write this change.
func (fc *FileChange) Actionable() bool {
	if fc.Kind == ChangeSkip || fc.Kind == ChangeError {
		return false
	}
	return !fc.Conflicted()
}

// Plan is the ordered set of FileChanges covering every managed path touched
// by moving from baseline to target. A Plan never mutates the filesystem.
type Plan struct {
	Changes []FileChange `json:"changes"`
}

// Change returns the entry for path, if present.
func (p *Plan) Change(path string) (*FileChange, bool) {
	for i := range p.Changes {
		if p.Changes[i].Path == path {
			return &p.Changes[i], true
		}
	}
	return nil, false
}

// HasBlockingConflicts reports whether any path needs human resolution.
func (p *Plan) HasBlockingConflicts() bool {
	for i := range p.Changes {
		if p.Changes[i].Conflicted() {
			return true
		}
	}
	return false
}

// HasErrors reports whether any path failed with a file-scoped error.
func (p *Plan) HasErrors() bool {
	for i := range p.Changes {
		if p.Changes[i].Kind == ChangeError {
			return true
		}
	}
	return false
}

// Empty reports whether the plan would change nothing: every entry is a
// skip with no conflicts and no errors.
func (p *Plan) Empty() bool {
	for i := range p.Changes {
		fc := &p.Changes[i]
		if fc.Kind != ChangeSkip || len(fc.Conflicts) > 0 || fc.Err != "" {
			return false
		}
	}
	return true
}

// Summary tallies dispositions for reporting.
type Summary struct {
	Adds      int `json:"adds"`
	Modifies  int `json:"modifies"`
	Deletes   int `json:"deletes"`
	Skips     int `json:"skips"`
	Conflicts int `json:"conflicts"`
	Drift     int `json:"drift"`
	Errors    int `json:"errors"`
}

// Summarize counts the plan's dispositions.
func (p *Plan) Summarize() Summary {
	var s Summary
	for i := range p.Changes {
		fc := &p.Changes[i]
		if fc.Conflicted() {
			s.Conflicts++
		} else {
			switch fc.Kind {
			case ChangeAdd:
				s.Adds++
			case ChangeModify:
				s.Modifies++
			case ChangeDelete:
				s.Deletes++
			case ChangeSkip:
				s.Skips++
			case ChangeError:
				s.Errors++
			}
		}
		for _, c := range fc.Conflicts {
			if c.Severity == SeverityDrift {
				s.Drift++
			}
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d add, %d modify, %d delete, %d skip, %d conflict, %d drift, %d error",
		s.Adds, s.Modifies, s.Deletes, s.Skips, s.Conflicts, s.Drift, s.Errors)
}
