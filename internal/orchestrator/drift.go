package orchestrator

import (
	"context"

	"github.com/fleetform/tplsync/internal/lockfile"
	"github.com/fleetform/tplsync/internal/pathrule"
	"github.com/fleetform/tplsync/internal/snapshot"
)

// DriftStatus classifies one managed path against its last-applied state.
type DriftStatus string

const (
	// DriftClean means on-disk content matches the lockfile hash.
	DriftClean DriftStatus = "clean"
	// DriftModified means the adopter changed the file since last apply.
	DriftModified DriftStatus = "modified"
	// DriftMissing means the adopter removed the file.
	DriftMissing DriftStatus = "missing"
)

// DriftEntry is the drift disposition of one managed path.
type DriftEntry struct {
	Path      string             `json:"path"`
	Status    DriftStatus        `json:"status"`
	Version   string             `json:"version"`
	Ownership pathrule.Ownership `json:"ownership"`
}

// DriftReport covers every path the lockfile tracks.
type DriftReport struct {
	Entries []DriftEntry `json:"entries"`
}

// HasDrift reports whether any path diverged.
func (r *DriftReport) HasDrift() bool {
	for _, e := range r.Entries {
		if e.Status != DriftClean {
			return true
		}
	}
	return false
}

// Drift compares on-disk content against the lockfile's recorded hashes.
// It needs no template fetch: the lockfile carries everything required.
func (o *Orchestrator) Drift(ctx context.Context) (*DriftReport, error) {
	lock, err := lockfile.Load(o.LockPath())
	if err != nil {
		return nil, err
	}
	adopter, err := snapshot.FromDir(o.root)
	if err != nil {
		return nil, err
	}

	report := &DriftReport{}
	for _, p := range lock.Paths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, _ := lock.Entry(p)
		entry := DriftEntry{Path: p, Version: e.Version, Ownership: e.Ownership}
		switch f, ok := adopter.Get(p); {
		case !ok:
			entry.Status = DriftMissing
		case f.Sum != e.Hash:
			entry.Status = DriftModified
		default:
			entry.Status = DriftClean
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}
