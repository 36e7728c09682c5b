// Package orchestrator drives the adopt/plan/apply lifecycle for one
// adopter repository: it resolves template versions, assembles the three
// snapshots the engine reconciles, and owns every filesystem side effect.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fleetform/tplsync/internal/engine"
	"github.com/fleetform/tplsync/internal/lockfile"
	"github.com/fleetform/tplsync/internal/pathrule"
	"github.com/fleetform/tplsync/internal/render"
	"github.com/fleetform/tplsync/internal/snapshot"
	"github.com/fleetform/tplsync/internal/tplsrc"
	"github.com/fleetform/tplsync/pkg/config"
	"github.com/fleetform/tplsync/pkg/logger"
	"github.com/fleetform/tplsync/pkg/safeio"
)

// State is the run's position in the sync lifecycle.
type State string

const (
	StateAdopted          State = "adopted"
	StatePlanned          State = "planned"
	StateApplying         State = "applying"
	StateApplied          State = "applied"
	StatePartiallyApplied State = "partially-applied"
	StateConflictsPending State = "conflicts-pending"
)

// ErrApplyInProgress means another apply holds the repository guard.
var ErrApplyInProgress = errors.New("another apply is in progress for this repository")

// ErrAlreadyAdopted means a lockfile already records a template for this
// repository; adoption is a one-time operation.
var ErrAlreadyAdopted = errors.New("repository already adopted a template")

// guardName is the repo-scoped mutex file held for the apply phase.
const guardName = ".tplsync.apply.lock"

// Orchestrator runs the lifecycle against one repository root.
type Orchestrator struct {
	root    string
	cfg     *config.Config
	fetcher *tplsrc.Fetcher
}

// New builds an Orchestrator for the repository at root.
func New(root string, cfg *config.Config, fetcher *tplsrc.Fetcher) *Orchestrator {
	return &Orchestrator{root: root, cfg: cfg, fetcher: fetcher}
}

// Root returns the repository root this orchestrator operates on.
func (o *Orchestrator) Root() string { return o.root }

// LockPath returns the repository's lockfile location.
func (o *Orchestrator) LockPath() string {
	return filepath.Join(o.root, lockfile.DefaultName)
}

// Adopt initializes the lockfile: every managed path present in the
// template at refStr gets a LockEntry at that version. Adoption writes no
// repository files; the first plan run surfaces the delta between template
// and current adopter state. When overrides are given they replace the
// template manifest's suggested rules.
func (o *Orchestrator) Adopt(ctx context.Context, refStr string, overrides ...pathrule.Rule) (*lockfile.Lock, error) {
	if _, err := os.Stat(o.LockPath()); err == nil {
		return nil, ErrAlreadyAdopted
	}

	ref, err := tplsrc.ParseRef(refStr)
	if err != nil {
		return nil, err
	}

	resolved, err := o.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	rules := overrides
	if len(rules) == 0 {
		rules = manifestRules(resolved.Manifest)
	}
	ruleSet, err := pathrule.Compile(rules)
	if err != nil {
		return nil, err
	}

	lock := lockfile.New(lockfile.Template{
		Source: ref.Source(),
		Ref:    ref.Version,
		Commit: resolved.Commit,
	}, rules)

	for _, p := range resolved.Files.Paths() {
		rule, ok := ruleSet.Match(p)
		if !ok {
			continue
		}
		f, _ := resolved.Files.Get(p)
		lock.Upsert(lockfile.Entry{
			Path:      p,
			Version:   ref.Version,
			Hash:      f.Sum,
			Ownership: rule.Ownership,
		})
	}

	if err := lock.Save(o.LockPath()); err != nil {
		return nil, err
	}
	logger.Info("adopted template",
		logger.String("template", ref.String()),
		logger.Int("paths", len(lock.Entries)))
	return lock, nil
}

// PlanResult carries a computed plan plus the context needed to apply it.
type PlanResult struct {
	State  State
	Plan   *engine.Plan
	Lock   *lockfile.Lock
	Target *tplsrc.Resolved
	// TargetRef is the fully qualified ref the plan moves toward.
	TargetRef tplsrc.Ref
}

// Plan computes the reconciliation plan toward toVersion (empty means the
// version already recorded in the lockfile). It is read-only and safely
// re-runnable.
func (o *Orchestrator) Plan(ctx context.Context, toVersion string) (*PlanResult, error) {
	lock, err := lockfile.Load(o.LockPath())
	if err != nil {
		return nil, err
	}

	source, err := tplsrc.ParseRef(lock.Template.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lockfile.ErrCorrupt, err)
	}
	if toVersion == "" {
		toVersion = lock.Template.Ref
	}
	targetRef := source.WithVersion(toVersion)

	target, err := o.resolve(ctx, targetRef)
	if err != nil {
		return nil, err
	}

	baseline, err := o.baselineSnapshot(ctx, source, lock)
	if err != nil {
		return nil, err
	}

	adopter, err := snapshot.FromDir(o.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository state: %w", err)
	}

	rules := lock.Rules
	if len(rules) == 0 && target.Manifest != nil {
		rules = target.Manifest.Rules()
	}
	ruleSet, err := pathrule.Compile(rules)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lockfile.ErrCorrupt, err)
	}
	if len(rules) == 0 {
		ruleSet = nil // engine default: everything mixed
	}

	eng := engine.New(engine.Options{
		Rules:           ruleSet,
		DriftPolicy:     o.cfg.Sync.DriftPolicy,
		Workers:         o.cfg.Sync.Workers,
		CommentPrefixes: o.cfg.Sync.CommentPrefixes,
	})
	plan, err := eng.Plan(ctx, engine.Inputs{
		Baseline: baseline,
		Target:   target.Files,
		Adopter:  adopter,
	})
	if err != nil {
		return nil, err
	}

	state := StatePlanned
	if plan.HasBlockingConflicts() || plan.HasErrors() {
		state = StateConflictsPending
	}
	return &PlanResult{
		State:     state,
		Plan:      plan,
		Lock:      lock,
		Target:    target,
		TargetRef: targetRef,
	}, nil
}

// ApplyResult is the per-path outcome of an apply run.
type ApplyResult struct {
	State State
	Plan  *engine.Plan
	// Applied lists paths whose write and lock update both committed.
	Applied []string
	// Failed maps paths to their write errors. Their lock entries are
	// untouched, so the next plan recomputes the same delta.
	Failed map[string]string
	// TargetRef is the version the applied paths now record.
	TargetRef tplsrc.Ref
}

// Apply computes the plan toward toVersion and executes it: each
// non-conflicted FileChange is written and its lock entry advanced as one
// unit, file by file. A failure on one path never aborts the others;
// cancellation is honored between files, never mid-file.
func (o *Orchestrator) Apply(ctx context.Context, toVersion string) (*ApplyResult, error) {
	pr, err := o.Plan(ctx, toVersion)
	if err != nil {
		return nil, err
	}

	release, err := o.acquireGuard()
	if err != nil {
		return nil, err
	}
	defer release()

	res := &ApplyResult{
		State:     StateApplying,
		Plan:      pr.Plan,
		Failed:    make(map[string]string),
		TargetRef: pr.TargetRef,
	}

	lock := pr.Lock
	for _, fc := range pr.Plan.Changes {
		if err := ctx.Err(); err != nil {
			// paths not yet written keep their prior lock state
			res.State = StatePartiallyApplied
			return res, err
		}
		if !fc.Actionable() {
			continue
		}
		if err := o.applyOne(lock, &fc, pr); err != nil {
			logger.Error("apply failed",
				logger.String("path", fc.Path),
				logger.Err(err))
			res.Failed[fc.Path] = err.Error()
			continue
		}
		if fc.Kind != engine.ChangeSkip {
			res.Applied = append(res.Applied, fc.Path)
		}
	}

	res.State = terminalState(pr.Plan, res.Failed)
	logger.Info("apply finished",
		logger.String("state", string(res.State)),
		logger.Int("applied", len(res.Applied)),
		logger.Int("failed", len(res.Failed)))
	return res, nil
}

// applyOne writes one change and advances its lock entry. The lockfile is
// persisted before returning so the write and its provenance move together.
func (o *Orchestrator) applyOne(lock *lockfile.Lock, fc *engine.FileChange, pr *PlanResult) error {
	abs := filepath.Join(o.root, filepath.FromSlash(fc.Path))

	switch fc.Kind {
	case engine.ChangeAdd, engine.ChangeModify:
		if err := safeio.WriteFileAtomic(abs, fc.Content); err != nil {
			return err
		}
		rule, _ := ruleFor(lock, fc.Path)
		lock.Upsert(lockfile.Entry{
			Path:      fc.Path,
			Version:   pr.TargetRef.Version,
			Hash:      snapshot.Hash(fc.Content),
			Ownership: rule,
		})
	case engine.ChangeDelete:
		if err := safeio.RemoveFilePruneEmpty(abs); err != nil {
			return err
		}
		lock.Remove(fc.Path)
	default:
		return nil
	}

	return lock.Save(o.LockPath())
}

// baselineSnapshot reconstructs the template content each path was last
// synced against. Entries may record different versions after a partial
// apply, so each distinct version is resolved separately.
func (o *Orchestrator) baselineSnapshot(ctx context.Context, source tplsrc.Ref, lock *lockfile.Lock) (*snapshot.Snapshot, error) {
	byVersion := make(map[string][]string)
	for _, e := range lock.Entries {
		byVersion[e.Version] = append(byVersion[e.Version], e.Path)
	}

	files := make(map[string][]byte)
	for version, paths := range byVersion {
		resolved, err := o.resolve(ctx, source.WithVersion(version))
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			if f, ok := resolved.Files.Get(p); ok {
				files[p] = f.Data
			}
		}
	}
	return snapshot.New(files), nil
}

// resolve fetches a ref and applies the template's render rules.
func (o *Orchestrator) resolve(ctx context.Context, ref tplsrc.Ref) (*tplsrc.Resolved, error) {
	resolved, err := o.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if resolved.Manifest != nil && len(resolved.Manifest.Render) > 0 {
		renderer, err := render.New(resolved.Manifest.Render, o.cfg.Render.Values)
		if err != nil {
			return nil, err
		}
		resolved.Files = renderer.Apply(resolved.Files)
	}
	return resolved, nil
}

// acquireGuard takes the repo-scoped apply mutex.
func (o *Orchestrator) acquireGuard() (func(), error) {
	path := filepath.Join(o.root, guardName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrApplyInProgress
		}
		return nil, fmt.Errorf("failed to acquire apply guard: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()
	return func() { _ = os.Remove(path) }, nil
}

func terminalState(plan *engine.Plan, failed map[string]string) State {
	if len(failed) > 0 || plan.HasErrors() {
		return StatePartiallyApplied
	}
	if plan.HasBlockingConflicts() {
		return StateConflictsPending
	}
	return StateApplied
}

func ruleFor(lock *lockfile.Lock, path string) (pathrule.Ownership, bool) {
	if e, ok := lock.Entry(path); ok {
		return e.Ownership, true
	}
	rules, err := lock.CompiledRules()
	if err == nil {
		if r, ok := rules.Match(path); ok {
			return r.Ownership, true
		}
	}
	return pathrule.OwnershipMixed, false
}

func manifestRules(m *tplsrc.Manifest) []pathrule.Rule {
	if m != nil && len(m.Paths) > 0 {
		return m.Rules()
	}
	return []pathrule.Rule{{Pattern: "**", Ownership: pathrule.OwnershipMixed}}
}
