// Package fleet runs sync operations across many adopter repositories with
// bounded concurrency. Repositories are fully independent: each owns its
// lockfile and working copy, so one repo's failure never blocks another's.
package fleet

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/fleetform/tplsync/internal/orchestrator"
	"github.com/fleetform/tplsync/pkg/logger"
)

// Outcome is one repository's result. Err is set when the run failed at
// the resource level (corrupt lockfile, unreachable template); per-path
// conflicts live inside Result.
type Outcome struct {
	Root   string
	Result *orchestrator.ApplyResult
	Err    error
}

// Runner bounds how many repositories sync at once.
type Runner struct {
	sem *semaphore.Weighted
}

// NewRunner builds a Runner allowing limit concurrent repositories
// (0 = NumCPU).
func NewRunner(limit int) *Runner {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return &Runner{sem: semaphore.NewWeighted(int64(limit))}
}

// Apply runs Apply on every orchestrator concurrently and returns outcomes
// in input order.
func (r *Runner) Apply(ctx context.Context, orchs []*orchestrator.Orchestrator, toVersion string) []Outcome {
	outcomes := make([]Outcome, len(orchs))
	var wg sync.WaitGroup

	for i, o := range orchs {
		outcomes[i].Root = o.Root()
		if err := r.sem.Acquire(ctx, 1); err != nil {
			outcomes[i].Err = err
			continue
		}
		wg.Add(1)
		go func(i int, o *orchestrator.Orchestrator) {
			defer wg.Done()
			defer r.sem.Release(1)
			res, err := o.Apply(ctx, toVersion)
			outcomes[i].Result = res
			outcomes[i].Err = err
			if err != nil {
				logger.Error("repository sync failed",
					logger.String("repo", o.Root()),
					logger.Err(err))
			}
		}(i, o)
	}

	wg.Wait()
	return outcomes
}

// Clean reports whether every repository applied without conflicts,
// errors, or run failures.
func Clean(outcomes []Outcome) bool {
	for _, oc := range outcomes {
		if oc.Err != nil {
			return false
		}
		if oc.Result == nil || oc.Result.State != orchestrator.StateApplied {
			return false
		}
	}
	return true
}
