package cmd

import (
	"fmt"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// newDriftCommand creates a fresh drift command instance.
func newDriftCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drift",
		Short: "Report managed files that diverge from their recorded state",
		Long: `Drift compares every path the lockfile tracks against the working tree,
using only the recorded content hashes. No template fetch happens, so it
is fast enough for a pre-commit hook. Exit code 1 means at least one
managed file was modified or removed locally.`,
		RunE: runDrift,
	}
}

func runDrift(cmd *cobra.Command, _ []string) error {
	roots, err := repoRoots(cmd)
	if err != nil {
		return err
	}
	if len(roots) != 1 {
		return fmt.Errorf("drift operates on a single repository, got %d --repo flags", len(roots))
	}

	orch, err := newOrchestrator(roots[0])
	if err != nil {
		return err
	}
	rep, err := orch.Drift(cmd.Context())
	if err != nil {
		return err
	}

	wPath := len("PATH")
	for _, e := range rep.Entries {
		if w := runewidth.StringWidth(e.Path); w > wPath {
			wPath = w
		}
	}
	cmd.Printf("%s  STATUS    VERSION\n", runewidth.FillRight("PATH", wPath))
	for _, e := range rep.Entries {
		cmd.Printf("%s  %-8s  %s\n", runewidth.FillRight(e.Path, wPath), e.Status, e.Version)
	}

	if rep.HasDrift() {
		return errHumanAction
	}
	return nil
}
