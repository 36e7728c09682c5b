package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleetform/tplsync/internal/fleet"
	"github.com/fleetform/tplsync/internal/orchestrator"
	"github.com/fleetform/tplsync/internal/report"
	"github.com/fleetform/tplsync/pkg/logger"
	"github.com/fleetform/tplsync/pkg/safeio"
)

// newApplyCommand creates a fresh apply command instance.
func newApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a template version to one or more repositories",
		Long: `Apply plans and executes the move to the target template version. Each
clean file is written and recorded in the lockfile as one unit; conflicted
files are left untouched for human resolution. With repeated --repo flags
the same upgrade runs across a fleet, and one repository's failure never
aborts the others.`,
		RunE: runApply,
	}
	cmd.Flags().String("to", "", "Target template version (defaults to the adopted ref)")
	cmd.Flags().String("summary-file", "", "Write a markdown apply summary to this path")
	cmd.Flags().Int("parallel", 0, "Max repositories applied concurrently (0 = NumCPU)")
	return cmd
}

func runApply(cmd *cobra.Command, _ []string) error {
	toVersion, _ := cmd.Flags().GetString("to")
	summaryFile, _ := cmd.Flags().GetString("summary-file")
	parallel, _ := cmd.Flags().GetInt("parallel")
	roots, err := repoRoots(cmd)
	if err != nil {
		return err
	}

	orchs := make([]*orchestrator.Orchestrator, 0, len(roots))
	for _, root := range roots {
		orch, err := newOrchestrator(root)
		if err != nil {
			return err
		}
		orchs = append(orchs, orch)
	}

	outcomes := fleet.NewRunner(parallel).Apply(cmd.Context(), orchs, toVersion)

	for _, oc := range outcomes {
		if oc.Err != nil {
			cmd.Printf("%s: failed: %v\n", oc.Root, oc.Err)
			continue
		}
		cmd.Printf("%s: %s (%d applied, %d failed)\n",
			oc.Root, oc.Result.State, len(oc.Result.Applied), len(oc.Result.Failed))
	}

	if summaryFile != "" {
		if err := writeSummary(summaryFile, outcomes); err != nil {
			return err
		}
		logger.Info("summary written", logger.String("path", summaryFile))
	}

	for _, oc := range outcomes {
		if oc.Err != nil {
			return oc.Err
		}
	}
	if !fleet.Clean(outcomes) {
		return errHumanAction
	}
	return nil
}

// writeSummary renders one markdown section per repository, separated by
// horizontal rules when more than one was applied.
func writeSummary(path string, outcomes []fleet.Outcome) error {
	sections := make([]string, 0, len(outcomes))
	for _, oc := range outcomes {
		if oc.Err != nil {
			sections = append(sections, "# Template sync failed: "+oc.Root+"\n\n"+oc.Err.Error()+"\n")
			continue
		}
		md, err := report.Markdown(oc.Result)
		if err != nil {
			return err
		}
		sections = append(sections, md)
	}
	return safeio.WriteFileAtomic(path, []byte(strings.Join(sections, "\n---\n\n")))
}
