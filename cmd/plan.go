package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetform/tplsync/internal/report"
)

// newPlanCommand creates a fresh plan command instance.
func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what applying a template version would change",
		Long: `Plan computes the three-way reconciliation between the adopted baseline,
the target template version, and the working tree, without touching any
file. Exit code 1 means the plan contains conflicts or errors a human
must resolve before apply can complete.`,
		RunE: runPlan,
	}
	cmd.Flags().String("to", "", "Target template version (defaults to the adopted ref)")
	cmd.Flags().String("format", "pretty", "Output format (pretty|json)")
	return cmd
}

func runPlan(cmd *cobra.Command, _ []string) error {
	toVersion, _ := cmd.Flags().GetString("to")
	format, _ := cmd.Flags().GetString("format")
	roots, err := repoRoots(cmd)
	if err != nil {
		return err
	}
	if len(roots) != 1 {
		return fmt.Errorf("plan operates on a single repository, got %d --repo flags", len(roots))
	}

	orch, err := newOrchestrator(roots[0])
	if err != nil {
		return err
	}
	pr, err := orch.Plan(cmd.Context(), toVersion)
	if err != nil {
		return err
	}

	switch format {
	case "pretty":
		cmd.Printf("Plan toward %s\n\n", pr.TargetRef.String())
		cmd.Print(report.PlanTable(pr.Plan))
	case "json":
		out, err := json.MarshalIndent(pr.Plan, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
	default:
		return fmt.Errorf("unknown format %q (want pretty or json)", format)
	}

	if pr.Plan.HasBlockingConflicts() || pr.Plan.HasErrors() {
		return errHumanAction
	}
	return nil
}
