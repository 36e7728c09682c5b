package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetform/tplsync/internal/pathrule"
	"github.com/fleetform/tplsync/pkg/logger"
)

// newAdoptCommand creates a fresh adopt command instance.
func newAdoptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adopt",
		Short: "Record the template provenance for an existing repository",
		Long: `Adopt registers a repository as an instance of a template: it resolves
the template ref, records every managed path in the lockfile at that
version, and writes nothing else. The repository's files are untouched;
run 'plan' afterwards to see how it diverges from the template.

Ownership rules default to the template manifest's suggestions; the
--template-owned, --local-owned, and --mixed flags override them with
explicit glob patterns.`,
		RunE: runAdopt,
	}
	cmd.Flags().String("template", "", "Template ref, e.g. rat:gh:org/repo@v1.0.0 (required)")
	cmd.Flags().StringArray("template-owned", nil, "Glob pattern of template-owned paths (repeatable)")
	cmd.Flags().StringArray("local-owned", nil, "Glob pattern of local-owned paths (repeatable)")
	cmd.Flags().StringArray("mixed", nil, "Glob pattern of mixed-ownership paths (repeatable)")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func runAdopt(cmd *cobra.Command, _ []string) error {
	refStr, _ := cmd.Flags().GetString("template")
	roots, err := repoRoots(cmd)
	if err != nil {
		return err
	}
	if len(roots) != 1 {
		return fmt.Errorf("adopt operates on a single repository, got %d --repo flags", len(roots))
	}

	overrides, err := ruleOverrides(cmd)
	if err != nil {
		return err
	}

	orch, err := newOrchestrator(roots[0])
	if err != nil {
		return err
	}
	lock, err := orch.Adopt(cmd.Context(), refStr, overrides...)
	if err != nil {
		return err
	}

	logger.Info("adopted",
		logger.String("template", refStr),
		logger.Int("files", len(lock.Entries)))
	cmd.Printf("Adopted %s: %d managed files recorded in %s\n",
		refStr, len(lock.Entries), orch.LockPath())
	return nil
}

// ruleOverrides collects the ownership flag patterns in flag order per
// ownership, template-owned first so later local/mixed rules can carve
// exceptions out of broad patterns.
func ruleOverrides(cmd *cobra.Command) ([]pathrule.Rule, error) {
	var rules []pathrule.Rule
	for _, f := range []struct {
		flag      string
		ownership pathrule.Ownership
	}{
		{"template-owned", pathrule.OwnershipTemplate},
		{"local-owned", pathrule.OwnershipLocal},
		{"mixed", pathrule.OwnershipMixed},
	} {
		patterns, err := cmd.Flags().GetStringArray(f.flag)
		if err != nil {
			return nil, err
		}
		for _, p := range patterns {
			rules = append(rules, pathrule.Rule{Pattern: p, Ownership: f.ownership})
		}
	}
	return rules, nil
}
