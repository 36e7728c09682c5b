package cmd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fleetform/tplsync/internal/orchestrator"
	"github.com/fleetform/tplsync/internal/tplsrc"
	"github.com/fleetform/tplsync/pkg/buildinfo"
	"github.com/fleetform/tplsync/pkg/config"
	"github.com/fleetform/tplsync/pkg/exitcode"
	"github.com/fleetform/tplsync/pkg/logger"
)

// errHumanAction marks a run that completed but left conflicts or per-file
// errors behind. Execute maps it to exitcode.Conflicts instead of Fatal.
var errHumanAction = errors.New("conflicts or errors require human action")

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tplsync",
		Short: "Keep repositories in sync with a living template",
		Long: `Tplsync reconciles a repository against the template it was generated
from: it plans a three-way merge between the adopted baseline, the current
template version, and your local edits, honoring inline ignore/protect
annotations and per-path ownership rules.

Examples:
   tplsync adopt --template rat:gh:org/repo@v1.0.0
   tplsync plan --to v2.0.0
   tplsync apply --to v2.0.0 --summary-file sync.md
   tplsync drift`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json-logs", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringArray("repo", []string{"."}, "Repository root (repeatable for apply across a fleet)")

	cmd.Version = buildinfo.BinaryVersion
	cmd.SetVersionTemplate("tplsync {{.Version}}\n")

	return cmd
}

// registerSubcommands adds a fresh instance of every subcommand, so each
// command tree carries its own flag state.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(newAdoptCommand())
	cmd.AddCommand(newPlanCommand())
	cmd.AddCommand(newApplyCommand())
	cmd.AddCommand(newDriftCommand())
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

// Execute runs the root command and translates the outcome into the exit
// code contract: 0 clean, 1 conflicts or errors, 2 fatal.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if errors.Is(err, errHumanAction) {
		os.Exit(exitcode.Conflicts)
	}
	logger.Error("command failed", logger.Err(err))
	os.Exit(exitcode.Fatal)
}

func init() {
	registerSubcommands(rootCmd)
}

// repoRoots resolves the --repo flag to absolute paths.
func repoRoots(cmd *cobra.Command) ([]string, error) {
	roots, err := cmd.Flags().GetStringArray("repo")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

// newOrchestrator loads the repo's config and wires a fetcher with a
// user-level template cache.
func newOrchestrator(root string) (*orchestrator.Orchestrator, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	cache, err := templateCacheDir()
	if err != nil {
		return nil, err
	}
	return orchestrator.New(root, cfg, tplsrc.NewFetcher(cache, cfg.Fetch)), nil
}

func templateCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "tplsync", "templates"), nil
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")
	noColor, _ := cmd.Flags().GetBool("no-color")

	cfg := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "tplsync",
	}

	if err := logger.Initialize(cfg); err != nil {
		if _, writeErr := os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n"); writeErr != nil {
			_ = writeErr
		}
		os.Exit(exitcode.Fatal)
	}
}
