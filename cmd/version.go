package cmd

import (
	"encoding/json"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fleetform/tplsync/pkg/buildinfo"
)

// newVersionCommand creates a fresh version command instance.
func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show tplsync version information",
		RunE:  runVersionCmd,
	}
	cmd.Flags().Bool("extended", false, "Show build and platform details")
	cmd.Flags().Bool("json", false, "Output version information in JSON format")
	return cmd
}

type versionInfo struct {
	Version       string `json:"version"`
	ModuleVersion string `json:"moduleVersion,omitempty"`
	GoVersion     string `json:"goVersion,omitempty"`
	Platform      string `json:"platform,omitempty"`
}

func runVersionCmd(cmd *cobra.Command, _ []string) error {
	extended, _ := cmd.Flags().GetBool("extended")
	jsonOut, _ := cmd.Flags().GetBool("json")

	info := versionInfo{Version: buildinfo.BinaryVersion}
	if extended {
		info.ModuleVersion = buildinfo.ModuleVersion()
		info.GoVersion = runtime.Version()
		info.Platform = buildinfo.Platform()
	}

	if jsonOut {
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("tplsync %s\n", info.Version)
	if extended {
		if info.ModuleVersion != "" {
			cmd.Printf("module:   %s\n", info.ModuleVersion)
		}
		cmd.Printf("go:       %s\n", info.GoVersion)
		cmd.Printf("platform: %s\n", info.Platform)
	}
	return nil
}
