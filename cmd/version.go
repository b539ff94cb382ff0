package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	commit    = ""
	buildTime = ""
)

// SetBuildInfo records the commit and build time injected through ldflags.
// Empty values fall back to the VCS stamp the Go toolchain embeds.
func SetBuildInfo(c, bt string) {
	commit = c
	buildTime = bt
}

// buildInfo is what the relay reports about its own binary.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	GoVersion string `json:"goVersion"`
}

func currentBuildInfo() buildInfo {
	info := buildInfo{
		Version:   version,
		Commit:    commit,
		Built:     buildTime,
		GoVersion: runtime.Version(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == "":
				info.Commit = s.Value
			case s.Key == "vcs.time" && info.Built == "":
				info.Built = s.Value
			}
		}
	}

	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.Built == "" {
		info.Built = "unknown"
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentBuildInfo()
		w := cmd.OutOrStdout()

		if short, _ := cmd.Flags().GetBool("short"); short {
			_, err := fmt.Fprintln(w, info.Version)
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return json.NewEncoder(w).Encode(info)
		}

		_, err := fmt.Fprintf(w, "lyrics-relay %s (commit %s, built %s, %s)\n", info.Version, info.Commit, info.Built, info.GoVersion)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().Bool("short", false, "print version string only")
	versionCmd.Flags().Bool("json", false, "output as JSON")
}
