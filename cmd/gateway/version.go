package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/gateway/pkg/cli"
	"mercator-hq/gateway/pkg/telemetry/health"
)

// Set with -ldflags "-X main.Version=... -X main.GitCommit=... -X main.BuildDate=...".
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionFlags struct {
	format string
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the gateway version, the commit and date it was built from, and
the Go toolchain and platform. The same fields are served by the decision
server's version endpoint.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(versionFlags.format)
		if err != nil {
			return err
		}
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), versionReport{versionInfo()})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringVar(&versionFlags.format, "format", "text", "output format: text, json")
}

// versionInfo is shared by the version command and the server endpoint.
func versionInfo() health.VersionInfo {
	return health.VersionInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

type versionReport struct {
	health.VersionInfo
}

func (r versionReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mercator gateway %s\n", r.Version)
	fmt.Fprintf(&b, "Git Commit: %s\n", r.Commit)
	fmt.Fprintf(&b, "Build Date: %s\n", r.BuildDate)
	fmt.Fprintf(&b, "Go Version: %s\n", r.GoVersion)
	fmt.Fprintf(&b, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return b.String()
}
