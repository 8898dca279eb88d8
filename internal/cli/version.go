// Package cli — version.go implements the "hdlenv version" command.
//
// The command prints the build information injected via ldflags. With
// --check it also queries GitHub for the newest release tag and reports
// whether this binary is outdated.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tcnksm/go-latest"
)

// versionFlags holds the flag values for the version command.
type versionFlags struct {
	check bool // --check: query GitHub for a newer release
}

// NewVersionCommand creates the "version" cobra command.
func NewVersionCommand() *cobra.Command {
	flags := &versionFlags{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the hdlenv version, commit, and build date.

With --check, also query GitHub for the latest release and report
whether this binary is outdated. The check is advisory: network
failures never fail the command.

Examples:
  hdlenv version
  hdlenv version --check`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(flags)
		},
	}

	cmd.Flags().BoolVar(&flags.check, "check", false, "Check GitHub for a newer release")

	return cmd
}

// runVersion prints the build information and, with --check, the
// release comparison.
func runVersion(flags *versionFlags) error {
	var latestVersion string
	outdated := false
	checked := false

	if flags.check {
		latestVersion, outdated, checked = checkLatestVersion(Version)
	}

	if IsJSONOutput() {
		result := map[string]interface{}{
			"version": Version,
			"commit":  Commit,
			"date":    Date,
		}
		if checked {
			result["latest"] = latestVersion
			result["outdated"] = outdated
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("hdlenv version %s (commit %s, built %s)\n", Version, Commit, Date)
	if checked {
		if outdated {
			fmt.Printf("A newer version is available: %s\n", latestVersion)
		} else {
			fmt.Println("You are using the latest version.")
		}
	}
	return nil
}

// checkLatestVersion queries GitHub for the newest release tag. Failures
// (offline, rate limits, non-semver dev builds) are reported as a failed
// check rather than an error — the comparison is purely advisory.
func checkLatestVersion(current string) (latestVersion string, outdated, ok bool) {
	githubTag := &latest.GithubTag{
		Owner:      "fennec-eda",
		Repository: "hdlenv",
	}

	res, err := latest.Check(githubTag, current)
	if err != nil {
		VerboseLog("Version check failed: %v", err)
		return "", false, false
	}

	return res.Current, res.Outdated, true
}
