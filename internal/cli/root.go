// Package cli implements the cobra commands of the hdlenv binary.
//
// Each subcommand (setup, status, clean, version) lives in its own file.
// This file holds the root command, the persistent flags shared by every
// subcommand, and the error-to-exit-code translation.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fennec-eda/hdlenv/internal/model"
)

// Persistent flag values. Bound once on the root command; cobra makes
// them visible to every subcommand.
var (
	// jsonOutput switches stdout from aligned text to JSON documents.
	// Errors follow the same switch on stderr, so scripted callers can
	// parse every channel.
	jsonOutput bool

	// verbose enables the step-by-step trace on stderr.
	verbose bool
)

// Build identification, overwritten at link time by the main package.
var (
	// Version is the release tag of the binary (e.g. "1.0.0").
	Version = "dev"

	// Commit is the Git commit the binary was built from.
	Commit = "none"

	// Date is when the binary was built.
	Date = "unknown"
)

// errorPayload is the JSON shape of an error printed to stderr when
// --json is set.
type errorPayload struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// NewRootCommand assembles the hdlenv command tree.
//
// The root command carries no behavior of its own beyond help text; it
// exists to own the persistent flags and the subcommand registry.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "hdlenv",
		Short: "Hdl21 development workspace bootstrapper",
		Long: `hdlenv bootstraps and maintains an Hdl21 development workspace: it clones
the VLSIR sibling repository, installs the Python packages in editable mode,
and wires up the pre-commit hook.

State lives in a .hdlenv/ journal inside the repository and, for sandboxed
workspaces, in labels on the Docker container. Run "hdlenv status" at any
time to see how the workspace compares to its manifest.`,

		// Errors are printed by Execute in the selected output format,
		// so cobra's own usage/error echoing stays off.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
	}

	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	for _, sub := range []*cobra.Command{
		NewSetupCommand(),
		NewStatusCommand(),
		NewCleanCommand(),
		NewVersionCommand(),
	} {
		root.AddCommand(sub)
	}

	return root
}

// Execute runs the command tree and exits the process with the code the
// returned error asks for: a CLIError anywhere in the chain supplies its
// own code, anything else is a general error.
func Execute(rootCmd *cobra.Command) {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(cliErr.Message, cliErr.Err)
		os.Exit(int(cliErr.Code))
	}

	printError(err.Error(), nil)
	os.Exit(int(model.ExitGeneralError))
}

// printError writes one error to stderr, honoring --json. stdout is
// reserved for command results, so even JSON errors go to stderr.
func printError(message string, cause error) {
	if !jsonOutput {
		if cause != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, cause)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
		return
	}

	payload := struct {
		Error errorPayload `json:"error"`
	}{Error: errorPayload{Message: message}}
	if cause != nil {
		payload.Error.Detail = cause.Error()
	}

	data, _ := json.MarshalIndent(payload, "", "  ")
	fmt.Fprintln(os.Stderr, string(data))
}

// VerboseLog writes a trace line to stderr when --verbose is set.
// Subcommands narrate each external command through it.
func VerboseLog(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput reports whether --json is set. Subcommands check it when
// choosing between aligned text and marshalled output.
func IsJSONOutput() bool {
	return jsonOutput
}
