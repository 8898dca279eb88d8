// Package model holds the domain types shared across the hdlenv CLI.
//
// Nothing here imports anything beyond the standard library. RunRecord
// and StepResult describe one execution of a bootstrap or teardown
// sequence; CheckState classifies what the read-only `hdlenv status`
// command finds. Sandbox metadata lives in Docker labels and is rebuilt
// on every invocation, which leaves the run journal as the only state
// hdlenv persists itself.
//
// ExitCode and CLIError tie errors to process exit codes: command
// implementations return CLIError values and the root command turns
// them into os.Exit calls.
package model
