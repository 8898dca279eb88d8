// Package model defines the hdlenv CLI's domain types.
//
// These types are the vocabulary shared by the command layer
// (internal/cli), the tool integrations (gitrepo, pytool, hooks,
// sandbox), and the run journal.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RunMode identifies which lifecycle command produced a journaled run.
type RunMode string

const (
	// ModeSetup is a bootstrap run (`hdlenv setup`).
	ModeSetup RunMode = "setup"

	// ModeClean is a teardown run (`hdlenv clean`).
	ModeClean RunMode = "clean"
)

// String returns the mode as stored in the journal's mode column.
func (m RunMode) String() string {
	return string(m)
}

// IsValid reports whether m is one of the two run modes.
func (m RunMode) IsValid() bool {
	switch m {
	case ModeSetup, ModeClean:
		return true
	default:
		return false
	}
}

// ParseRunMode maps a stored mode string, case-insensitively, back
// onto a RunMode. Anything else is an error.
func ParseRunMode(s string) (RunMode, error) {
	mode := RunMode(strings.ToLower(s))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid run mode: %q (valid: setup, clean)", s)
	}
	return mode, nil
}

// StepStatus represents the outcome of a single step within a run.
// A run executes its steps strictly in order; the first failure marks
// every remaining step as skipped.
type StepStatus string

const (
	// StepOK indicates the step's command completed with exit code 0.
	StepOK StepStatus = "ok"

	// StepFailed indicates the step's command failed. The run stops at
	// the first failed step.
	StepFailed StepStatus = "failed"

	// StepSkipped indicates the step never ran, either because an earlier
	// step failed or because the target was already in the desired state
	// (for example a repository that is already cloned).
	StepSkipped StepStatus = "skipped"
)

// String returns the form printed in result tables and written to the
// journal's step rows.
func (s StepStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the three step statuses.
func (s StepStatus) IsValid() bool {
	switch s {
	case StepOK, StepFailed, StepSkipped:
		return true
	default:
		return false
	}
}

// ParseStepStatus is the read-side counterpart of String, folding case
// and rejecting unknown values.
func ParseStepStatus(s string) (StepStatus, error) {
	status := StepStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid step status: %q (valid: ok, failed, skipped)", s)
	}
	return status, nil
}

// RunOutcome represents the aggregate result of a journaled run.
//
// Outcome derivation:
//   - every executed step ok            → OutcomeOK
//   - at least one step failed          → OutcomeFailed
//   - steps ok but warnings were issued → OutcomePartial
type RunOutcome string

const (
	// OutcomeOK indicates all steps completed successfully.
	OutcomeOK RunOutcome = "ok"

	// OutcomeFailed indicates a step failed and the run was aborted.
	OutcomeFailed RunOutcome = "failed"

	// OutcomePartial indicates the run completed but degraded somewhere
	// (for example the pre-commit config was missing, or the journal
	// itself could not be written on a previous attempt).
	OutcomePartial RunOutcome = "partial"
)

func (o RunOutcome) String() string {
	return string(o)
}

// IsValid reports whether o is one of the three outcomes.
func (o RunOutcome) IsValid() bool {
	switch o {
	case OutcomeOK, OutcomeFailed, OutcomePartial:
		return true
	default:
		return false
	}
}

// ParseRunOutcome maps a journal outcome column back onto a
// RunOutcome, folding case.
func ParseRunOutcome(s string) (RunOutcome, error) {
	outcome := RunOutcome(strings.ToLower(s))
	if !outcome.IsValid() {
		return "", fmt.Errorf("invalid run outcome: %q (valid: ok, failed, partial)", s)
	}
	return outcome, nil
}

// StepResult records the execution of a single step within a run.
// The CLI builds these while orchestrating a setup or clean run, prints
// them as the command's result, and hands them to the journal.
type StepResult struct {
	// Name is the step identifier (e.g. "clone:Vlsir", "install:hdl21",
	// "hooks", "verify:vlsirtools").
	Name string `json:"name"`

	// Detail is the human-readable description of what the step did,
	// typically the external command line it ran.
	Detail string `json:"detail"`

	// Status is the step outcome.
	Status StepStatus `json:"status"`

	// Error holds the failure message when Status is StepFailed.
	Error string `json:"error,omitempty"`

	// Note carries auxiliary context, most commonly the skip reason for
	// skipped steps (e.g. "already cloned", "--no-hooks").
	Note string `json:"note,omitempty"`

	// StartedAt is when the step began executing. Zero for skipped steps.
	StartedAt time.Time `json:"startedAt,omitzero"`

	// FinishedAt is when the step finished. Zero for skipped steps.
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

// RunRecord is the aggregate record of one setup or clean run.
// It is the unit of storage in the journal and the unit of reporting
// in `hdlenv status`.
type RunRecord struct {
	// ID is the journal row identifier. Zero until the run is recorded.
	ID int64 `json:"id,omitempty"`

	// Mode distinguishes setup runs from clean runs.
	Mode RunMode `json:"mode"`

	// Workspace is the manifest's workspace name (e.g. "hdl21").
	Workspace string `json:"workspace"`

	// Python is the interpreter the run used (e.g. "python3").
	Python string `json:"python"`

	// Sandbox is true when the run executed inside a Docker sandbox
	// container rather than on the host.
	Sandbox bool `json:"sandbox"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is when the run finished (successfully or not).
	FinishedAt time.Time `json:"finishedAt"`

	// Outcome is the aggregate result derived from the step statuses.
	Outcome RunOutcome `json:"outcome"`

	// Steps holds the per-step results in execution order.
	Steps []StepResult `json:"steps,omitempty"`
}

// FailedStep returns the name of the first failed step, or "" if the
// run had no failures.
func (r *RunRecord) FailedStep() string {
	for i := range r.Steps {
		if r.Steps[i].Status == StepFailed {
			return r.Steps[i].Name
		}
	}
	return ""
}

// DeriveOutcome computes the run outcome from the recorded steps.
// warnings is the number of non-fatal degradations the run reported
// (missing pre-commit config, unwritable journal, and similar).
func (r *RunRecord) DeriveOutcome(warnings int) RunOutcome {
	for i := range r.Steps {
		if r.Steps[i].Status == StepFailed {
			return OutcomeFailed
		}
	}
	if warnings > 0 {
		return OutcomePartial
	}
	return OutcomeOK
}

// SandboxInfo describes one Docker container from the daemon's point of
// view. The sandbox package converts Docker SDK results into this struct
// so the rest of the application never touches SDK types directly.
type SandboxInfo struct {
	// ContainerID is the Docker container ID.
	ContainerID string `json:"containerId"`

	// ContainerName is the container name without the leading "/"
	// artifact the Docker API prepends.
	ContainerName string `json:"containerName"`

	// Image is the image reference the container was created from.
	Image string `json:"image"`

	// Status is Docker's short state string: "running", "exited", "created".
	Status string `json:"status"`

	// Labels holds all Docker labels on the container, including the
	// hdlenv metadata labels.
	Labels map[string]string `json:"labels,omitempty"`
}

// Running reports whether the container is currently running.
func (s *SandboxInfo) Running() bool {
	return s.Status == "running"
}

// SandboxMeta is the workspace metadata persisted on a sandbox container
// as Docker labels. Labels are the only sandbox state store, so SandboxMeta
// must be fully reconstructable from container inspection alone.
type SandboxMeta struct {
	// Workspace is the manifest's workspace name.
	Workspace string `json:"workspace"`

	// RepoPath is the absolute host path of the repository hdlenv ran in.
	RepoPath string `json:"repoPath"`

	// WorkspaceRoot is the absolute host path bind-mounted into the
	// container as the workspace directory.
	WorkspaceRoot string `json:"workspaceRoot"`

	// Image is the image the sandbox container runs.
	Image string `json:"image"`

	// Ports holds the published port mappings, if any.
	Ports []PortMapping `json:"ports,omitempty"`

	// CreatedAt is when the sandbox container was created.
	CreatedAt time.Time `json:"createdAt"`
}

// PortMapping is one published sandbox port.
type PortMapping struct {
	// ContainerPort is the port inside the container.
	ContainerPort int `json:"containerPort"`

	// HostPort is the port published on the host.
	HostPort int `json:"hostPort"`

	// Protocol is "tcp" or "udp".
	Protocol string `json:"protocol"`
}

// CheckState classifies one `hdlenv status` check result.
// Status reporting never fails the command; each check carries its own
// state instead.
type CheckState string

const (
	// CheckOK indicates the checked item is present and healthy.
	CheckOK CheckState = "ok"

	// CheckWarn indicates the item is present but degraded
	// (e.g. a package installed non-editable, a stopped sandbox).
	CheckWarn CheckState = "warn"

	// CheckMissing indicates the item is absent
	// (e.g. a repository not yet cloned, a tool not on PATH).
	CheckMissing CheckState = "missing"
)

func (c CheckState) String() string {
	return string(c)
}

// IsValid reports whether c is one of the three check states.
func (c CheckState) IsValid() bool {
	switch c {
	case CheckOK, CheckWarn, CheckMissing:
		return true
	default:
		return false
	}
}

// workspaceNameRegex admits hyphenated alphanumerics with an
// alphanumeric at each end; a single character also passes.
var workspaceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

// ValidateWorkspaceName rejects names that cannot be embedded in Docker
// container names and label values, which is where the workspace name
// ends up. Hyphenated alphanumerics only, alphanumeric first and last.
func ValidateWorkspaceName(name string) error {
	if name == "" {
		return fmt.Errorf("workspace name must not be empty")
	}
	if !workspaceNameRegex.MatchString(name) {
		return fmt.Errorf("invalid workspace name %q: must contain only alphanumeric characters and hyphens, and start/end with alphanumeric", name)
	}
	return nil
}

// ExitCode is the process exit code a command finishes with. Scripts
// and CI tell failure classes apart by code rather than by parsing
// output.
type ExitCode int

const (
	// ExitSuccess means the command did everything it was asked to.
	ExitSuccess ExitCode = 0

	// ExitGeneralError covers failures no more specific code describes.
	ExitGeneralError ExitCode = 1

	// ExitManifestInvalid indicates the workspace manifest could not be
	// found, parsed, or validated.
	ExitManifestInvalid ExitCode = 2

	// ExitGitError indicates a Git operation (clone, rev-parse) failed.
	ExitGitError ExitCode = 3

	// ExitPythonError indicates a Python or pip invocation failed.
	ExitPythonError ExitCode = 4

	// ExitHookError indicates pre-commit hook registration failed.
	ExitHookError ExitCode = 5

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// (sandbox mode only).
	ExitDockerNotRunning ExitCode = 6

	// ExitUserCancelled means an interactive prompt was declined or
	// interrupted.
	ExitUserCancelled ExitCode = 7

	// ExitPortUnavailable indicates a sandbox published port is already
	// bound on the host.
	ExitPortUnavailable ExitCode = 8
)

// CLIError is the error type command implementations return. It pins
// the exit code to the failure, so the root command can report and
// exit without inspecting error text.
type CLIError struct {
	// Code is what the process exits with.
	Code ExitCode

	// Message describes the failure to the user.
	Message string

	// Err is the cause, when one exists.
	Err error
}

// Error renders the message, with the cause appended when present.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError builds a CLIError without a cause.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError builds a CLIError around a cause.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
