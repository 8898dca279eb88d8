// Package pytool provides Python and pip integration for the hdlenv CLI.
//
// This package wraps the Python interpreter (via os/exec) to install
// workspace packages, query installed package state, and verify imports.
// pip always runs as `<python> -m pip` rather than a bare `pip` binary,
// so the pip that installs a package belongs to the same interpreter
// that later imports it.
//
// Design decisions:
//   - The Runner struct carries the interpreter name so one resolved
//     --python flag flows through every operation.
//   - `pip show` output is parsed as "Key: value" lines, the same way
//     Git porcelain output is parsed elsewhere in this project.
//   - Command failures are wrapped in model.CLIError with ExitPythonError
//     and include the command's stderr for diagnostics.
package pytool

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/fennec-eda/hdlenv/internal/model"
)

// DefaultPython is the interpreter used when neither the manifest nor
// the --python flag names one.
const DefaultPython = "python3"

// PackageState holds the installed state of a single Python package,
// as reported by `pip show`.
type PackageState struct {
	// Name is the pip distribution name.
	Name string

	// Installed reports whether pip knows the package at all.
	Installed bool

	// Version is the installed version (e.g. "4.0.0").
	Version string

	// Location is the site-packages directory holding the install.
	Location string

	// EditableLocation is the source directory for editable installs
	// (pip's "Editable project location" field). Empty for regular
	// installs.
	EditableLocation string
}

// Editable reports whether the package is installed in editable mode.
func (p *PackageState) Editable() bool {
	return p.EditableLocation != ""
}

// Runner invokes a Python interpreter and its pip module.
type Runner struct {
	// Python is the interpreter executable: a name resolved via PATH
	// (e.g. "python3.12") or an absolute path.
	Python string
}

// NewRunner creates a Runner for the given interpreter, falling back to
// DefaultPython when the name is empty.
func NewRunner(python string) *Runner {
	if python == "" {
		python = DefaultPython
	}
	return &Runner{Python: python}
}

// Version returns the interpreter version (e.g. "3.12.4").
//
// Returns a CLIError with ExitPythonError when the interpreter is not
// on PATH, which `hdlenv status` reports as a missing tool.
func (r *Runner) Version() (string, error) {
	stdout, _, err := r.run("", "--version")
	if err != nil {
		return "", model.WrapCLIError(model.ExitPythonError,
			fmt.Sprintf("%s is not available", r.Python), err)
	}
	// Output has the fixed form "Python 3.12.4".
	return strings.TrimPrefix(strings.TrimSpace(stdout), "Python "), nil
}

// PipVersion returns the pip version for this interpreter (e.g. "24.0").
//
// `<python> -m pip --version` prints a line like
// "pip 24.0 from /usr/lib/python3/dist-packages/pip (python 3.12)";
// only the version number is returned.
func (r *Runner) PipVersion() (string, error) {
	stdout, _, err := r.run("", "-m", "pip", "--version")
	if err != nil {
		return "", model.WrapCLIError(model.ExitPythonError,
			fmt.Sprintf("pip is not available for %s", r.Python), err)
	}

	fields := strings.Fields(strings.TrimSpace(stdout))
	if len(fields) >= 2 && fields[0] == "pip" {
		return fields[1], nil
	}
	return strings.TrimSpace(stdout), nil
}

// Show queries pip for the installed state of a package.
//
// A package unknown to pip is not an error: pip exits non-zero with
// "Package(s) not found" on stderr, and Show reports Installed=false.
// Any other failure (interpreter missing, pip module absent) is wrapped
// with ExitPythonError.
func (r *Runner) Show(name string) (*PackageState, error) {
	stdout, _, err := r.run("", "-m", "pip", "show", name)
	if err != nil {
		// An *exec.ExitError means pip ran and exited non-zero, which for
		// `pip show` means the package is not installed. Any other error
		// means the command never started (interpreter missing).
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &PackageState{Name: name, Installed: false}, nil
		}
		return nil, model.WrapCLIError(model.ExitPythonError,
			fmt.Sprintf("pip show %s failed", name), err)
	}

	state := parseShowOutput(stdout)
	state.Installed = true
	if state.Name == "" {
		state.Name = name
	}
	return state, nil
}

// run executes the interpreter with the given arguments, capturing stdout
// and stderr separately. dir sets the working directory when non-empty.
func (r *Runner) run(dir string, args ...string) (string, string, error) {
	// #nosec G204 — the interpreter is operator config, args are fixed pip/module invocations
	cmd := exec.Command(r.Python, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// parseShowOutput parses `pip show` output into a PackageState.
//
// The output is a sequence of "Key: value" lines:
//
//	Name: hdl21
//	Version: 4.0.0
//	Location: /home/dev/.venv/lib/python3.12/site-packages
//	Editable project location: /home/dev/workspace/Hdl21
//
// Keys not relevant to hdlenv (Summary, Author, Requires, ...) are ignored.
func parseShowOutput(output string) *PackageState {
	state := &PackageState{}

	for _, line := range strings.Split(output, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "Name":
			state.Name = value
		case "Version":
			state.Version = value
		case "Location":
			state.Location = value
		case "Editable project location":
			state.EditableLocation = value
		}
	}

	return state
}

// InstallArgs builds the full argv for installing a package requirement.
// The requirement is a workspace-relative path with optional extras
// (e.g. `Hdl21[dev]`), so the command must run with the workspace root
// as its working directory.
func InstallArgs(python, requirement string, editable bool) []string {
	args := []string{python, "-m", "pip", "install"}
	if editable {
		args = append(args, "-e")
	}
	return append(args, requirement)
}

// UninstallArgs builds the full argv for uninstalling a package by its
// distribution name. The -y flag suppresses pip's own prompt; hdlenv
// asks for confirmation once, up front.
func UninstallArgs(python, name string) []string {
	return []string{python, "-m", "pip", "uninstall", "-y", name}
}

// ImportArgs builds the full argv for the verify step: importing a module
// proves the installed package is usable from the chosen interpreter.
func ImportArgs(python, module string) []string {
	return []string{python, "-c", fmt.Sprintf("import %s", module)}
}
