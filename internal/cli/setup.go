// Package cli — setup.go implements the "hdlenv setup" command.
//
// Setup is the primary user-facing operation. It reproduces the manual
// bootstrap sequence for an Hdl21 checkout: clone the VLSIR sibling
// repository, pip-install the workspace packages in editable mode, and
// register the pre-commit hook.
//
// Orchestration steps:
//  1. Locate the host repository root
//  2. Resolve the workspace manifest (file or built-in default)
//  3. Build the step plan (clones, installs, hooks, verifies)
//  4. Pick the step runner: host os/exec or a Docker sandbox session
//  5. Execute the plan, skipping whatever a failure makes pointless
//  6. Record the run in the journal (best effort)
//  7. Output results (text or JSON)
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fennec-eda/hdlenv/internal/gitrepo"
	"github.com/fennec-eda/hdlenv/internal/hooks"
	"github.com/fennec-eda/hdlenv/internal/journal"
	"github.com/fennec-eda/hdlenv/internal/manifest"
	"github.com/fennec-eda/hdlenv/internal/model"
	"github.com/fennec-eda/hdlenv/internal/pytool"
	"github.com/fennec-eda/hdlenv/internal/sandbox"
)

// setupFlags holds the flag values for the setup command.
// These are bound to cobra flags in NewSetupCommand.
type setupFlags struct {
	config   string // --config: explicit manifest path
	python   string // --python: interpreter override
	dryRun   bool   // --dry-run: print the plan without executing it
	noHooks  bool   // --no-hooks: skip hook registration
	noVerify bool   // --no-verify: skip the import checks
	sandbox  bool   // --sandbox: run steps in a Docker container
}

// planStep is one entry of a setup plan: an external command, the
// directory it runs in, and the exit code its failure maps to.
//
// A non-empty skip marks the step as decided-skipped at plan time
// (already cloned, disabled by flag or manifest). Skipped steps still
// appear in output and in the journal, with the reason as their note.
type planStep struct {
	name     string
	detail   string // human-readable command line
	dir      string // working directory for argv
	argv     []string
	failCode model.ExitCode
	skip     string
}

// setupInputs gathers the resolved facts buildSetupPlan works from.
// Keeping plan construction free of I/O makes the plan testable: the
// caller probes the filesystem once and hands over plain values.
type setupInputs struct {
	manifest      *manifest.Manifest
	repoRoot      string
	workspaceRoot string
	python        string
	hookArgv      []string
	hookSkip      string
	noVerify      bool
	cloned        map[string]bool // repo name -> already present in workspace
}

// stepRunner executes one plan step and returns its captured output.
// hostRunner implements it with os/exec; sandbox.Session implements it
// with docker exec.
type stepRunner interface {
	RunStep(ctx context.Context, dir string, argv []string) (stdout, stderr string, err error)
}

// hostRunner runs plan steps directly on the host.
type hostRunner struct{}

// RunStep executes argv in dir, capturing stdout and stderr separately.
// The raw error is returned untranslated; executePlan owns the mapping
// to CLIError codes.
func (hostRunner) RunStep(ctx context.Context, dir string, argv []string) (string, string, error) {
	// #nosec G204 — argv comes from the setup plan, built from the validated manifest
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// NewSetupCommand creates the "setup" cobra command.
func NewSetupCommand() *cobra.Command {
	flags := &setupFlags{}

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Bootstrap the Hdl21 development workspace",
		Long: `Bootstrap the development workspace of the enclosing repository.

The command reads the workspace manifest (or falls back to the built-in
Hdl21 layout) and then:
  - Clones the listed repositories next to the checkout
  - Installs the listed Python packages in editable mode
  - Registers the pre-commit hook in the host repository
  - Verifies each installed package by importing it

Setup is idempotent: repositories that already exist are skipped and
pip treats repeated editable installs as refreshes.

Examples:
  hdlenv setup
  hdlenv setup --dry-run
  hdlenv setup --python python3.12 --no-hooks
  hdlenv setup --sandbox`,

		// Setup takes no positional arguments; everything comes from the
		// manifest and flags.
		Args: cobra.NoArgs,

		// RunE is used instead of Run so we can return errors. Cobra will
		// pass them to the Execute error handler in root.go.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.config, "config", "", "Path to the workspace manifest (default: auto-detect)")
	cmd.Flags().StringVar(&flags.python, "python", "", "Python interpreter to use (default: manifest setting)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Print the step plan without executing it")
	cmd.Flags().BoolVar(&flags.noHooks, "no-hooks", false, "Skip pre-commit hook registration")
	cmd.Flags().BoolVar(&flags.noVerify, "no-verify", false, "Skip the post-install import checks")
	cmd.Flags().BoolVar(&flags.sandbox, "sandbox", false, "Run the setup steps in a Docker sandbox container")

	return cmd
}

// runSetup is the main orchestration function for the setup command.
func runSetup(ctx context.Context, flags *setupFlags) error {
	// Step 1: Locate the host repository. All paths resolve relative
	// to its root, regardless of where in the checkout setup runs.
	gm := gitrepo.NewManager()

	cwd, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "cannot determine the current directory", err)
	}

	repoRoot, err := gm.RepoRoot(cwd)
	if err != nil {
		return model.WrapCLIError(model.ExitGitError, "the current directory is not inside a Git repository", err)
	}
	VerboseLog("Host repository: %s", repoRoot)

	// Step 2: Resolve the manifest. Resolve validates it and applies
	// defaults, so the fields below are safe to use directly.
	m, source, err := manifest.Resolve(repoRoot, flags.config)
	if err != nil {
		return err
	}
	VerboseLog("Manifest: %s (workspace %q)", source, m.Name)

	python := flags.python
	if python == "" {
		python = m.Python
	}
	workspaceRoot := m.WorkspaceRoot(repoRoot)
	VerboseLog("Python interpreter: %s", python)

	// Announce the working context before doing anything: which checkout
	// setup operates on and where the workspace lives.
	if !IsJSONOutput() {
		fmt.Printf("Workspace %q: repository %s, workspace root %s\n", m.Name, repoRoot, workspaceRoot)
	}

	// Step 3: Build the plan from resolved facts.
	warnings := 0

	hookSkip := ""
	switch {
	case flags.noHooks:
		hookSkip = "--no-hooks"
	case !m.Hooks.PreCommitEnabled():
		hookSkip = "disabled by manifest"
	case !hooks.HasConfig(repoRoot):
		// A missing config is worth a warning but not a skip: the hook
		// registration itself succeeds, and the config may be added later.
		fmt.Fprintf(os.Stderr, "Warning: no %s found in %s\n", hooks.ConfigFileName, repoRoot)
		warnings++
	}

	// Inside the sandbox the host PATH is meaningless, so the hook
	// framework always runs as a module of the chosen interpreter there.
	hookArgv := hooks.InstallCommand(python, flags.sandbox)

	cloned, err := gatherClones(gm, m, workspaceRoot)
	if err != nil {
		return err
	}

	plan := buildSetupPlan(setupInputs{
		manifest:      m,
		repoRoot:      repoRoot,
		workspaceRoot: workspaceRoot,
		python:        python,
		hookArgv:      hookArgv,
		hookSkip:      hookSkip,
		noVerify:      flags.noVerify,
		cloned:        cloned,
	})

	if flags.dryRun {
		printSetupPlan(plan)
		return nil
	}

	// Step 4: Pick the runner and check its prerequisites.
	var runner stepRunner = hostRunner{}
	if flags.sandbox {
		cli, err := sandbox.NewClient()
		if err != nil {
			return err
		}
		defer func() { _ = cli.Close() }()

		if err := cli.Ping(ctx); err != nil {
			return err
		}

		meta := sandboxMeta(m, repoRoot, workspaceRoot)
		info, err := sandbox.EnsureRunning(ctx, cli, meta)
		if err != nil {
			return err
		}
		VerboseLog("Sandbox container: %s (%s)", info.ContainerName, info.Status)
		runner = sandbox.NewSession(info, workspaceRoot)
	} else {
		// Host preflight: fail before the first step, not in the middle
		// of the plan, when a required tool is missing.
		gitVersion, err := gitrepo.Version()
		if err != nil {
			return err
		}
		VerboseLog("git: %s", gitVersion)

		py := pytool.NewRunner(python)
		pyVersion, err := py.Version()
		if err != nil {
			return err
		}
		VerboseLog("python: %s", pyVersion)

		pipVersion, err := py.PipVersion()
		if err != nil {
			return err
		}
		VerboseLog("pip: %s", pipVersion)
	}

	// Open the journal before executing so a read-only repository
	// degrades the outcome to partial instead of silently losing the
	// run record afterwards.
	jnl, jerr := journal.Open(repoRoot)
	if jerr != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open journal: %v\n", jerr)
		warnings++
	} else {
		defer func() { _ = jnl.Close() }()
	}

	// Step 5: Execute.
	started := time.Now().UTC()
	steps, execErr := executePlan(ctx, runner, plan)

	rec := &model.RunRecord{
		Mode:       model.ModeSetup,
		Workspace:  m.Name,
		Python:     python,
		Sandbox:    flags.sandbox,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Steps:      steps,
	}
	rec.Outcome = rec.DeriveOutcome(warnings)

	// Step 6: Journal the run. Bookkeeping failures warn, never fail.
	if jnl != nil {
		if err := jnl.RecordRun(rec); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not record run: %v\n", err)
		}
	}

	// Step 7: Output results.
	printRunResult("Setup", rec)
	return execErr
}

// gatherClones probes each manifest repository's clone destination.
// A destination that already holds a Git repository marks the clone
// step for skipping; a destination occupied by anything else — a plain
// directory, a file — is an error.
func gatherClones(gm *gitrepo.Manager, m *manifest.Manifest, workspaceRoot string) (map[string]bool, error) {
	cloned := make(map[string]bool, len(m.Repos))

	for _, repo := range m.Repos {
		dest := filepath.Join(workspaceRoot, repo.ClonePath())
		if gm.IsRepo(dest) {
			cloned[repo.Name] = true
			VerboseLog("Repository %s already cloned at %s", repo.Name, dest)
			continue
		}
		if _, err := os.Stat(dest); err == nil {
			return nil, model.NewCLIError(model.ExitGitError,
				fmt.Sprintf("clone destination %s exists but is not a Git repository", dest))
		}
	}

	return cloned, nil
}

// buildSetupPlan turns the manifest into the ordered step plan:
// clones, then installs in manifest order, then hook registration,
// then one import check per package.
//
// The function is pure — it never touches the filesystem or the
// network — so tests can assert on exact plans.
func buildSetupPlan(in setupInputs) []planStep {
	var plan []planStep

	for _, repo := range in.manifest.Repos {
		argv := gitrepo.CloneArgs(repo.URL, repo.ClonePath(), repo.Ref)
		step := planStep{
			name:     "clone:" + repo.Name,
			detail:   strings.Join(argv, " "),
			dir:      in.workspaceRoot,
			argv:     argv,
			failCode: model.ExitGitError,
		}
		if in.cloned[repo.Name] {
			step.skip = "already cloned"
		}
		plan = append(plan, step)
	}

	for _, pkg := range in.manifest.Packages {
		argv := pytool.InstallArgs(in.python, pkg.Requirement(), pkg.IsEditable())
		plan = append(plan, planStep{
			name:     "install:" + pkg.Name,
			detail:   strings.Join(argv, " "),
			dir:      in.workspaceRoot,
			argv:     argv,
			failCode: model.ExitPythonError,
		})
	}

	plan = append(plan, planStep{
		name:     "hooks",
		detail:   strings.Join(in.hookArgv, " "),
		dir:      in.repoRoot,
		argv:     in.hookArgv,
		failCode: model.ExitHookError,
		skip:     in.hookSkip,
	})

	// Imports run from the workspace root, not from a checkout: the
	// source trees live under it by other names (Hdl21, Vlsir), so a
	// bare directory on sys.path cannot mask a failed install.
	for _, pkg := range in.manifest.Packages {
		argv := pytool.ImportArgs(in.python, pkg.ImportModule())
		step := planStep{
			name:     "verify:" + pkg.Name,
			detail:   strings.Join(argv, " "),
			dir:      in.workspaceRoot,
			argv:     argv,
			failCode: model.ExitPythonError,
		}
		if in.noVerify {
			step.skip = "--no-verify"
		}
		plan = append(plan, step)
	}

	return plan
}

// executePlan runs the plan steps in order and collects their results.
//
// The first failure stops real execution: every later step is recorded
// as skipped with the note "earlier step failed", so the journal still
// shows the full plan. The returned error is the CLIError for that
// first failure, carrying the step's exit code.
func executePlan(ctx context.Context, runner stepRunner, plan []planStep) ([]model.StepResult, error) {
	results := make([]model.StepResult, 0, len(plan))
	var failErr error

	for _, step := range plan {
		res := model.StepResult{Name: step.name, Detail: step.detail}

		switch {
		case step.skip != "":
			res.Status = model.StepSkipped
			res.Note = step.skip
			VerboseLog("Skipping %s (%s)", step.name, step.skip)

		case failErr != nil:
			res.Status = model.StepSkipped
			res.Note = "earlier step failed"

		default:
			VerboseLog("Running %s: %s", step.name, step.detail)
			res.StartedAt = time.Now().UTC()
			_, stderr, err := runner.RunStep(ctx, step.dir, step.argv)
			res.FinishedAt = time.Now().UTC()

			if err != nil {
				// Prefer the command's own stderr over the Go-level
				// error ("exit status 1" says nothing useful).
				detail := strings.TrimSpace(stderr)
				if detail == "" {
					detail = err.Error()
				}
				res.Status = model.StepFailed
				res.Error = detail
				failErr = model.WrapCLIError(
					step.failCode,
					fmt.Sprintf("%s failed: %s", step.name, firstLine(detail)),
					err,
				)
			} else {
				res.Status = model.StepOK
			}
		}

		results = append(results, res)
	}

	return results, failErr
}

// sandboxMeta builds the container metadata for a sandbox run. Manifest
// ports publish to the same port number on the host.
func sandboxMeta(m *manifest.Manifest, repoRoot, workspaceRoot string) *model.SandboxMeta {
	meta := &model.SandboxMeta{
		Workspace:     m.Name,
		RepoPath:      repoRoot,
		WorkspaceRoot: workspaceRoot,
		Image:         m.SandboxImage(),
		CreatedAt:     time.Now().UTC(),
	}
	for _, p := range m.Sandbox.Ports {
		meta.Ports = append(meta.Ports, model.PortMapping{
			ContainerPort: p,
			HostPort:      p,
			Protocol:      "tcp",
		})
	}
	return meta
}

// printSetupPlan outputs the dry-run plan in text or JSON format.
func printSetupPlan(plan []planStep) {
	if IsJSONOutput() {
		type stepJSON struct {
			Name    string `json:"name"`
			Dir     string `json:"dir"`
			Command string `json:"command"`
			Skip    string `json:"skip,omitempty"`
		}

		steps := make([]stepJSON, 0, len(plan))
		for _, s := range plan {
			steps = append(steps, stepJSON{Name: s.name, Dir: s.dir, Command: s.detail, Skip: s.skip})
		}

		data, _ := json.MarshalIndent(steps, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("%-20s %-28s %s\n", "STEP", "DIRECTORY", "COMMAND")
	for _, s := range plan {
		command := s.detail
		if s.skip != "" {
			command = fmt.Sprintf("%s  (skipped: %s)", command, s.skip)
		}
		fmt.Printf("%-20s %-28s %s\n", s.name, s.dir, command)
	}
}

// printRunResult outputs a run record in text or JSON format. Setup and
// clean both report through it. JSON mode emits the journal record
// itself, so scripted callers see exactly what `hdlenv status` will
// later report as the last run.
func printRunResult(action string, rec *model.RunRecord) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(data))
		return
	}

	where := "host"
	if rec.Sandbox {
		where = "sandbox"
	}
	fmt.Printf("%s of workspace %q finished: %s (%s, %s)\n",
		action, rec.Workspace, rec.Outcome, where, formatDuration(rec.FinishedAt.Sub(rec.StartedAt)))
	fmt.Println()

	fmt.Printf("%-20s %-8s %s\n", "STEP", "STATUS", "DETAIL")
	for _, step := range rec.Steps {
		detail := step.Detail
		switch step.Status {
		case model.StepSkipped:
			detail = fmt.Sprintf("%s  (skipped: %s)", detail, step.Note)
		case model.StepFailed:
			detail = fmt.Sprintf("%s  (%s)", detail, firstLine(step.Error))
		}
		fmt.Printf("%-20s %-8s %s\n", step.Name, step.Status, detail)
	}
}

// firstLine returns s up to its first newline. Step errors carry full
// tool output; headers and summaries only want the leading line.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// formatDuration renders a duration for human output: millisecond
// precision under a second, whole seconds above.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
