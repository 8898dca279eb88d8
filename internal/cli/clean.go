// Package cli — clean.go implements the "hdlenv clean" command.
//
// Clean tears down what setup built, in reverse order: unregister the
// pre-commit hook, uninstall the workspace packages, remove the sandbox
// container, and — only with --repos — delete the cloned repositories.
//
// Unlike setup, clean is best-effort: a failed removal is recorded and
// reported, but the remaining teardown steps still run. By default the
// command prompts for confirmation; --force skips the prompt.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
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

// cleanFlags holds the flag values for the clean command.
type cleanFlags struct {
	config string // --config: explicit manifest path
	python string // --python: interpreter override

	// force answers the confirmation prompt with yes.
	force bool

	// repos also deletes the cloned repository directories when true.
	// Off by default: clones may hold uncommitted work.
	repos bool
}

// repoTarget is one cloned repository directory eligible for --repos
// deletion.
type repoTarget struct {
	name string
	dir  string
}

// NewCleanCommand creates the "clean" cobra command.
func NewCleanCommand() *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Tear down the development workspace",
		Long: `Tear down what setup built: unregister the pre-commit hook, uninstall
the workspace Python packages, and remove the sandbox container.

Cloned repositories are kept unless --repos is given, since they may
hold uncommitted work. The host repository itself is never touched.

The command asks for confirmation first unless --force is given.

Examples:
  hdlenv clean
  hdlenv clean --force
  hdlenv clean --repos`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.config, "config", "", "Path to the workspace manifest (default: auto-detect)")
	cmd.Flags().StringVar(&flags.python, "python", "", "Python interpreter to use (default: manifest setting)")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Clean without confirmation")
	cmd.Flags().BoolVar(&flags.repos, "repos", false, "Also delete the cloned repository directories")

	return cmd
}

// runClean is the main logic function for the clean command.
func runClean(ctx context.Context, flags *cleanFlags) error {
	gm := gitrepo.NewManager()

	cwd, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "cannot determine the current directory", err)
	}

	repoRoot, err := gm.RepoRoot(cwd)
	if err != nil {
		return model.WrapCLIError(model.ExitGitError, "the current directory is not inside a Git repository", err)
	}

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
	py := pytool.NewRunner(python)

	// Gather what exists before doing anything. The confirmation prompt
	// must list exactly what will be removed, so all probing happens up
	// front.
	var uninstalls []string // reverse install order, dependents first
	installed := make(map[string]bool, len(m.Packages))
	for i := len(m.Packages) - 1; i >= 0; i-- {
		name := m.Packages[i].Name
		if state, err := py.Show(name); err == nil && state.Installed {
			installed[name] = true
			uninstalls = append(uninstalls, name)
		}
	}

	hookInstalled := hooks.Installed(repoRoot)
	hookByFramework := hooks.WrittenByFramework(repoRoot)
	unhook := hookInstalled && hookByFramework

	sbCli, sbInfo, sbNote := findSandbox(ctx, m.Name)
	if sbCli != nil {
		defer func() { _ = sbCli.Close() }()
	}

	var repoDirs []repoTarget
	if flags.repos {
		for _, repo := range m.Repos {
			dest := filepath.Join(workspaceRoot, repo.ClonePath())
			if _, err := os.Stat(dest); err == nil {
				repoDirs = append(repoDirs, repoTarget{name: repo.Name, dir: dest})
			}
		}
	}

	if len(uninstalls) == 0 && !unhook && sbInfo == nil && len(repoDirs) == 0 {
		fmt.Println("Nothing to clean.")
		return nil
	}

	if !flags.force {
		confirmed, err := promptCleanConfirmation(m.Name, repoRoot, uninstalls, unhook, sbInfo, repoDirs)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "could not read the confirmation answer", err)
		}
		if !confirmed {
			return model.NewCLIError(model.ExitUserCancelled, "cancelled at the confirmation prompt")
		}
	}

	// Open the journal before executing, as setup does.
	warnings := 0
	jnl, jerr := journal.Open(repoRoot)
	if jerr != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open journal: %v\n", jerr)
		warnings++
	} else {
		defer func() { _ = jnl.Close() }()
	}

	started := time.Now().UTC()
	runner := hostRunner{}

	var steps []model.StepResult
	var firstErr error

	// run executes one teardown command and records the result. Clean
	// keeps going after a failure so one stuck removal does not strand
	// the rest; only the first error is returned.
	run := func(name string, argv []string, dir string, code model.ExitCode) {
		detail := strings.Join(argv, " ")
		VerboseLog("Running %s: %s", name, detail)

		res := model.StepResult{Name: name, Detail: detail, StartedAt: time.Now().UTC()}
		_, stderr, err := runner.RunStep(ctx, dir, argv)
		res.FinishedAt = time.Now().UTC()

		if err != nil {
			msg := strings.TrimSpace(stderr)
			if msg == "" {
				msg = err.Error()
			}
			res.Status = model.StepFailed
			res.Error = msg
			if firstErr == nil {
				firstErr = model.WrapCLIError(code,
					fmt.Sprintf("%s failed: %s", name, firstLine(msg)), err)
			}
		} else {
			res.Status = model.StepOK
		}
		steps = append(steps, res)
	}

	skip := func(name, detail, reason string) {
		VerboseLog("Skipping %s (%s)", name, reason)
		steps = append(steps, model.StepResult{
			Name:   name,
			Detail: detail,
			Status: model.StepSkipped,
			Note:   reason,
		})
	}

	// 1. Unregister the hook first: the uninstall steps below remove the
	// pre-commit module the framework command depends on.
	unhookArgv := hooks.UninstallCommand(python, false)
	unhookDetail := strings.Join(unhookArgv, " ")
	switch {
	case !hookInstalled:
		skip("unhook", unhookDetail, "not installed")
	case !hookByFramework:
		skip("unhook", unhookDetail, "hook not written by pre-commit")
	default:
		res := model.StepResult{Name: "unhook", Detail: unhookDetail, StartedAt: time.Now().UTC()}
		_, stderr, err := runner.RunStep(ctx, repoRoot, unhookArgv)
		if err != nil {
			// The framework may already be gone; removing the hook file
			// directly achieves the same end state.
			if rmErr := hooks.RemoveHook(repoRoot); rmErr == nil {
				res.Status = model.StepOK
				res.Note = "removed hook file directly"
			} else {
				msg := strings.TrimSpace(stderr)
				if msg == "" {
					msg = err.Error()
				}
				res.Status = model.StepFailed
				res.Error = msg
				if firstErr == nil {
					firstErr = model.WrapCLIError(model.ExitHookError,
						fmt.Sprintf("unhook failed: %s", firstLine(msg)), err)
				}
			}
		} else {
			res.Status = model.StepOK
		}
		res.FinishedAt = time.Now().UTC()
		steps = append(steps, res)
	}

	// 2. Uninstall packages in reverse install order.
	for i := len(m.Packages) - 1; i >= 0; i-- {
		pkg := m.Packages[i]
		argv := pytool.UninstallArgs(python, pkg.Name)
		if !installed[pkg.Name] {
			skip("uninstall:"+pkg.Name, strings.Join(argv, " "), "not installed")
			continue
		}
		run("uninstall:"+pkg.Name, argv, workspaceRoot, model.ExitPythonError)
	}

	// 3. Remove the sandbox container.
	sandboxDetail := fmt.Sprintf("remove container %s", sandbox.ContainerName(m.Name))
	switch {
	case sbNote != "":
		skip("sandbox", sandboxDetail, sbNote)
	case sbInfo == nil:
		skip("sandbox", sandboxDetail, "no sandbox container")
	default:
		VerboseLog("Removing sandbox container %s (%s)", sbInfo.ContainerName, sbInfo.Status)
		res := model.StepResult{Name: "sandbox", Detail: sandboxDetail, StartedAt: time.Now().UTC()}
		// force=true handles a container that is still running.
		if err := sandbox.Remove(ctx, sbCli, sbInfo.ContainerID, true); err != nil {
			res.Status = model.StepFailed
			res.Error = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		} else {
			res.Status = model.StepOK
		}
		res.FinishedAt = time.Now().UTC()
		steps = append(steps, res)
	}

	// 4. Delete cloned repositories, only with --repos.
	if flags.repos {
		existing := make(map[string]string, len(repoDirs))
		for _, t := range repoDirs {
			existing[t.name] = t.dir
		}
		for _, repo := range m.Repos {
			name := "remove:" + repo.Name
			dest := filepath.Join(workspaceRoot, repo.ClonePath())
			detail := "rm -rf " + dest

			dir, ok := existing[repo.Name]
			if !ok {
				skip(name, detail, "not cloned")
				continue
			}
			if reason := refuseRemoval(dir, repoRoot, workspaceRoot); reason != "" {
				skip(name, detail, reason)
				continue
			}

			res := model.StepResult{Name: name, Detail: detail, StartedAt: time.Now().UTC()}
			if err := os.RemoveAll(dir); err != nil {
				res.Status = model.StepFailed
				res.Error = err.Error()
				if firstErr == nil {
					firstErr = model.WrapCLIError(model.ExitGeneralError,
						fmt.Sprintf("%s failed: %s", name, dir), err)
				}
			} else {
				res.Status = model.StepOK
			}
			res.FinishedAt = time.Now().UTC()
			steps = append(steps, res)
		}
	}

	rec := &model.RunRecord{
		Mode:       model.ModeClean,
		Workspace:  m.Name,
		Python:     python,
		Sandbox:    false,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Steps:      steps,
	}
	rec.Outcome = rec.DeriveOutcome(warnings)

	if jnl != nil {
		if err := jnl.RecordRun(rec); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not record run: %v\n", err)
		}
	}

	printRunResult("Clean", rec)
	return firstErr
}

// findSandbox looks up this workspace's sandbox container. Docker being
// unreachable is not an error for clean — the returned note becomes the
// skip reason for the sandbox step. The client is returned open only
// when a container was found; the caller owns closing it.
func findSandbox(ctx context.Context, workspace string) (*sandbox.Client, *model.SandboxInfo, string) {
	cli, err := sandbox.NewClient()
	if err != nil {
		return nil, nil, "docker not available"
	}

	if err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, nil, "docker not available"
	}

	info, err := sandbox.Find(ctx, cli, workspace)
	if err != nil {
		_ = cli.Close()
		return nil, nil, err.Error()
	}
	if info == nil {
		_ = cli.Close()
		return nil, nil, ""
	}

	return cli, info, ""
}

// refuseRemoval guards the --repos deletions: only directories strictly
// inside the workspace root are eligible, and never the host checkout —
// even when a misconfigured manifest points a clone path at it.
func refuseRemoval(dir, repoRoot, workspaceRoot string) string {
	if rel, err := filepath.Rel(dir, repoRoot); err == nil &&
		rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "refusing to remove the host repository"
	}

	rel, err := filepath.Rel(workspaceRoot, dir)
	if err != nil || rel == "." || rel == ".." ||
		strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "outside the workspace root"
	}

	return ""
}

// promptCleanConfirmation lists what will be removed and asks the user
// to confirm. It reads a single line from stdin and checks for "y" or
// "yes". Returns true if the user confirmed, false otherwise.
func promptCleanConfirmation(workspace, repoRoot string, uninstalls []string, unhook bool, sb *model.SandboxInfo, repoDirs []repoTarget) (bool, error) {
	fmt.Printf("About to clean workspace %q:\n", workspace)
	if unhook {
		fmt.Printf("  - unregister the pre-commit hook in %s\n", repoRoot)
	}
	for _, name := range uninstalls {
		fmt.Printf("  - uninstall Python package %s\n", name)
	}
	if sb != nil {
		fmt.Printf("  - remove sandbox container %s\n", sb.ContainerName)
	}
	for _, t := range repoDirs {
		fmt.Printf("  - delete %s\n", t.dir)
	}
	fmt.Print("\nProceed? [y/N] ")

	// Scanner strips the trailing newline on every platform, CRLF
	// included.
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}

	// A closed stdin or a read error counts as declining.
	if err := scanner.Err(); err != nil {
		return false, err
	}

	return false, nil
}
