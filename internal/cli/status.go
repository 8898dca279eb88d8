// Package cli — status.go implements the "hdlenv status" command.
//
// Status is a read-only doctor: it compares the workspace against its
// manifest and reports per-item check states instead of failing. A
// missing tool, an uncloned repository, or an unreachable Docker daemon
// all degrade to "missing" entries — the command itself only errors
// when it cannot even resolve the repository or the manifest.
package cli

import (
	"context"
	"encoding/json"
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

// statusFlags holds the flag values for the status command.
type statusFlags struct {
	config  string // --config: explicit manifest path
	python  string // --python: interpreter override
	sandbox bool   // --sandbox: always include the docker tool row
}

// statusReport is the full check result, marshalled directly in JSON
// mode so the structure below is the machine-readable contract.
type statusReport struct {
	Workspace      string           `json:"workspace"`
	ManifestSource string           `json:"manifestSource"`
	RepoRoot       string           `json:"repoRoot"`
	WorkspaceRoot  string           `json:"workspaceRoot"`
	Tools          []toolStatus     `json:"tools"`
	Repos          []repoStatus     `json:"repos,omitempty"`
	Packages       []packageStatus  `json:"packages,omitempty"`
	Hooks          hookStatus       `json:"hooks"`
	Sandboxes      []sandboxStatus  `json:"sandboxes,omitempty"`
	SandboxDetail  string           `json:"sandboxDetail,omitempty"`
	LastRun        *model.RunRecord `json:"lastRun,omitempty"`
}

// toolStatus reports one required external tool.
type toolStatus struct {
	Name    string           `json:"name"`
	State   model.CheckState `json:"state"`
	Version string           `json:"version,omitempty"`
	Detail  string           `json:"detail,omitempty"`
}

// repoStatus reports one manifest repository.
type repoStatus struct {
	Name   string           `json:"name"`
	Path   string           `json:"path"`
	State  model.CheckState `json:"state"`
	Branch string           `json:"branch,omitempty"`
	Commit string           `json:"commit,omitempty"`
	Detail string           `json:"detail,omitempty"`
}

// packageStatus reports one manifest Python package.
type packageStatus struct {
	Name     string           `json:"name"`
	State    model.CheckState `json:"state"`
	Version  string           `json:"version,omitempty"`
	Editable bool             `json:"editable"`
	Location string           `json:"location,omitempty"`
	Detail   string           `json:"detail,omitempty"`
}

// hookStatus reports the pre-commit hook registration, plus a summary
// of the configuration file when one is present and parses.
type hookStatus struct {
	State         model.CheckState `json:"state"`
	ConfigPresent bool             `json:"configPresent"`
	Installed     bool             `json:"installed"`
	ByFramework   bool             `json:"byFramework"`
	ConfigRepos   int              `json:"configRepos,omitempty"`
	HookIDs       []string         `json:"hookIds,omitempty"`
	Detail        string           `json:"detail,omitempty"`
}

// sandboxStatus reports one hdlenv-managed sandbox container.
type sandboxStatus struct {
	ContainerName string              `json:"containerName"`
	Image         string              `json:"image"`
	Status        string              `json:"status"`
	Workspace     string              `json:"workspace,omitempty"`
	CreatedAt     time.Time           `json:"createdAt,omitzero"`
	Ports         []model.PortMapping `json:"ports,omitempty"`
}

// NewStatusCommand creates the "status" cobra command.
func NewStatusCommand() *cobra.Command {
	flags := &statusFlags{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report workspace state against the manifest",
		Long: `Report how the workspace compares to its manifest.

The report covers the required tools (git, python, pip, pre-commit),
each manifest repository and package, the pre-commit hook, any sandbox
containers, and the last recorded setup or clean run. Status never
modifies the workspace, and degraded items are reported as states
rather than errors — a missing tool does not abort the report.

Examples:
  hdlenv status
  hdlenv status --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.config, "config", "", "Path to the workspace manifest (default: auto-detect)")
	cmd.Flags().StringVar(&flags.python, "python", "", "Python interpreter to use (default: manifest setting)")
	cmd.Flags().BoolVar(&flags.sandbox, "sandbox", false, "Report Docker daemon reachability even without sandbox containers")

	return cmd
}

// runStatus builds and prints the status report.
func runStatus(ctx context.Context, flags *statusFlags) error {
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

	python := flags.python
	if python == "" {
		python = m.Python
	}
	workspaceRoot := m.WorkspaceRoot(repoRoot)

	report := &statusReport{
		Workspace:      m.Name,
		ManifestSource: source,
		RepoRoot:       repoRoot,
		WorkspaceRoot:  workspaceRoot,
	}

	py := pytool.NewRunner(python)
	report.Tools = checkTools(python, py)
	report.Repos = checkRepos(gm, m, workspaceRoot)
	report.Packages = checkPackages(py, m)
	report.Hooks = checkHooks(m, repoRoot)

	var docker toolStatus
	report.Sandboxes, report.SandboxDetail, docker = checkSandboxes(ctx)
	// The daemon only belongs in the tools table when sandboxes are in
	// play: one exists, or the user asked with --sandbox.
	if flags.sandbox || len(report.Sandboxes) > 0 {
		report.Tools = append(report.Tools, docker)
	}

	report.LastRun = loadLastRun(repoRoot)

	printStatusReport(report)
	return nil
}

// checkTools probes the external tools setup depends on.
func checkTools(python string, py *pytool.Runner) []toolStatus {
	tools := make([]toolStatus, 0, 4)

	if v, err := gitrepo.Version(); err != nil {
		tools = append(tools, toolStatus{Name: "git", State: model.CheckMissing, Detail: err.Error()})
	} else {
		tools = append(tools, toolStatus{Name: "git", State: model.CheckOK, Version: v})
	}

	if v, err := py.Version(); err != nil {
		tools = append(tools, toolStatus{Name: python, State: model.CheckMissing, Detail: err.Error()})
	} else {
		tools = append(tools, toolStatus{Name: python, State: model.CheckOK, Version: v})
	}

	if v, err := py.PipVersion(); err != nil {
		tools = append(tools, toolStatus{Name: "pip", State: model.CheckMissing, Detail: err.Error()})
	} else {
		tools = append(tools, toolStatus{Name: "pip", State: model.CheckOK, Version: v})
	}

	if v, err := hooks.Version(python); err != nil {
		tools = append(tools, toolStatus{Name: "pre-commit", State: model.CheckMissing, Detail: err.Error()})
	} else {
		tools = append(tools, toolStatus{Name: "pre-commit", State: model.CheckOK, Version: v})
	}

	return tools
}

// checkRepos inspects each manifest repository's clone destination.
func checkRepos(gm *gitrepo.Manager, m *manifest.Manifest, workspaceRoot string) []repoStatus {
	repos := make([]repoStatus, 0, len(m.Repos))

	for _, repo := range m.Repos {
		dest := filepath.Join(workspaceRoot, repo.ClonePath())
		rs := repoStatus{Name: repo.Name, Path: dest}

		if !gm.IsRepo(dest) {
			rs.State = model.CheckMissing
			rs.Detail = "not cloned"
			repos = append(repos, rs)
			continue
		}

		info, err := gm.Inspect(dest)
		if err != nil {
			// The directory exists but git cannot describe it. Report
			// what we know rather than aborting the whole status run.
			rs.State = model.CheckWarn
			rs.Detail = err.Error()
			repos = append(repos, rs)
			continue
		}

		rs.State = model.CheckOK
		rs.Branch = info.Branch
		rs.Commit = info.Commit
		repos = append(repos, rs)
	}

	return repos
}

// checkPackages queries pip for each manifest package and compares the
// install mode against the manifest's editable expectation.
func checkPackages(py *pytool.Runner, m *manifest.Manifest) []packageStatus {
	pkgs := make([]packageStatus, 0, len(m.Packages))

	for _, pkg := range m.Packages {
		ps := packageStatus{Name: pkg.Name}

		state, err := py.Show(pkg.Name)
		if err != nil {
			ps.State = model.CheckMissing
			ps.Detail = err.Error()
			pkgs = append(pkgs, ps)
			continue
		}
		if !state.Installed {
			ps.State = model.CheckMissing
			ps.Detail = "not installed"
			pkgs = append(pkgs, ps)
			continue
		}

		ps.Version = state.Version
		ps.Editable = state.Editable()
		ps.Location = state.Location
		if loc := state.EditableLocation; loc != "" {
			ps.Location = loc
		}

		if pkg.IsEditable() && !state.Editable() {
			ps.State = model.CheckWarn
			ps.Detail = "installed, but not in editable mode"
		} else {
			ps.State = model.CheckOK
		}
		pkgs = append(pkgs, ps)
	}

	return pkgs
}

// checkHooks reports the pre-commit hook registration state and, when a
// configuration file is present, summarizes its repos and hook ids.
func checkHooks(m *manifest.Manifest, repoRoot string) hookStatus {
	hs := hookStatus{
		ConfigPresent: hooks.HasConfig(repoRoot),
		Installed:     hooks.Installed(repoRoot),
		ByFramework:   hooks.WrittenByFramework(repoRoot),
	}
	hs.State, hs.Detail = deriveHookState(
		m.Hooks.PreCommitEnabled(), hs.ConfigPresent, hs.Installed, hs.ByFramework)

	if hs.ConfigPresent {
		if cfg, err := hooks.LoadConfig(repoRoot); err == nil {
			hs.ConfigRepos = len(cfg.Repos)
			hs.HookIDs = cfg.HookIDs()
		} else if hs.Detail == "" {
			// The hook is registered but its configuration does not parse,
			// so the next commit will fail inside the hook.
			hs.State = model.CheckWarn
			hs.Detail = err.Error()
		}
	}
	return hs
}

// deriveHookState classifies the hook registration from its observed
// facts. Pure so the state table is directly testable.
func deriveHookState(enabled, config, installed, byFramework bool) (model.CheckState, string) {
	switch {
	case !enabled:
		return model.CheckOK, "disabled by manifest"
	case installed && byFramework:
		return model.CheckOK, ""
	case installed:
		return model.CheckWarn, "pre-commit hook exists but was not written by pre-commit"
	case config:
		return model.CheckMissing, "hook not installed"
	default:
		return model.CheckMissing, "no " + hooks.ConfigFileName
	}
}

// checkSandboxes lists hdlenv-managed containers and probes the daemon
// once for both the sandbox section and the docker tool row. An
// unreachable daemon is normal for host-only workflows, so it degrades
// to a detail string instead of an error.
func checkSandboxes(ctx context.Context) ([]sandboxStatus, string, toolStatus) {
	docker := toolStatus{Name: "docker", State: model.CheckMissing, Detail: "docker not available"}

	cli, err := sandbox.NewClient()
	if err != nil {
		return nil, "docker not available", docker
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return nil, "docker not available", docker
	}

	docker.State = model.CheckOK
	docker.Detail = ""
	if v, err := cli.DaemonVersion(ctx); err == nil {
		docker.Version = v
	}

	infos, err := sandbox.List(ctx, cli)
	if err != nil {
		return nil, err.Error(), docker
	}

	statuses := make([]sandboxStatus, 0, len(infos))
	for _, info := range infos {
		ss := sandboxStatus{
			ContainerName: info.ContainerName,
			Image:         info.Image,
			Status:        info.Status,
		}
		// Labels are the only sandbox state store; a container with
		// unparseable labels still shows up with its Docker facts.
		if meta, err := sandbox.ParseLabels(info.Labels); err == nil {
			ss.Workspace = meta.Workspace
			ss.CreatedAt = meta.CreatedAt
			ss.Ports = meta.Ports
		}
		statuses = append(statuses, ss)
	}

	return statuses, "", docker
}

// loadLastRun reads the most recent journal entry. Journal problems
// degrade to "no recorded runs" — status never fails on bookkeeping.
// Opening the journal would create it, and status must not write, so a
// missing database file is checked for first.
func loadLastRun(repoRoot string) *model.RunRecord {
	if _, err := os.Stat(journal.Path(repoRoot)); err != nil {
		return nil
	}

	jnl, err := journal.Open(repoRoot)
	if err != nil {
		VerboseLog("Could not open journal: %v", err)
		return nil
	}
	defer func() { _ = jnl.Close() }()

	rec, err := jnl.LastRun()
	if err != nil {
		VerboseLog("Could not read last run: %v", err)
		return nil
	}
	return rec
}

// printStatusReport outputs the report in text or JSON format.
func printStatusReport(report *statusReport) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Workspace %q (manifest: %s)\n", report.Workspace, report.ManifestSource)
	fmt.Printf("  Repository: %s\n", report.RepoRoot)
	fmt.Printf("  Workspace:  %s\n", report.WorkspaceRoot)

	fmt.Println()
	fmt.Println("Tools:")
	fmt.Printf("  %-12s %-8s %s\n", "NAME", "STATE", "VERSION")
	for _, t := range report.Tools {
		extra := t.Version
		if t.Detail != "" {
			extra = t.Detail
		}
		fmt.Printf("  %-12s %-8s %s\n", t.Name, t.State, extra)
	}

	if len(report.Repos) > 0 {
		fmt.Println()
		fmt.Println("Repositories:")
		fmt.Printf("  %-12s %-8s %-16s %-10s %s\n", "NAME", "STATE", "BRANCH", "COMMIT", "PATH")
		for _, r := range report.Repos {
			branch, commit := r.Branch, r.Commit
			if r.State != model.CheckOK {
				branch = "-"
				commit = "-"
			}
			path := r.Path
			if r.Detail != "" {
				path = fmt.Sprintf("%s  (%s)", path, r.Detail)
			}
			fmt.Printf("  %-12s %-8s %-16s %-10s %s\n", r.Name, r.State, branch, commit, path)
		}
	}

	if len(report.Packages) > 0 {
		fmt.Println()
		fmt.Println("Packages:")
		fmt.Printf("  %-12s %-8s %-10s %-9s %s\n", "NAME", "STATE", "VERSION", "EDITABLE", "LOCATION")
		for _, p := range report.Packages {
			if p.State == model.CheckMissing {
				fmt.Printf("  %-12s %-8s %s\n", p.Name, p.State, p.Detail)
				continue
			}
			editable := "no"
			if p.Editable {
				editable = "yes"
			}
			location := p.Location
			if p.Detail != "" {
				location = fmt.Sprintf("%s  (%s)", location, p.Detail)
			}
			fmt.Printf("  %-12s %-8s %-10s %-9s %s\n", p.Name, p.State, p.Version, editable, location)
		}
	}

	fmt.Println()
	switch {
	case report.Hooks.Detail != "":
		fmt.Printf("Hooks: %s (%s)\n", report.Hooks.State, report.Hooks.Detail)
	case len(report.Hooks.HookIDs) > 0:
		fmt.Printf("Hooks: %s (%s)\n", report.Hooks.State, strings.Join(report.Hooks.HookIDs, ", "))
	default:
		fmt.Printf("Hooks: %s\n", report.Hooks.State)
	}

	switch {
	case report.SandboxDetail != "":
		fmt.Printf("Sandbox: %s\n", report.SandboxDetail)
	case len(report.Sandboxes) == 0:
		fmt.Println("Sandbox: none")
	default:
		fmt.Println("Sandboxes:")
		fmt.Printf("  %-24s %-10s %-24s %s\n", "CONTAINER", "STATUS", "IMAGE", "PORTS")
		for _, s := range report.Sandboxes {
			fmt.Printf("  %-24s %-10s %-24s %s\n", s.ContainerName, s.Status, s.Image, formatPorts(s.Ports))
		}
	}

	if report.LastRun != nil {
		rec := report.LastRun
		fmt.Printf("Last run: %s %s at %s (%d steps)\n",
			rec.Mode, rec.Outcome, rec.FinishedAt.Format(time.RFC3339), len(rec.Steps))
	} else {
		fmt.Println("Last run: none recorded")
	}
}

// formatPorts renders port mappings as "host->container/proto" pairs.
func formatPorts(ports []model.PortMapping) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		parts = append(parts, fmt.Sprintf("%d->%d/%s", p.HostPort, p.ContainerPort, p.Protocol))
	}
	return strings.Join(parts, ", ")
}
