// Package gitrepo wraps the git CLI for repository inspection and clone
// command construction.
package gitrepo

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fennec-eda/hdlenv/internal/model"
)

// RepoInfo is what `hdlenv status` shows per workspace repository.
type RepoInfo struct {
	// Path is the absolute filesystem path to the repository root.
	Path string

	// Branch is the short name of the checked-out branch (e.g. "main").
	// "HEAD" indicates a detached HEAD state.
	Branch string

	// Commit is the abbreviated SHA the repository currently points to.
	Commit string
}

// Manager runs git against repositories identified per call, so a
// single Manager serves the host checkout and every workspace clone.
type Manager struct{}

// NewManager returns a Manager.
func NewManager() *Manager {
	return &Manager{}
}

// RepoRoot resolves the top-level directory of the working tree that
// contains path, via `git rev-parse --show-toplevel`. Linked worktrees
// resolve to their own root, not the main checkout's.
func (m *Manager) RepoRoot(path string) (string, error) {
	return runGit(path, "rev-parse", "--show-toplevel")
}

// CurrentBranch reports the checked-out branch at path as a short name
// ("main", not "refs/heads/main"). A detached HEAD reports as "HEAD".
func (m *Manager) CurrentBranch(path string) (string, error) {
	return runGit(path, "rev-parse", "--abbrev-ref", "HEAD")
}

// HeadCommit reports the abbreviated SHA at path's HEAD.
func (m *Manager) HeadCommit(path string) (string, error) {
	return runGit(path, "rev-parse", "--short", "HEAD")
}

// Inspect gathers branch and commit for the repository at path. Callers
// are expected to have confirmed path is a repository (see IsRepo).
func (m *Manager) Inspect(path string) (*RepoInfo, error) {
	branch, err := m.CurrentBranch(path)
	if err != nil {
		return nil, err
	}
	commit, err := m.HeadCommit(path)
	if err != nil {
		return nil, err
	}
	return &RepoInfo{Path: path, Branch: branch, Commit: commit}, nil
}

// IsRepo reports whether path is the root of a Git working tree.
//
// A .git directory means a main checkout; a .git file beginning with
// "gitdir:" means a linked worktree or submodule checkout. Both count.
// The clone step relies on this distinction: an existing destination
// that is a working tree is skipped, one that is a plain directory is
// an error rather than something to silently reuse.
func (m *Manager) IsRepo(path string) bool {
	gitPath := filepath.Join(path, ".git")

	// Lstat, not Stat: a symlink named .git does not make a repository.
	info, err := os.Lstat(gitPath)
	if err != nil {
		return false
	}

	if info.IsDir() {
		return true
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(content), "gitdir:")
}

// Version reports the installed git version ("2.43.0", including any
// platform suffix such as "(Apple Git-154)"). A missing binary comes
// back as ExitGitError, which `hdlenv status` shows as a missing tool.
func Version() (string, error) {
	// #nosec G204 — constant argv
	out, err := exec.Command("git", "--version").Output()
	if err != nil {
		return "", model.WrapCLIError(model.ExitGitError, "git is not available", err)
	}
	return strings.TrimPrefix(strings.TrimSpace(string(out)), "git version "), nil
}

// CloneArgs builds the argv for cloning url into dest. A non-empty ref
// is passed as --branch, which accepts tags as well as branches.
//
// The setup plan runs this with the workspace root as the working
// directory, keeping dest workspace-relative in output and journals.
func CloneArgs(url, dest, ref string) []string {
	args := []string{"git", "clone"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	return append(args, url, dest)
}

// runGit executes one git command against the repository at repoPath
// (git's -C flag, so the process working directory never changes) and
// returns its stdout with surrounding whitespace trimmed.
//
// On failure the stderr git wrote is folded into the CLIError message,
// since that is where git puts the human-readable explanation.
func runGit(repoPath string, args ...string) (string, error) {
	// #nosec G204 — git flags are fixed by the methods above, only paths vary
	cmd := exec.Command("git", append([]string{"-C", repoPath}, args...)...)

	out, err := cmd.Output()
	if err != nil {
		msg := "git " + strings.Join(args, " ")
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if detail := strings.TrimSpace(string(exitErr.Stderr)); detail != "" {
				msg += ": " + detail
			}
		}
		return "", model.WrapCLIError(model.ExitGitError, msg, err)
	}

	return strings.TrimSpace(string(out)), nil
}
