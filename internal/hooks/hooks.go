// Package hooks manages pre-commit hook registration for the hdlenv CLI.
//
// The pre-commit framework (https://pre-commit.com) owns the actual hook
// script: `pre-commit install` writes .git/hooks/pre-commit, and the hook
// configuration lives in .pre-commit-config.yaml at the repository root.
// This package builds the install/uninstall command lines, parses the
// YAML configuration for status reporting, and inspects the hook file
// that the framework writes.
package hooks

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fennec-eda/hdlenv/internal/model"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the pre-commit configuration file, always at the
// repository root.
const ConfigFileName = ".pre-commit-config.yaml"

// Config represents the parsed .pre-commit-config.yaml.
// Only the fields relevant to status reporting are included; other
// fields are silently ignored during parsing.
type Config struct {
	// Repos lists the hook repositories the framework pulls hooks from.
	Repos []ConfigRepo `yaml:"repos"`
}

// ConfigRepo is one hook repository entry in the configuration.
type ConfigRepo struct {
	// Repo is the hook repository URL, or the special values "local"
	// and "meta".
	Repo string `yaml:"repo"`

	// Rev is the pinned revision of the hook repository.
	Rev string `yaml:"rev"`

	// Hooks lists the hooks taken from this repository.
	Hooks []ConfigHook `yaml:"hooks"`
}

// ConfigHook is a single hook entry.
type ConfigHook struct {
	// ID identifies the hook within its repository (e.g. "black").
	ID string `yaml:"id"`

	// Name overrides the hook's display name. Usually empty.
	Name string `yaml:"name"`
}

// HookIDs returns the ids of every configured hook, in file order.
func (c *Config) HookIDs() []string {
	var ids []string
	for _, repo := range c.Repos {
		for _, hook := range repo.Hooks {
			ids = append(ids, hook.ID)
		}
	}
	return ids
}

// ConfigPath returns the path of the pre-commit configuration within the
// host repository.
func ConfigPath(repoRoot string) string {
	return filepath.Join(repoRoot, ConfigFileName)
}

// HasConfig reports whether the host repository carries a pre-commit
// configuration. Hook registration still proceeds without one — the
// framework installs the hook script regardless and fails at commit time
// instead — but setup downgrades the run to a warning.
func HasConfig(repoRoot string) bool {
	_, err := os.Stat(ConfigPath(repoRoot))
	return err == nil
}

// LoadConfig reads and parses the repository's .pre-commit-config.yaml.
//
// Returns a CLIError with ExitHookError if the file does not exist or
// does not parse as YAML.
func LoadConfig(repoRoot string) (*Config, error) {
	path := ConfigPath(repoRoot)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitHookError,
				fmt.Sprintf("pre-commit config not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read pre-commit config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, model.WrapCLIError(
			model.ExitHookError,
			fmt.Sprintf("failed to parse %s", path),
			err,
		)
	}

	return &cfg, nil
}

// HookPath returns the Git hook script path that `pre-commit install`
// writes in the host repository.
func HookPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".git", "hooks", "pre-commit")
}

// Installed reports whether a pre-commit hook script is registered in
// the host repository.
func Installed(repoRoot string) bool {
	info, err := os.Stat(HookPath(repoRoot))
	return err == nil && !info.IsDir()
}

// WrittenByFramework reports whether the registered hook script was
// generated by the pre-commit framework, as opposed to a hand-written
// hook that hdlenv must not touch. The framework stamps its generated
// scripts with its name.
func WrittenByFramework(repoRoot string) bool {
	content, err := os.ReadFile(HookPath(repoRoot))
	if err != nil {
		return false
	}
	return strings.Contains(string(content), "pre-commit")
}

// RemoveHook deletes the registered hook script. The caller is expected
// to have checked WrittenByFramework first; hdlenv never deletes hooks
// it cannot attribute to the framework.
func RemoveHook(repoRoot string) error {
	if err := os.Remove(HookPath(repoRoot)); err != nil && !os.IsNotExist(err) {
		return model.WrapCLIError(model.ExitHookError, "failed to remove pre-commit hook", err)
	}
	return nil
}

// InstallCommand builds the argv for registering the pre-commit hook.
//
// The standalone `pre-commit` binary is preferred when it is on PATH.
// Otherwise — and always when preferModule is set, as in sandbox
// containers where PATH is not the host's — the framework runs as a
// module of the chosen interpreter. The hdl21 dev extras install
// pre-commit into that interpreter, so the module form is available
// right after the install steps.
func InstallCommand(python string, preferModule bool) []string {
	return frameworkCommand(python, preferModule, "install")
}

// UninstallCommand builds the argv for unregistering the pre-commit hook.
func UninstallCommand(python string, preferModule bool) []string {
	return frameworkCommand(python, preferModule, "uninstall")
}

// frameworkCommand builds a pre-commit framework invocation, choosing
// between the standalone binary and the `-m pre_commit` module form.
func frameworkCommand(python string, preferModule bool, subcommand string) []string {
	if !preferModule {
		if _, err := exec.LookPath("pre-commit"); err == nil {
			return []string{"pre-commit", subcommand}
		}
	}
	return []string{python, "-m", "pre_commit", subcommand}
}

// Version returns the installed pre-commit framework version (e.g.
// "3.6.0"), resolving the invocation the same way frameworkCommand does:
// the standalone binary when it is on PATH, the module form otherwise.
//
// Returns a CLIError with ExitHookError when the framework is not
// available in either form, which `hdlenv status` reports as a missing
// tool.
func Version(python string) (string, error) {
	argv := frameworkCommand(python, false, "--version")

	// #nosec G204 — argv is one of the two fixed pre-commit forms
	out, err := exec.Command(argv[0], argv[1:]...).Output()
	if err != nil {
		return "", model.WrapCLIError(model.ExitHookError, "pre-commit is not available", err)
	}

	// Output has the fixed form "pre-commit 3.6.0".
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) >= 2 && fields[0] == "pre-commit" {
		return fields[1], nil
	}
	return strings.TrimSpace(string(out)), nil
}
