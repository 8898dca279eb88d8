package hooks

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/fennec-eda/hdlenv/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a .pre-commit-config.yaml into dir.
func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(ConfigPath(dir), []byte(content), 0o644))
}

// writeHook writes a .git/hooks/pre-commit script into dir, creating the
// hooks directory like `git init` would.
func writeHook(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(HookPath(dir)), 0o755))
	require.NoError(t, os.WriteFile(HookPath(dir), []byte(content), 0o755))
}

// TestLoadConfig verifies parsing of a typical pre-commit configuration,
// modeled on the one the Hdl21 repository ships.
func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `repos:
  - repo: https://github.com/psf/black
    rev: 22.6.0
    hooks:
      - id: black
      - id: black-jupyter
  - repo: local
    hooks:
      - id: check-formatting
        name: Check formatting
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Len(t, cfg.Repos, 2)
	assert.Equal(t, "https://github.com/psf/black", cfg.Repos[0].Repo)
	assert.Equal(t, "22.6.0", cfg.Repos[0].Rev)
	assert.Equal(t, "local", cfg.Repos[1].Repo)
	assert.Equal(t, "Check formatting", cfg.Repos[1].Hooks[0].Name)

	assert.Equal(t, []string{"black", "black-jupyter", "check-formatting"}, cfg.HookIDs())
}

// TestLoadConfig_NotFound verifies that a missing configuration maps to
// the hook exit code.
func TestLoadConfig_NotFound(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitHookError, cliErr.Code)
}

// TestLoadConfig_BadYAML verifies the parse error path.
func TestLoadConfig_BadYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "repos: [unclosed")

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitHookError, cliErr.Code)
}

// TestHasConfig verifies configuration detection.
func TestHasConfig(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, HasConfig(dir))

	writeConfig(t, dir, "repos: []\n")
	assert.True(t, HasConfig(dir))
}

// TestInstalled verifies hook script detection under .git/hooks.
func TestInstalled(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Installed(dir))

	writeHook(t, dir, "#!/usr/bin/env bash\n")
	assert.True(t, Installed(dir))
}

// TestWrittenByFramework distinguishes framework-generated hook scripts
// from hand-written ones, which clean must never delete.
func TestWrittenByFramework(t *testing.T) {
	t.Run("framework hook", func(t *testing.T) {
		dir := t.TempDir()
		writeHook(t, dir, `#!/usr/bin/env bash
# File generated by pre-commit: https://pre-commit.com
# ID: 138fd403232d2ddd5efb44317e38bf03
exec pre-commit run --hook-stage pre-commit "$@"
`)
		assert.True(t, WrittenByFramework(dir))
	})

	t.Run("hand-written hook", func(t *testing.T) {
		dir := t.TempDir()
		writeHook(t, dir, "#!/bin/sh\nmake lint\n")
		assert.False(t, WrittenByFramework(dir))
	})

	t.Run("no hook at all", func(t *testing.T) {
		assert.False(t, WrittenByFramework(t.TempDir()))
	})
}

// TestRemoveHook verifies hook removal, including the no-op case.
func TestRemoveHook(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, "# File generated by pre-commit\n")

	require.NoError(t, RemoveHook(dir))
	assert.False(t, Installed(dir))

	// Removing again is not an error.
	assert.NoError(t, RemoveHook(dir))
}

// TestInstallCommand verifies command construction for both invocation
// forms.
func TestInstallCommand(t *testing.T) {
	t.Run("module form", func(t *testing.T) {
		args := InstallCommand("python3", true)
		assert.Equal(t, []string{"python3", "-m", "pre_commit", "install"}, args)
	})

	t.Run("host form follows PATH", func(t *testing.T) {
		args := InstallCommand("python3", false)
		if _, err := exec.LookPath("pre-commit"); err == nil {
			assert.Equal(t, []string{"pre-commit", "install"}, args)
		} else {
			assert.Equal(t, []string{"python3", "-m", "pre_commit", "install"}, args)
		}
	})
}

// TestUninstallCommand verifies the uninstall variant.
func TestUninstallCommand(t *testing.T) {
	args := UninstallCommand("python3", true)
	assert.Equal(t, []string{"python3", "-m", "pre_commit", "uninstall"}, args)
}
