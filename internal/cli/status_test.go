// Package cli — status_test.go contains unit tests for the pure
// classification and formatting helpers of the status command.
package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennec-eda/hdlenv/internal/hooks"
	"github.com/fennec-eda/hdlenv/internal/manifest"
	"github.com/fennec-eda/hdlenv/internal/model"
)

// TestDeriveHookState verifies the hook classification table.
func TestDeriveHookState(t *testing.T) {
	tests := []struct {
		name        string
		enabled     bool
		config      bool
		installed   bool
		byFramework bool
		wantState   model.CheckState
		wantDetail  string
	}{
		{
			name:       "disabled by manifest",
			enabled:    false,
			wantState:  model.CheckOK,
			wantDetail: "disabled by manifest",
		},
		{
			name:        "installed by framework",
			enabled:     true,
			config:      true,
			installed:   true,
			byFramework: true,
			wantState:   model.CheckOK,
		},
		{
			name:       "foreign hook script",
			enabled:    true,
			config:     true,
			installed:  true,
			wantState:  model.CheckWarn,
			wantDetail: "pre-commit hook exists but was not written by pre-commit",
		},
		{
			name:       "config present but hook not installed",
			enabled:    true,
			config:     true,
			wantState:  model.CheckMissing,
			wantDetail: "hook not installed",
		},
		{
			name:       "nothing configured",
			enabled:    true,
			wantState:  model.CheckMissing,
			wantDetail: "no .pre-commit-config.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, detail := deriveHookState(tt.enabled, tt.config, tt.installed, tt.byFramework)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantDetail, detail)
		})
	}
}

// TestFormatPorts verifies the port mapping rendering used in the
// sandbox table.
func TestFormatPorts(t *testing.T) {
	tests := []struct {
		name  string
		ports []model.PortMapping
		want  string
	}{
		{
			name:  "nil returns dash",
			ports: nil,
			want:  "-",
		},
		{
			name:  "empty returns dash",
			ports: []model.PortMapping{},
			want:  "-",
		},
		{
			name:  "single mapping",
			ports: []model.PortMapping{{ContainerPort: 8888, HostPort: 8888, Protocol: "tcp"}},
			want:  "8888->8888/tcp",
		},
		{
			name: "multiple mappings keep order",
			ports: []model.PortMapping{
				{ContainerPort: 8888, HostPort: 18888, Protocol: "tcp"},
				{ContainerPort: 5000, HostPort: 5000, Protocol: "udp"},
			},
			want: "18888->8888/tcp, 5000->5000/udp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatPorts(tt.ports))
		})
	}
}

// TestCheckHooks_ConfigSummary verifies that a parseable configuration
// contributes its repo count and hook ids to the report.
func TestCheckHooks_ConfigSummary(t *testing.T) {
	repoRoot := t.TempDir()
	config := `repos:
  - repo: https://github.com/psf/black
    rev: 24.1.0
    hooks:
      - id: black
  - repo: local
    hooks:
      - id: flake8
      - id: isort
`
	require.NoError(t, os.WriteFile(
		filepath.Join(repoRoot, hooks.ConfigFileName), []byte(config), 0o644))

	hs := checkHooks(manifest.Default(), repoRoot)

	// Config present, hook script absent: the summary is still reported.
	assert.Equal(t, model.CheckMissing, hs.State)
	assert.True(t, hs.ConfigPresent)
	assert.Equal(t, 2, hs.ConfigRepos)
	assert.Equal(t, []string{"black", "flake8", "isort"}, hs.HookIDs)
}

// TestCheckHooks_UnparseableConfig verifies that a registered hook with
// a broken configuration downgrades to a warning instead of reporting
// a clean state.
func TestCheckHooks_UnparseableConfig(t *testing.T) {
	repoRoot := t.TempDir()

	hookDir := filepath.Join(repoRoot, ".git", "hooks")
	require.NoError(t, os.MkdirAll(hookDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(hookDir, "pre-commit"),
		[]byte("#!/bin/sh\n# generated by pre-commit\n"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(repoRoot, hooks.ConfigFileName),
		[]byte("repos: [unclosed\n"), 0o644))

	hs := checkHooks(manifest.Default(), repoRoot)

	assert.Equal(t, model.CheckWarn, hs.State)
	assert.Contains(t, hs.Detail, "failed to parse")
	assert.Empty(t, hs.HookIDs)
}
