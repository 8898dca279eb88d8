package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fennec-eda/hdlenv/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeManifest writes manifest content to a file under dir and returns
// the file path. Parent directories are created as needed.
func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// --- Load tests ---

// TestLoad_JSONC verifies that a manifest with comments and trailing commas
// parses correctly, including all field types.
func TestLoad_JSONC(t *testing.T) {
	path := writeManifest(t, t.TempDir(), ".hdlenv.json", `{
	// Workspace for the Hdl21 stack.
	"name": "hdl21",
	"workspaceDir": "..",
	"python": "python3.12",
	"repos": [
		{"name": "Vlsir", "url": "git@github.com:Vlsir/Vlsir.git", "ref": "main"},
	],
	"packages": [
		{"name": "vlsir", "path": "Vlsir/bindings/python"},
		{"name": "hdl21", "path": "Hdl21", "extras": ["dev"], "editable": false},
	],
	"hooks": {"preCommit": false},
	"sandbox": {"image": "python:3.11-slim", "ports": [8888]},
}`)

	m, err := Load(path)
	require.NoError(t, err, "Load should succeed for a valid JSONC manifest")

	assert.Equal(t, "hdl21", m.Name)
	assert.Equal(t, "python3.12", m.Python)

	// Repos: path defaults to the repo name.
	require.Len(t, m.Repos, 1)
	assert.Equal(t, "git@github.com:Vlsir/Vlsir.git", m.Repos[0].URL)
	assert.Equal(t, "main", m.Repos[0].Ref)
	assert.Equal(t, "Vlsir", m.Repos[0].ClonePath())

	// Packages: explicit editable=false must be distinguishable from absent.
	require.Len(t, m.Packages, 2)
	assert.True(t, m.Packages[0].IsEditable(), "absent editable field defaults to true")
	assert.False(t, m.Packages[1].IsEditable(), "explicit editable:false is honored")
	assert.Equal(t, []string{"dev"}, m.Packages[1].Extras)

	// Hooks: explicit preCommit=false.
	assert.False(t, m.Hooks.PreCommitEnabled())

	// Sandbox.
	assert.Equal(t, "python:3.11-slim", m.SandboxImage())
	assert.Equal(t, []int{8888}, m.Sandbox.Ports)
}

// TestLoad_Defaults verifies that a minimal manifest is filled with the
// documented defaults.
func TestLoad_Defaults(t *testing.T) {
	path := writeManifest(t, t.TempDir(), ".hdlenv.json", `{"name": "minimal"}`)

	m, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "..", m.WorkspaceDir)
	assert.Equal(t, "python3", m.Python)
	assert.True(t, m.Hooks.PreCommitEnabled(), "hooks default on")
	assert.Equal(t, DefaultSandboxImage, m.SandboxImage())
}

// TestLoad_NotFound verifies that Load returns a CLIError with
// ExitManifestInvalid when the file does not exist.
func TestLoad_NotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/.hdlenv.json")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitManifestInvalid, cliErr.Code)
}

// TestLoad_BadJSON verifies that unparseable content maps to the manifest
// exit code rather than a general error.
func TestLoad_BadJSON(t *testing.T) {
	path := writeManifest(t, t.TempDir(), ".hdlenv.json", `{"name": `)

	_, err := Load(path)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitManifestInvalid, cliErr.Code)
}

// --- Default manifest tests ---

// TestDefault verifies the built-in manifest reproduces the original Hdl21
// bootstrap: VLSIR cloned as a sibling, then vlsir, vlsirtools, and hdl21
// installed in that order with hdl21 carrying the dev extras.
func TestDefault(t *testing.T) {
	m := Default()

	assert.Equal(t, "hdl21", m.Name)
	assert.Equal(t, "..", m.WorkspaceDir)
	assert.Equal(t, "python3", m.Python)

	require.Len(t, m.Repos, 1)
	assert.Equal(t, "https://github.com/Vlsir/Vlsir.git", m.Repos[0].URL)
	assert.Equal(t, "Vlsir", m.Repos[0].ClonePath())

	require.Len(t, m.Packages, 3)
	assert.Equal(t, "vlsir", m.Packages[0].Name)
	assert.Equal(t, "Vlsir/bindings/python", m.Packages[0].Path)
	assert.Equal(t, "vlsirtools", m.Packages[1].Name)
	assert.Equal(t, "Vlsir/VlsirTools", m.Packages[1].Path)
	assert.Equal(t, "hdl21", m.Packages[2].Name)
	assert.Equal(t, "Hdl21[dev]", m.Packages[2].Requirement())

	// Every package is editable, hooks are on.
	for i := range m.Packages {
		assert.True(t, m.Packages[i].IsEditable())
	}
	assert.True(t, m.Hooks.PreCommitEnabled())

	// The default manifest must pass its own validation.
	assert.Empty(t, Validate(m))
}

// --- Package helper tests ---

// TestPackage_Requirement verifies extras formatting in pip requirements.
func TestPackage_Requirement(t *testing.T) {
	tests := []struct {
		name     string
		pkg      Package
		expected string
	}{
		{"no extras", Package{Name: "vlsir", Path: "Vlsir/bindings/python"}, "Vlsir/bindings/python"},
		{"single extra", Package{Name: "hdl21", Path: "Hdl21", Extras: []string{"dev"}}, "Hdl21[dev]"},
		{"multiple extras", Package{Name: "hdl21", Path: "Hdl21", Extras: []string{"dev", "docs"}}, "Hdl21[dev,docs]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.pkg.Requirement())
		})
	}
}

// TestPackage_ImportModule verifies import-name derivation from the
// distribution name.
func TestPackage_ImportModule(t *testing.T) {
	tests := []struct {
		name     string
		pkg      Package
		expected string
	}{
		{"explicit module", Package{Name: "hdl21", Module: "hdl21"}, "hdl21"},
		{"derived from name", Package{Name: "vlsirtools"}, "vlsirtools"},
		{"hyphens become underscores", Package{Name: "my-pkg"}, "my_pkg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.pkg.ImportModule())
		})
	}
}

// TestManifest_WorkspaceRoot verifies workspace root resolution against
// the host repository root.
func TestManifest_WorkspaceRoot(t *testing.T) {
	t.Run("default parent directory", func(t *testing.T) {
		m := &Manifest{WorkspaceDir: ".."}
		assert.Equal(t, "/home/dev", m.WorkspaceRoot("/home/dev/Hdl21"))
	})

	t.Run("empty falls back to parent", func(t *testing.T) {
		m := &Manifest{}
		assert.Equal(t, "/home/dev", m.WorkspaceRoot("/home/dev/Hdl21"))
	})

	t.Run("nested relative dir", func(t *testing.T) {
		m := &Manifest{WorkspaceDir: "../workspaces"}
		assert.Equal(t, "/home/dev/workspaces", m.WorkspaceRoot("/home/dev/Hdl21"))
	})

	t.Run("absolute dir kept as is", func(t *testing.T) {
		m := &Manifest{WorkspaceDir: "/srv/eda"}
		assert.Equal(t, "/srv/eda", m.WorkspaceRoot("/home/dev/Hdl21"))
	})
}

// --- Find / Resolve tests ---

// TestFind verifies the manifest search order: .hdlenv/config.json is
// preferred over the root-level .hdlenv.json.
func TestFind(t *testing.T) {
	t.Run("prefers .hdlenv/config.json", func(t *testing.T) {
		dir := t.TempDir()
		preferred := writeManifest(t, dir, filepath.Join(".hdlenv", "config.json"), `{"name": "a"}`)
		writeManifest(t, dir, ".hdlenv.json", `{"name": "b"}`)

		found, ok := Find(dir)
		require.True(t, ok)
		assert.Equal(t, preferred, found)
	})

	t.Run("falls back to .hdlenv.json", func(t *testing.T) {
		dir := t.TempDir()
		rootLevel := writeManifest(t, dir, ".hdlenv.json", `{"name": "b"}`)

		found, ok := Find(dir)
		require.True(t, ok)
		assert.Equal(t, rootLevel, found)
	})

	t.Run("not found", func(t *testing.T) {
		_, ok := Find(t.TempDir())
		assert.False(t, ok)
	})
}

// TestResolve verifies manifest resolution: explicit path, discovered
// file, and builtin fallback.
func TestResolve(t *testing.T) {
	t.Run("builtin fallback", func(t *testing.T) {
		m, source, err := Resolve(t.TempDir(), "")
		require.NoError(t, err)
		assert.Equal(t, "builtin", source)
		assert.Equal(t, "hdl21", m.Name)
	})

	t.Run("discovered manifest", func(t *testing.T) {
		dir := t.TempDir()
		path := writeManifest(t, dir, ".hdlenv.json", `{"name": "custom"}`)

		m, source, err := Resolve(dir, "")
		require.NoError(t, err)
		assert.Equal(t, path, source)
		assert.Equal(t, "custom", m.Name)
	})

	t.Run("explicit path wins over discovery", func(t *testing.T) {
		dir := t.TempDir()
		writeManifest(t, dir, ".hdlenv.json", `{"name": "discovered"}`)
		explicit := writeManifest(t, t.TempDir(), "ws.jsonc", `{"name": "explicit"}`)

		m, source, err := Resolve(dir, explicit)
		require.NoError(t, err)
		assert.Equal(t, explicit, source)
		assert.Equal(t, "explicit", m.Name)
	})

	t.Run("missing explicit path is an error", func(t *testing.T) {
		_, _, err := Resolve(t.TempDir(), "/nonexistent/ws.json")
		require.Error(t, err)

		var cliErr *model.CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, model.ExitManifestInvalid, cliErr.Code)
	})

	t.Run("invalid manifest is an error", func(t *testing.T) {
		dir := t.TempDir()
		writeManifest(t, dir, ".hdlenv.json", `{"name": "bad name!"}`)

		_, _, err := Resolve(dir, "")
		require.Error(t, err)

		var cliErr *model.CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, model.ExitManifestInvalid, cliErr.Code)
	})
}
