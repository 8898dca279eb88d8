package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validManifest returns a minimal manifest that passes validation,
// for tests to break one field at a time.
func validManifest() *Manifest {
	return &Manifest{
		Name:         "hdl21",
		WorkspaceDir: "..",
		Python:       "python3",
		Repos: []Repo{
			{Name: "Vlsir", URL: "https://github.com/Vlsir/Vlsir.git", Path: "Vlsir"},
		},
		Packages: []Package{
			{Name: "vlsir", Path: "Vlsir/bindings/python"},
		},
	}
}

// TestValidate_OK verifies that a well-formed manifest produces no errors.
func TestValidate_OK(t *testing.T) {
	assert.Empty(t, Validate(validManifest()))
}

// TestValidate_Name verifies workspace name checks.
func TestValidate_Name(t *testing.T) {
	tests := []struct {
		name     string
		hasError bool
	}{
		{"hdl21", false},
		{"vlsir-dev", false},
		{"", true},
		{"bad name", true},
		{"-leading", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest()
			m.Name = tt.name
			errs := Validate(m)
			if tt.hasError {
				require.NotEmpty(t, errs)
				assert.Equal(t, "name", errs[0].Field)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

// TestValidate_Repos verifies repository checks: required URL and name,
// duplicate detection, and path containment.
func TestValidate_Repos(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		m := validManifest()
		m.Repos[0].URL = ""
		errs := Validate(m)
		require.Len(t, errs, 1)
		assert.Equal(t, "repos[0].url", errs[0].Field)
	})

	t.Run("missing name", func(t *testing.T) {
		m := validManifest()
		m.Repos[0].Name = ""
		errs := Validate(m)
		require.NotEmpty(t, errs)
		assert.Equal(t, "repos[0].name", errs[0].Field)
	})

	t.Run("duplicate name", func(t *testing.T) {
		m := validManifest()
		m.Repos = append(m.Repos, Repo{Name: "Vlsir", URL: "https://example.com/x.git", Path: "other"})
		errs := Validate(m)
		require.Len(t, errs, 1)
		assert.Equal(t, "repos[1].name", errs[0].Field)
		assert.Contains(t, errs[0].Message, "duplicate")
	})

	t.Run("duplicate clone path", func(t *testing.T) {
		m := validManifest()
		m.Repos = append(m.Repos, Repo{Name: "Other", URL: "https://example.com/x.git", Path: "Vlsir"})
		errs := Validate(m)
		require.Len(t, errs, 1)
		assert.Equal(t, "repos[1].path", errs[0].Field)
	})

	t.Run("escaping path", func(t *testing.T) {
		m := validManifest()
		m.Repos[0].Path = "../outside"
		errs := Validate(m)
		require.Len(t, errs, 1)
		assert.Equal(t, "repos[0].path", errs[0].Field)
	})

	t.Run("absolute path", func(t *testing.T) {
		m := validManifest()
		m.Repos[0].Path = "/tmp/Vlsir"
		errs := Validate(m)
		require.Len(t, errs, 1)
		assert.Equal(t, "repos[0].path", errs[0].Field)
	})
}

// TestValidate_Packages verifies package checks.
func TestValidate_Packages(t *testing.T) {
	t.Run("missing name", func(t *testing.T) {
		m := validManifest()
		m.Packages[0].Name = ""
		errs := Validate(m)
		require.Len(t, errs, 1)
		assert.Equal(t, "packages[0].name", errs[0].Field)
	})

	t.Run("duplicate name", func(t *testing.T) {
		m := validManifest()
		m.Packages = append(m.Packages, Package{Name: "vlsir", Path: "Other"})
		errs := Validate(m)
		require.Len(t, errs, 1)
		assert.Equal(t, "packages[1].name", errs[0].Field)
	})

	t.Run("missing path", func(t *testing.T) {
		m := validManifest()
		m.Packages[0].Path = ""
		errs := Validate(m)
		require.Len(t, errs, 1)
		assert.Equal(t, "packages[0].path", errs[0].Field)
	})

	t.Run("escaping path", func(t *testing.T) {
		m := validManifest()
		m.Packages[0].Path = "../../etc"
		errs := Validate(m)
		require.Len(t, errs, 1)
		assert.Equal(t, "packages[0].path", errs[0].Field)
	})

	t.Run("empty extra", func(t *testing.T) {
		m := validManifest()
		m.Packages[0].Extras = []string{"dev", ""}
		errs := Validate(m)
		require.Len(t, errs, 1)
		assert.Equal(t, "packages[0].extras[1]", errs[0].Field)
	})
}

// TestValidate_SandboxPorts verifies published port checks.
func TestValidate_SandboxPorts(t *testing.T) {
	t.Run("valid ports", func(t *testing.T) {
		m := validManifest()
		m.Sandbox.Ports = []int{8888, 8080}
		assert.Empty(t, Validate(m))
	})

	t.Run("out of range", func(t *testing.T) {
		m := validManifest()
		m.Sandbox.Ports = []int{0, 70000}
		errs := Validate(m)
		require.Len(t, errs, 2)
		assert.Equal(t, "sandbox.ports[0]", errs[0].Field)
		assert.Equal(t, "sandbox.ports[1]", errs[1].Field)
	})

	t.Run("duplicate", func(t *testing.T) {
		m := validManifest()
		m.Sandbox.Ports = []int{8888, 8888}
		errs := Validate(m)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Message, "duplicate")
	})
}

// TestValidate_CollectsAllProblems verifies that validation reports every
// problem in one pass instead of stopping at the first.
func TestValidate_CollectsAllProblems(t *testing.T) {
	m := &Manifest{
		Name: "bad name",
		Repos: []Repo{
			{Name: "", URL: ""},
		},
		Packages: []Package{
			{Name: "", Path: "/abs"},
		},
	}

	errs := Validate(m)
	assert.GreaterOrEqual(t, len(errs), 4)
}
