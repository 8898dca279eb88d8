package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennec-eda/hdlenv/internal/model"
)

// validLabels returns a label map for a well-formed sandbox with no
// published ports. Tests mutate the copy they get.
func validLabels() map[string]string {
	return map[string]string{
		LabelManagedBy:     ManagedByValue,
		LabelWorkspace:     "vlsir",
		LabelRepoPath:      "/home/maya/chips/Vlsir",
		LabelWorkspaceRoot: "/home/maya/chips",
		LabelImage:         "python:3.12-bookworm",
		LabelCreatedAt:     "2026-02-10T08:15:00Z",
	}
}

func TestBuildLabels(t *testing.T) {
	meta := &model.SandboxMeta{
		Workspace:     "vlsir",
		RepoPath:      "/home/maya/chips/Vlsir",
		WorkspaceRoot: "/home/maya/chips",
		Image:         "python:3.12-bookworm",
		Ports: []model.PortMapping{
			{ContainerPort: 8888, HostPort: 38888, Protocol: "tcp"},
			{ContainerPort: 6006, HostPort: 6006, Protocol: "tcp"},
		},
		CreatedAt: time.Date(2026, 2, 10, 8, 15, 0, 0, time.UTC),
	}

	want := validLabels()
	want["hdlenv.port.8888"] = "38888"
	want["hdlenv.port.6006"] = "6006"

	assert.Equal(t, want, BuildLabels(meta))
}

func TestBuildLabels_TimestampNormalizedToUTC(t *testing.T) {
	in := time.Date(2026, 2, 10, 9, 15, 0, 0, time.FixedZone("CET", 3600))
	meta := &model.SandboxMeta{CreatedAt: in}

	labels := BuildLabels(meta)
	assert.Equal(t, "2026-02-10T08:15:00Z", labels[LabelCreatedAt])
}

func TestParseLabels(t *testing.T) {
	labels := validLabels()
	labels["hdlenv.port.8888"] = "38888"

	meta, err := ParseLabels(labels)
	require.NoError(t, err)

	assert.Equal(t, "vlsir", meta.Workspace)
	assert.Equal(t, "/home/maya/chips/Vlsir", meta.RepoPath)
	assert.Equal(t, "/home/maya/chips", meta.WorkspaceRoot)
	assert.Equal(t, "python:3.12-bookworm", meta.Image)
	assert.Equal(t, time.Date(2026, 2, 10, 8, 15, 0, 0, time.UTC), meta.CreatedAt)

	require.Len(t, meta.Ports, 1)
	assert.Equal(t, model.PortMapping{ContainerPort: 8888, HostPort: 38888, Protocol: "tcp"}, meta.Ports[0])
}

func TestParseLabels_NoPorts(t *testing.T) {
	meta, err := ParseLabels(validLabels())
	require.NoError(t, err)
	assert.Empty(t, meta.Ports)
}

// Dropping any one required label must fail the parse, and the error
// has to name the absent key so the user can see what is wrong with
// the container.
func TestParseLabels_MissingRequired(t *testing.T) {
	for _, key := range requiredLabels {
		t.Run(key, func(t *testing.T) {
			labels := validLabels()
			delete(labels, key)

			_, err := ParseLabels(labels)
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestParseLabels_ForeignManagedBy(t *testing.T) {
	labels := validLabels()
	labels[LabelManagedBy] = "devpod"

	_, err := ParseLabels(labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foreign")
	assert.Contains(t, err.Error(), "devpod")
}

func TestParseLabels_BadCreatedAt(t *testing.T) {
	labels := validLabels()
	labels[LabelCreatedAt] = "last tuesday"

	_, err := ParseLabels(labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), LabelCreatedAt)
}

func TestBuildPortLabel(t *testing.T) {
	assert.Equal(t, "hdlenv.port.8888", BuildPortLabel(8888))
	assert.Equal(t, "hdlenv.port.80", BuildPortLabel(80))
}

func TestParsePortLabels(t *testing.T) {
	labels := validLabels()
	labels["hdlenv.port.8888"] = "38888"
	labels["hdlenv.port.6006"] = "16006"

	mappings, err := ParsePortLabels(labels)
	require.NoError(t, err)

	// Map iteration order varies, so compare as a set.
	assert.ElementsMatch(t, []model.PortMapping{
		{ContainerPort: 8888, HostPort: 38888, Protocol: "tcp"},
		{ContainerPort: 6006, HostPort: 16006, Protocol: "tcp"},
	}, mappings)
}

func TestParsePortLabels_Empty(t *testing.T) {
	mappings, err := ParsePortLabels(validLabels())
	require.NoError(t, err)
	assert.NotNil(t, mappings)
	assert.Empty(t, mappings)
}

func TestParsePortLabels_Malformed(t *testing.T) {
	t.Run("key suffix", func(t *testing.T) {
		_, err := ParsePortLabels(map[string]string{"hdlenv.port.jupyter": "8888"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "container port")
	})

	t.Run("value", func(t *testing.T) {
		_, err := ParsePortLabels(map[string]string{"hdlenv.port.8888": "auto"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "host port")
	})
}

// BuildLabels and ParseLabels must stay inverses: a sandbox written to
// labels and read back is the same sandbox.
func TestLabelRoundTrip(t *testing.T) {
	original := &model.SandboxMeta{
		Workspace:     "hdl21",
		RepoPath:      "/work/eda/Hdl21",
		WorkspaceRoot: "/work/eda",
		Image:         "python:3.11-slim",
		Ports: []model.PortMapping{
			{ContainerPort: 8888, HostPort: 18888, Protocol: "tcp"},
		},
		CreatedAt: time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC),
	}

	parsed, err := ParseLabels(BuildLabels(original))
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}
