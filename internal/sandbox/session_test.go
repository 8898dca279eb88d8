package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennec-eda/hdlenv/internal/model"
)

// TestContainerPath verifies host-to-container path rebasing against the
// workspace mount. Paths under the workspace root translate onto
// /workspace; anything outside the mount is unreachable in the container
// and must error.
func TestContainerPath(t *testing.T) {
	session := NewSession(&model.SandboxInfo{ContainerID: "abc123"}, "/home/user/eda")

	testCases := []struct {
		name     string
		hostPath string
		expected string
		wantErr  bool
	}{
		{
			name:     "workspace root itself",
			hostPath: "/home/user/eda",
			expected: "/workspace",
		},
		{
			name:     "repo directly under root",
			hostPath: "/home/user/eda/Hdl21",
			expected: "/workspace/Hdl21",
		},
		{
			name:     "nested package path",
			hostPath: "/home/user/eda/Vlsir/bindings/python",
			expected: "/workspace/Vlsir/bindings/python",
		},
		{
			name:     "parent of the root",
			hostPath: "/home/user",
			wantErr:  true,
		},
		{
			name:     "sibling of the root",
			hostPath: "/home/user/other",
			wantErr:  true,
		},
		{
			name:     "unrelated tree",
			hostPath: "/var/tmp/elsewhere",
			wantErr:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := session.ContainerPath(tc.hostPath)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "outside the workspace root")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

// TestContainerPath_PrefixConfusion verifies that a sibling directory
// whose name shares a prefix with the workspace root is not mistaken
// for a path inside it.
func TestContainerPath_PrefixConfusion(t *testing.T) {
	session := NewSession(&model.SandboxInfo{ContainerID: "abc123"}, "/home/user/eda")

	// "/home/user/eda-backup" starts with the same bytes as the root but
	// is a different directory.
	_, err := session.ContainerPath("/home/user/eda-backup")
	require.Error(t, err)
}
