// session.go runs setup steps inside a sandbox container via
// "docker exec". The host workspace root is bind-mounted at
// WorkspaceMount, so a step's host working directory translates to a
// container directory by rebasing it onto the mount point.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/fennec-eda/hdlenv/internal/model"
)

// Session executes commands inside a running sandbox container.
// It is handed to the setup orchestrator in place of the host executor
// when --sandbox is given; both expose the same RunStep contract.
type Session struct {
	containerID   string
	workspaceRoot string
}

// NewSession creates a Session bound to a running sandbox container.
// workspaceRoot is the host path that the container mounts at
// WorkspaceMount; it anchors the host-to-container path rebasing.
func NewSession(info *model.SandboxInfo, workspaceRoot string) *Session {
	return &Session{
		containerID:   info.ContainerID,
		workspaceRoot: workspaceRoot,
	}
}

// ContainerPath rebases a host path under the workspace root onto the
// container's workspace mount:
//
//	/home/user/eda            → /workspace
//	/home/user/eda/Hdl21      → /workspace/Hdl21
//
// Host paths outside the workspace root cannot be reached inside the
// container (only the workspace root is mounted), so they produce an
// error rather than a silently wrong path.
func (s *Session) ContainerPath(hostPath string) (string, error) {
	rel, err := filepath.Rel(s.workspaceRoot, hostPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf(
			"host path %q is outside the workspace root %q and is not visible in the sandbox",
			hostPath, s.workspaceRoot,
		)
	}
	// path.Join (not filepath.Join) because container paths are always
	// forward-slash even when the host is Windows.
	return path.Join(WorkspaceMount, filepath.ToSlash(rel)), nil
}

// RunStep executes argv inside the sandbox container with the working
// directory set to the container equivalent of the host directory dir.
// It returns stdout and stderr separately; stderr usually carries the
// interesting diagnostics from git and pip.
//
// The returned error is the raw execution error. The setup orchestrator
// owns translating it into a CLIError with the step's exit code, exactly
// as it does for host execution.
func (s *Session) RunStep(ctx context.Context, dir string, argv []string) (string, string, error) {
	containerDir, err := s.ContainerPath(dir)
	if err != nil {
		return "", "", err
	}

	args := make([]string, 0, len(argv)+4)
	args = append(args, "exec", "-w", containerDir, s.containerID)
	args = append(args, argv...)

	cmd := exec.CommandContext(ctx, "docker", args...)

	// Capture stdout and stderr separately so error reporting can show
	// the tool's diagnostics without mixing in its normal output.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), stderr.String(), err
}
