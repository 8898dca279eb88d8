// container.go implements the sandbox container lifecycle for the hdlenv
// CLI: discovery, creation, reuse, and removal.
//
// Lifecycle operations follow two patterns:
//   - inspection, start, and removal go through the Docker SDK
//   - creation and command execution go through the docker CLI
//     ("docker run" / "docker exec"), whose flags map directly onto
//     the bind-mount and port-publishing behavior hdlenv needs
//
// All managed containers carry the "hdlenv.managed-by" label, which
// separates them from unrelated containers on the same host.
package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/fennec-eda/hdlenv/internal/model"
)

// WorkspaceMount is the path inside the sandbox container where the host
// workspace root is bind-mounted. Setup steps that run in the sandbox have
// their working directories rebased onto this mount.
const WorkspaceMount = "/workspace"

// ContainerName returns the deterministic container name for a workspace.
// One sandbox container exists per workspace, so the name doubles as a
// uniqueness guarantee: a second "docker run" with the same name fails
// rather than silently creating a duplicate.
func ContainerName(workspace string) string {
	return "hdlenv-" + workspace
}

// List queries the Docker daemon for all containers that carry the
// "hdlenv.managed-by=hdlenv" label, including stopped ones. It is the
// entry point for discovering what sandboxes currently exist; all state
// is derived from Docker labels rather than any external file.
func List(ctx context.Context, cli *Client) ([]model.SandboxInfo, error) {
	// Docker performs label filtering server-side, which is cheaper than
	// listing everything and filtering in Go.
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	// All:true includes stopped containers — a stopped sandbox still needs
	// to show up in `hdlenv status` and be removable by `hdlenv clean`.
	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"could not list containers from the Docker daemon",
			err,
		)
	}

	result := make([]model.SandboxInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}

	return result, nil
}

// Find returns the sandbox container for the given workspace, or nil when
// none exists. When multiple containers match (which the deterministic
// container name should prevent), a running one is preferred.
func Find(ctx context.Context, cli *Client, workspace string) (*model.SandboxInfo, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
		filters.Arg("label", LabelWorkspace+"="+workspace),
	)

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to look up sandbox container for workspace %q", workspace),
			err,
		)
	}
	if len(containers) == 0 {
		return nil, nil
	}

	for _, c := range containers {
		if c.State == "running" {
			info := containerToInfo(c)
			return &info, nil
		}
	}
	info := containerToInfo(containers[0])
	return &info, nil
}

// containerToInfo maps a Docker API container struct onto SandboxInfo.
// Docker reports names with a leading slash ("/hdlenv-hdl21"); the
// slash is an API artifact and gets stripped.
func containerToInfo(c types.Container) model.SandboxInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	return model.SandboxInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		Image:         c.Image,
		Status:        c.State,
		Labels:        c.Labels,
	}
}

// EnsureRunning returns a running sandbox container for the workspace
// described by meta, creating or restarting one as needed:
//
//  1. An existing running container is returned as-is.
//  2. An existing stopped container is started via the Docker SDK,
//     preserving its filesystem state (previously installed packages).
//  3. Otherwise a new container is created with "docker run -d", after
//     verifying that every published host port is still free.
func EnsureRunning(ctx context.Context, cli *Client, meta *model.SandboxMeta) (*model.SandboxInfo, error) {
	existing, err := Find(ctx, cli, meta.Workspace)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.Running() {
			return existing, nil
		}
		if err := startContainer(ctx, cli, existing.ContainerID); err != nil {
			return nil, err
		}
		// Refresh so the returned status reflects the started container.
		return Find(ctx, cli, meta.Workspace)
	}

	// Publishing a port that is already bound would make "docker run" fail
	// with an opaque daemon error, so probe first and fail with the port
	// exit code instead.
	if err := EnsurePortsFree(meta.Ports); err != nil {
		return nil, err
	}

	if err := runNewContainer(ctx, meta); err != nil {
		return nil, err
	}

	created, err := Find(ctx, cli, meta.Workspace)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, model.NewCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("sandbox container %q started but cannot be found", ContainerName(meta.Workspace)),
		)
	}
	return created, nil
}

// startContainer starts a stopped container by ID using the Docker SDK.
func startContainer(ctx context.Context, cli *Client, containerID string) error {
	err := cli.Inner().ContainerStart(ctx, containerID, container.StartOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start sandbox container %q", containerID),
			err,
		)
	}
	return nil
}

// runNewContainer creates and starts a sandbox container with
// "docker run -d". The container runs "sleep infinity" as its main
// process so it stays alive between "docker exec" invocations.
//
// os/exec is used rather than the Docker SDK because the SDK's
// ContainerCreate + ContainerStart workflow requires constructing
// Config/HostConfig structs, while "docker run" accepts the same flags
// the image documentation describes.
func runNewContainer(ctx context.Context, meta *model.SandboxMeta) error {
	name := ContainerName(meta.Workspace)

	args := make([]string, 0, 16)
	args = append(args, "run", "-d")
	args = append(args, "--name", name)
	args = append(args, buildRunArgs(meta)...)
	args = append(args, meta.Image)
	// Keep-alive main process. "sleep infinity" is available in any image
	// with GNU coreutils, which includes the default python images.
	args = append(args, "sleep", "infinity")

	cmd := exec.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("creating sandbox container %q failed: %s",
				name, strings.TrimSpace(string(output))),
			err,
		)
	}

	return nil
}

// buildRunArgs constructs the "docker run" flags for a sandbox container:
// metadata labels, the workspace bind mount, published ports, and the
// default working directory. The image name and keep-alive command are
// appended by the caller.
//
// Label flags are emitted in sorted key order so the generated command
// line is deterministic.
func buildRunArgs(meta *model.SandboxMeta) []string {
	labels := BuildLabels(meta)
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	args := make([]string, 0, len(labels)*2+len(meta.Ports)*2+4)
	for _, k := range keys {
		args = append(args, "--label", k+"="+labels[k])
	}

	// Bind-mount the workspace root so clones and editable installs made
	// inside the container land on the host filesystem.
	args = append(args, "-v", meta.WorkspaceRoot+":"+WorkspaceMount)

	for _, pm := range meta.Ports {
		args = append(args, "-p", strconv.Itoa(pm.HostPort)+":"+strconv.Itoa(pm.ContainerPort))
	}

	args = append(args, "-w", WorkspaceMount)
	return args
}

// Remove removes a sandbox container by ID using the Docker SDK.
// When force is true, Docker kills a running container before removing
// it, which is what `hdlenv clean` wants: teardown without a separate
// stop step.
func Remove(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove sandbox container %q", containerID),
			err,
		)
	}
	return nil
}
