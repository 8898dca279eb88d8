package sandbox

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fennec-eda/hdlenv/internal/model"
)

// Sandbox containers carry their entire description as Docker labels;
// there is no state file on the host. Everything `hdlenv status` and
// `hdlenv clean` need to know about a sandbox is recoverable from
// `docker inspect` output, which also means a sandbox removed behind
// our back simply disappears from view instead of leaving a stale
// record.
const (
	// LabelPrefix namespaces every hdlenv label so we never collide
	// with labels written by compose, dev containers, or other tools.
	LabelPrefix = "hdlenv."

	// LabelManagedBy marks a container as ours. It is the filter used
	// for discovery; its value is always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelWorkspace holds the workspace name from the manifest.
	LabelWorkspace = LabelPrefix + "workspace"

	// LabelRepoPath holds the absolute host path of the repository the
	// sandbox belongs to.
	LabelRepoPath = LabelPrefix + "repo-path"

	// LabelWorkspaceRoot holds the host directory bind-mounted into the
	// container at the workspace mount point.
	LabelWorkspaceRoot = LabelPrefix + "workspace-root"

	// LabelImage holds the image reference the container was created from.
	LabelImage = LabelPrefix + "image"

	// LabelPortPrefix starts the per-port labels. One label per published
	// port, container port in the key, host port in the value:
	//
	//	"hdlenv.port.8888" = "38888"
	LabelPortPrefix = LabelPrefix + "port."

	// LabelCreatedAt holds the creation time, RFC 3339 in UTC.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue tags every container this CLI creates, so a label
// filter on LabelManagedBy=ManagedByValue finds exactly our sandboxes.
const ManagedByValue = "hdlenv"

// requiredLabels must all be present for ParseLabels to accept a
// container as a well-formed sandbox. Port labels are optional.
var requiredLabels = []string{
	LabelManagedBy,
	LabelWorkspace,
	LabelRepoPath,
	LabelWorkspaceRoot,
	LabelImage,
	LabelCreatedAt,
}

// BuildLabels flattens a SandboxMeta into the label map applied at
// container creation. ParseLabels round-trips it back.
//
// Each published port becomes its own label so the mapping table stays
// readable in `docker inspect` and individual entries parse
// independently.
func BuildLabels(meta *model.SandboxMeta) map[string]string {
	labels := map[string]string{
		LabelManagedBy:     ManagedByValue,
		LabelWorkspace:     meta.Workspace,
		LabelRepoPath:      meta.RepoPath,
		LabelWorkspaceRoot: meta.WorkspaceRoot,
		LabelImage:         meta.Image,
		// Always UTC so the stored value does not depend on where the
		// sandbox was created.
		LabelCreatedAt: meta.CreatedAt.UTC().Format(time.RFC3339),
	}

	for _, pm := range meta.Ports {
		labels[BuildPortLabel(pm.ContainerPort)] = strconv.Itoa(pm.HostPort)
	}

	return labels
}

// ParseLabels rebuilds a SandboxMeta from a container's label map.
// Containers missing any of the required labels, or carrying a foreign
// managed-by value, are rejected rather than half-parsed.
func ParseLabels(labels map[string]string) (*model.SandboxMeta, error) {
	// Collect every absent key before failing so the error names all of
	// them at once.
	var missing []string
	for _, key := range requiredLabels {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("container lacks sandbox labels: %s", strings.Join(missing, ", "))
	}

	if got := labels[LabelManagedBy]; got != ManagedByValue {
		return nil, fmt.Errorf("foreign %s label %q, want %q", LabelManagedBy, got, ManagedByValue)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("bad %s label: %w", LabelCreatedAt, err)
	}

	ports, err := ParsePortLabels(labels)
	if err != nil {
		return nil, err
	}

	return &model.SandboxMeta{
		Workspace:     labels[LabelWorkspace],
		RepoPath:      labels[LabelRepoPath],
		WorkspaceRoot: labels[LabelWorkspaceRoot],
		Image:         labels[LabelImage],
		Ports:         ports,
		CreatedAt:     createdAt,
	}, nil
}

// BuildPortLabel returns the label key for one published container
// port, e.g. BuildPortLabel(8888) == "hdlenv.port.8888".
func BuildPortLabel(containerPort int) string {
	return fmt.Sprintf("%s%d", LabelPortPrefix, containerPort)
}

// ParsePortLabels picks the port labels out of a label map and decodes
// them into port mappings. A map with no port labels yields an empty
// slice; a port label whose key suffix or value is not a number is an
// error.
func ParsePortLabels(labels map[string]string) ([]model.PortMapping, error) {
	mappings := make([]model.PortMapping, 0, 4)

	for key, value := range labels {
		if !strings.HasPrefix(key, LabelPortPrefix) {
			continue
		}

		containerPort, err := strconv.Atoi(strings.TrimPrefix(key, LabelPortPrefix))
		if err != nil {
			return nil, fmt.Errorf("port label %q: container port is not a number: %w", key, err)
		}

		hostPort, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("port label %q: host port %q is not a number: %w", key, value, err)
		}

		mappings = append(mappings, model.PortMapping{
			ContainerPort: containerPort,
			HostPort:      hostPort,
			// Published sandbox ports are TCP services (Jupyter, docs
			// servers); UDP would need its own label scheme.
			Protocol: "tcp",
		})
	}

	return mappings, nil
}
