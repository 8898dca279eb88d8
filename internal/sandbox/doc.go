// Package sandbox manages the Docker container that hosts hdlenv's
// sandboxed setup mode.
//
// It covers four concerns: reaching the daemon (socket detection across
// Linux, macOS, and Windows, DOCKER_HOST taking precedence), encoding
// workspace metadata as container labels (the labels are the only
// sandbox state store), the container lifecycle (find, ensure-running,
// exec, remove), and probing host ports before publishing them.
//
// Inspection, start, and removal go through the Docker Engine SDK
// (github.com/docker/docker/client, version negotiation on). Container
// creation and command execution shell out to the docker CLI instead,
// since "docker run" and "docker exec" map directly onto the flags
// image documentation is written in.
package sandbox
