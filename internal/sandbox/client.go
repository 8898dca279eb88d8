// client.go wraps the Docker Engine SDK client behind automatic socket
// detection. Everything else in this package receives a *Client rather
// than constructing SDK clients itself, so the detection logic and the
// ping timeout live in exactly one place.
package sandbox

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/fennec-eda/hdlenv/internal/model"
)

// pingTimeout bounds how long a daemon probe may take. Docker Desktop in
// a paused state accepts connections without answering, and the CLI must
// not hang on it.
const pingTimeout = 5 * time.Second

// Client is the package's handle on the Docker daemon. It narrows the
// SDK surface to what the sandbox lifecycle needs and owns the socket
// detection.
type Client struct {
	inner *client.Client
}

// NewClient connects to the Docker daemon.
//
// DOCKER_HOST, when set, wins unconditionally and is handed to the SDK
// as-is. Otherwise the platform's known socket locations are probed in
// order and the first one that exists is used. Reachability is not
// checked here — callers Ping before relying on the connection.
//
// Failures return a CLIError with ExitDockerNotRunning, since every
// caller treats "no client" and "no daemon" the same way.
func NewClient() (*Client, error) {
	host := os.Getenv("DOCKER_HOST")
	if host == "" {
		detected, err := detectHost()
		if err != nil {
			return nil, model.WrapCLIError(model.ExitDockerNotRunning, "Docker socket not found", err)
		}
		host = detected
	}

	// Version negotiation keeps one binary compatible with whatever
	// daemon generation the host runs.
	inner, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("could not build a Docker client for host %q", host),
			err,
		)
	}

	return &Client{inner: inner}, nil
}

// detectHost finds the daemon endpoint for the current platform.
//
// Unix sockets are probed with os.Stat: existence is cheap and does not
// need a running daemon. Windows named pipes do not support Stat, so the
// pipe is probed with a short dial instead.
func detectHost() (string, error) {
	if runtime.GOOS == "windows" {
		const pipePath = `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, time.Second)
		if err != nil {
			return "", fmt.Errorf("no Docker named pipe at %s: %w", pipePath, err)
		}
		conn.Close()
		return "npipe://" + pipePath, nil
	}

	candidates := unixSocketCandidates()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("no Docker socket at any of %v; is the daemon running?", candidates)
}

// unixSocketCandidates lists the socket paths to probe, most preferred
// first. Linux has the one canonical path; newer Docker Desktop builds
// on macOS put the socket under the user's home directory and do not
// always create the /var/run symlink.
func unixSocketCandidates() []string {
	candidates := []string{"/var/run/docker.sock"}
	if runtime.GOOS == "darwin" {
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, home+"/.docker/run/docker.sock")
		}
	}
	return candidates
}

// Ping verifies the daemon answers within pingTimeout.
//
// Returns a CLIError with ExitDockerNotRunning when it does not; sandbox
// setup reports that before attempting any container work.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"the Docker daemon did not answer a ping; is it running?",
			err,
		)
	}
	return nil
}

// DaemonVersion returns the daemon's version string (e.g. "27.4.0").
// `hdlenv status` puts it in the tools table next to git and python.
func (c *Client) DaemonVersion(ctx context.Context) (string, error) {
	v, err := c.inner.ServerVersion(ctx)
	if err != nil {
		return "", model.WrapCLIError(model.ExitDockerNotRunning, "failed to query Docker daemon version", err)
	}
	return v.Version, nil
}

// Close releases the SDK client's connections. Safe to call more than
// once; typically deferred right after NewClient.
func (c *Client) Close() error {
	if c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// Inner exposes the underlying SDK client to the lifecycle functions in
// this package. Code outside the package should not need it.
func (c *Client) Inner() *client.Client {
	return c.inner
}
