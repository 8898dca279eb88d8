// ports.go implements host port availability probing for sandbox
// containers that publish ports.
//
// Probing uses the operating system's network stack (net.Listen /
// net.ListenPacket) to determine whether a port is free. This is the most
// reliable method because it asks the OS directly, rather than parsing
// /proc/net/* or shelling out to `lsof` or `ss`, which may require
// elevated permissions.
package sandbox

import (
	"fmt"
	"net"
	"strings"

	"github.com/fennec-eda/hdlenv/internal/model"
)

// IsPortAvailable checks whether a single port is free on the host.
//
// For TCP it attempts net.Listen("tcp", ":port"); for UDP it attempts
// net.ListenPacket("udp", ":port"). If the bind succeeds the port is
// available and the listener is closed immediately.
//
// The probe binds all interfaces (":port" rather than "127.0.0.1:port")
// because Docker publishes ports on 0.0.0.0 — checking the same address
// space avoids false positives.
func IsPortAvailable(port int, protocol string) bool {
	addr := fmt.Sprintf(":%d", port)

	switch protocol {
	case "tcp":
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		// Close immediately — the bind itself was the test.
		defer func() { _ = listener.Close() }()
		return true

	case "udp":
		// UDP is connectionless, so ListenPacket (returning a PacketConn)
		// is the equivalent probe.
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = conn.Close() }()
		return true

	default:
		// Protocols the prober cannot check count as busy.
		return false
	}
}

// EnsurePortsFree verifies that every host port in the given mappings can
// still be bound. It probes all ports before reporting, so the error
// message lists every busy port rather than just the first one.
//
// Returns a model.CLIError with ExitPortUnavailable when any port is
// already in use.
func EnsurePortsFree(mappings []model.PortMapping) error {
	var busy []string
	for _, pm := range mappings {
		protocol := pm.Protocol
		if protocol == "" {
			protocol = "tcp"
		}
		if !IsPortAvailable(pm.HostPort, protocol) {
			busy = append(busy, fmt.Sprintf("%d/%s", pm.HostPort, protocol))
		}
	}
	if len(busy) > 0 {
		return model.NewCLIError(
			model.ExitPortUnavailable,
			fmt.Sprintf("host port(s) already in use: %s", strings.Join(busy, ", ")),
		)
	}
	return nil
}
