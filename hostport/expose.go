package hostport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
)

// AliasName is the reserved DNS alias the target container resolves to
// reach the sidecar, and through it, the host.
const AliasName = "host.testcontainers.internal"

// Expose stands up the sidecar on network, waits for its readiness delay,
// opens the reverse SSH tunnel for every port in hostPorts, and returns the
// live Tunnel plus the bridge IP the caller should inject into the target
// container's Hosts map under AliasName before creating it. daemonHost is
// the daemon endpoint the engine's client is connected to (a unix://,
// tcp://, etc. URL): the sidecar's SSH port is published on the daemon
// host, so that is where the engine dials it -- the bridge IP only serves
// sibling containers, never this process.
func Expose(ctx context.Context, starter ContainerStarter, daemonHost, network string, hostPorts []int, logger *slog.Logger) (*Tunnel, string, error) {
	hostPorts = dedupePorts(hostPorts)

	sidecar, err := StartSidecar(ctx, starter, network, logger)
	if err != nil {
		return nil, "", err
	}

	sidecarAddr := fmt.Sprintf("%s:%d", dialHost(daemonHost), sidecar.sshPort)
	tunnel, err := Open(ctx, sidecar, sidecarAddr, hostPorts, logger)
	if err != nil {
		_ = sidecar.Stop(ctx)
		return nil, "", err
	}

	return tunnel, sidecar.BridgeIP(), nil
}

// dialHost extracts the hostname this process should dial to reach ports
// the daemon publishes. Socket-based endpoints (unix, npipe, or an
// unparseable/empty value) mean the daemon is local, so published ports
// appear on localhost; for tcp/http(s) endpoints the daemon may be remote
// and the URL's own host is the one carrying the published ports.
func dialHost(daemonHost string) string {
	if daemonHost == "" {
		return "localhost"
	}
	u, err := url.Parse(daemonHost)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	switch strings.ToLower(u.Scheme) {
	case "unix", "npipe", "fd":
		return "localhost"
	}
	return u.Hostname()
}

// dedupePorts returns ports deduplicated and sorted ascending, so a caller
// listing the same port twice opens one forward for it and forwards are
// established in a stable order.
func dedupePorts(ports []int) []int {
	seen := make(map[int]struct{}, len(ports))
	out := make([]int, 0, len(ports))
	for _, p := range ports {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
