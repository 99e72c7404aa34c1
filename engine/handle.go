package engine

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/corvuslabs/testrig/docker"
	"github.com/corvuslabs/testrig/execrun"
	"github.com/corvuslabs/testrig/hostport"
	"github.com/corvuslabs/testrig/netmgr"
	"github.com/corvuslabs/testrig/spec"
)

// ErrPortNotExposed is returned by the Handle's port lookups when the
// container publishes no host binding for the requested container port.
type ErrPortNotExposed struct {
	ContainerID string
	Port        string
}

func (e *ErrPortNotExposed) Error() string {
	return fmt.Sprintf("engine: container %s exposes no host binding for %s", e.ContainerID, e.Port)
}

// Handle is the caller's live reference to a started container. It is
// returned once by Engine.Start and must eventually have Close called on
// it; Close is idempotent so a caller's own deferred cleanup and the
// watchdog racing to tear the same container down on process signal never
// double-remove it.
type Handle struct {
	engine      *Engine
	containerID string
	reuse       spec.ReuseDirective

	network      *netmgr.Network
	networkOwned bool
	watched      bool
	tunnel       *hostport.Tunnel

	closed  atomic.Bool
	removed atomic.Bool
}

// ID returns the container's full daemon-assigned ID.
func (h *Handle) ID() string { return h.containerID }

// MappedPort resolves the host-side binding for one of the container's
// exposed ports, e.g. the ephemeral port Docker picked for 5432/tcp.
func (h *Handle) MappedPort(ctx context.Context, containerPort spec.Port) (hostIP string, hostPort int, err error) {
	state, err := h.engine.client.Inspect(ctx, h.containerID)
	if err != nil {
		return "", 0, fmt.Errorf("engine: inspect for mapped port: %w", err)
	}
	key := portKey(containerPort)
	bindings, ok := state.Ports[key]
	if !ok || len(bindings) == 0 {
		return "", 0, &ErrPortNotExposed{ContainerID: h.containerID, Port: key}
	}
	return bindings[0].HostIP, bindings[0].HostPort, nil
}

// HostPortIPv4 returns the host port bound to containerPort on an IPv4
// host address, the form most test clients dial.
func (h *Handle) HostPortIPv4(ctx context.Context, containerPort spec.Port) (int, error) {
	return h.hostPort(ctx, containerPort, false)
}

// HostPortIPv6 is the IPv6 counterpart of HostPortIPv4.
func (h *Handle) HostPortIPv6(ctx context.Context, containerPort spec.Port) (int, error) {
	return h.hostPort(ctx, containerPort, true)
}

func (h *Handle) hostPort(ctx context.Context, containerPort spec.Port, ipv6 bool) (int, error) {
	state, err := h.engine.client.Inspect(ctx, h.containerID)
	if err != nil {
		return 0, fmt.Errorf("engine: inspect for host port: %w", err)
	}
	key := portKey(containerPort)
	port, ok := bindingForFamily(state.Ports[key], ipv6)
	if !ok {
		return 0, &ErrPortNotExposed{ContainerID: h.containerID, Port: key}
	}
	return port, nil
}

// bindingForFamily picks the host port bound on the requested address
// family. An empty host IP counts as IPv4: the daemon reports "" for the
// default 0.0.0.0 wildcard binding.
func bindingForFamily(bindings []docker.PortBindingInfo, ipv6 bool) (int, bool) {
	for _, b := range bindings {
		if strings.Contains(b.HostIP, ":") == ipv6 {
			return b.HostPort, true
		}
	}
	return 0, false
}

func portKey(p spec.Port) string {
	proto := p.Protocol
	if proto == "" {
		proto = spec.ProtoTCP
	}
	return strconv.Itoa(p.Number) + "/" + string(proto)
}

// BridgeIP returns the container's IP address on the network it was
// started on (the named network when the request set one, the default
// bridge otherwise).
func (h *Handle) BridgeIP(ctx context.Context) (string, error) {
	state, err := h.engine.client.Inspect(ctx, h.containerID)
	if err != nil {
		return "", fmt.Errorf("engine: inspect for bridge ip: %w", err)
	}
	if h.network != nil {
		if ip, ok := state.NetworkIPs[h.network.Name]; ok && ip != "" {
			return ip, nil
		}
	}
	if ip, ok := state.NetworkIPs["bridge"]; ok && ip != "" {
		return ip, nil
	}
	for _, ip := range state.NetworkIPs {
		if ip != "" {
			return ip, nil
		}
	}
	return "", fmt.Errorf("engine: container %s reports no network ip", h.containerID[:12])
}

// IsRunning reports the daemon's current view of the container's running
// flag, defined via inspect.State.Running across stop/start cycles.
func (h *Handle) IsRunning(ctx context.Context) (bool, error) {
	state, err := h.engine.client.Inspect(ctx, h.containerID)
	if err != nil {
		return false, fmt.Errorf("engine: inspect for running state: %w", err)
	}
	return state.Running, nil
}

// ExitCode returns the container's exit code once it has stopped running.
// Calling it on a running container returns an error rather than the
// daemon's stale zero.
func (h *Handle) ExitCode(ctx context.Context) (int, error) {
	state, err := h.engine.client.Inspect(ctx, h.containerID)
	if err != nil {
		return 0, fmt.Errorf("engine: inspect for exit code: %w", err)
	}
	if state.Running {
		return 0, fmt.Errorf("engine: container %s is still running", h.containerID[:12])
	}
	return state.ExitCode, nil
}

// Stop sends the container's main process SIGTERM, escalating to SIGKILL
// after timeoutSeconds. The handle stays valid; Start can bring the same
// container back.
func (h *Handle) Stop(ctx context.Context, timeoutSeconds int) error {
	return h.engine.client.Stop(ctx, h.containerID, timeoutSeconds)
}

// Start restarts a container this handle previously stopped. Readiness
// conditions are not re-evaluated; callers that need them re-run explicit
// checks through ExecWith or their own polling.
func (h *Handle) Start(ctx context.Context) error {
	return h.engine.client.Start(ctx, h.containerID)
}

// Remove force-removes the container (and its anonymous volumes)
// immediately, without waiting for Close. Close afterwards still releases
// the network and tunnel but skips the container itself.
func (h *Handle) Remove(ctx context.Context) error {
	if h.watched {
		h.engine.watchdog.Unregister(h.containerID)
	}
	h.removed.Store(true)
	return h.engine.client.Remove(ctx, h.containerID, true, true)
}

// LogReaders opens a follow-mode log stream and returns its stdout and
// stderr sides as independent byte readers. Each reader observes frames in
// arrival order; closing one does not disturb the other. The stream ends
// when the container stops (or is removed), at which point both readers
// return EOF.
func (h *Handle) LogReaders(ctx context.Context) (stdout, stderr io.ReadCloser, err error) {
	stream, _, err := h.engine.client.Logs(ctx, h.containerID, docker.LogsOptions{Follow: true})
	if err != nil {
		return nil, nil, fmt.Errorf("engine: open log stream: %w", err)
	}
	stdout, stderr = stream.Split()
	go stream.Run()
	return stdout, stderr, nil
}

// Host returns the daemon endpoint the caller should combine with
// MappedPort's result to reach the container, mirroring the readiness
// package's own host resolution.
func (h *Handle) Host() string { return h.engine.client.Host() }

// Exec runs argv inside the container and blocks for its exit code and
// captured output, the same primitive the engine uses internally for
// ExecBeforeReady/ExecAfterStart hooks.
func (h *Handle) Exec(ctx context.Context, argv []string) (*execrun.Result, error) {
	return h.ExecWith(ctx, execrun.Command{Argv: argv})
}

// ExecWith runs the full execrun.Command shape: container-readiness
// conditions evaluated before the exec is created, then an arbitrary
// cmd.WaitFor condition on the exec'd process itself (including an Exit
// mismatch check).
func (h *Handle) ExecWith(ctx context.Context, cmd execrun.Command) (*execrun.Result, error) {
	return execrun.Run(ctx, execAdapter{daemonAdapter{client: h.engine.client}}, h.containerID, cmd)
}

// Close stops and removes the container (unless the engine's removal
// policy is PolicyKeep or the handle was started under a non-never reuse
// directive, in which case the container is left running for a later
// process to re-attach to), releases any network this handle acquired
// (only under PolicyRemove; PolicyKeep keeps the network too), and tears
// down a host port exposure tunnel if one is open. Safe to call more
// than once; only the first call does any work. Close is infallible from
// the caller's perspective -- every failure is logged, never
// returned, the same as Engine.abandon.
func (h *Handle) Close(ctx context.Context) error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}

	if h.watched {
		h.engine.watchdog.Unregister(h.containerID)
	}

	if h.tunnel != nil {
		h.tunnel.Close(ctx)
	}

	if h.reuse == spec.ReuseNever && h.engine.policy == PolicyRemove && !h.removed.Load() {
		if stopErr := h.engine.client.Stop(ctx, h.containerID, 5); stopErr != nil {
			h.engine.logger.Warn("engine: handle close stop failed", "error", stopErr)
		}
		if removeErr := h.engine.client.Remove(ctx, h.containerID, true, true); removeErr != nil {
			h.engine.logger.Warn("engine: handle close remove failed", "error", removeErr)
		}
	}

	if h.network != nil && h.networkOwned && h.engine.policy == PolicyRemove {
		if releaseErr := h.network.Release(ctx); releaseErr != nil {
			h.engine.logger.Warn("engine: handle close network release failed", "error", releaseErr)
		}
	}

	return nil
}
