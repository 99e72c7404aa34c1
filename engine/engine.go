// Package engine is the lifecycle orchestrator: it turns a
// spec.ContainerRequest into a running, ready container and hands back a
// Handle whose Close deterministically tears everything it owns back down.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/corvuslabs/testrig/docker"
	"github.com/corvuslabs/testrig/execrun"
	"github.com/corvuslabs/testrig/hostport"
	"github.com/corvuslabs/testrig/internal/archive"
	"github.com/corvuslabs/testrig/internal/randname"
	"github.com/corvuslabs/testrig/netmgr"
	"github.com/corvuslabs/testrig/spec"
	"github.com/corvuslabs/testrig/tcenv"
	"github.com/corvuslabs/testrig/wait"
	"github.com/corvuslabs/testrig/watchdog"
)

// RemovalPolicy controls what Handle.Close and the watchdog do to a
// container once it is no longer needed.
type RemovalPolicy int

const (
	PolicyRemove RemovalPolicy = iota
	PolicyKeep
)

// Engine is the process-wide orchestrator. One Engine is normally
// constructed per process and shared by every Start call, matching the
// spec's singleton daemon client.
type Engine struct {
	client       *docker.Client
	logger       *slog.Logger
	networks     *netmgr.Manager
	watchdog     *watchdog.Registry
	policy       RemovalPolicy
	reuseEnabled bool
}

// New builds an Engine around an already-connected *docker.Client.
func New(client *docker.Client, logger *slog.Logger, cfg *tcenv.DaemonConfig) *Engine {
	policy := PolicyRemove
	reuseEnabled := false
	if cfg != nil {
		cfg.WarnDeprecated(logger)
		if cfg.Keep() {
			policy = PolicyKeep
		}
		reuseEnabled = cfg.ReuseEnabled
	}
	return &Engine{
		client:       client,
		logger:       logger,
		networks:     netmgr.NewManager(client),
		watchdog:     watchdog.NewRegistry(logger),
		policy:       policy,
		reuseEnabled: reuseEnabled,
	}
}

// Start builds, creates, starts, and waits for a container to become ready
// per req, returning a Handle for interacting with and eventually
// releasing it.
func (e *Engine) Start(ctx context.Context, req spec.ContainerRequest) (*Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid request: %w", err)
	}

	if req.Image.IsFloatingTag() {
		e.logger.Warn("image uses a floating tag, pulls are not reproducible", "image", req.Image.Reference())
	}

	// The per-request ReuseDirective is advisory: TESTCONTAINERS_REUSE_ENABLE
	// is the global kill switch, matching every other language port's
	// behavior of refusing reuse process-wide until an operator opts in,
	// regardless of what any individual request asks for.
	if !e.reuseEnabled {
		req.ReuseDirective = spec.ReuseNever
	}

	labels := req.EffectiveLabels(processSessionID())

	if req.ReuseDirective != spec.ReuseNever {
		if handle, ok, err := e.tryReuse(ctx, req, labels); err != nil {
			return nil, err
		} else if ok {
			return handle, nil
		}
	}

	var net *netmgr.Network
	var networkOwned bool
	if req.Network != "" && netmgr.IsManaged(req.Network) {
		n, owned, err := e.networks.Acquire(ctx, req.Network)
		if err != nil {
			return nil, fmt.Errorf("engine: acquire network %q: %w", req.Network, err)
		}
		net, networkOwned = n, owned
	}

	if len(req.HostExposedPorts) > 0 {
		tunnel, bridgeIP, err := hostport.Expose(ctx, sidecarStarter{engine: e}, e.client.Host(), req.Network, req.HostExposedPorts, e.logger)
		if err != nil {
			e.releaseNetwork(ctx, net, networkOwned)
			return nil, fmt.Errorf("engine: host port exposure: %w", err)
		}
		if req.Hosts == nil {
			req.Hosts = map[string]spec.HostAlias{}
		}
		req.Hosts[hostport.AliasName] = spec.HostAlias{IP: bridgeIP}
		handle, err := e.createAndWaitReady(ctx, req, labels, net, networkOwned)
		if err != nil {
			tunnel.Close(ctx)
			return nil, err
		}
		handle.tunnel = tunnel
		return handle, nil
	}

	return e.createAndWaitReady(ctx, req, labels, net, networkOwned)
}

// releaseNetwork drops this call's share of net, unless the engine's
// removal policy is PolicyKeep: "keep" disables automatic network removal
// exactly as it disables automatic container removal, so a kept
// network is left referenced until policy changes and the process holding
// the last reference is a new process entirely.
func (e *Engine) releaseNetwork(ctx context.Context, net *netmgr.Network, owned bool) {
	if net == nil || !owned || e.policy == PolicyKeep {
		return
	}
	if err := net.Release(ctx); err != nil {
		e.logger.Warn("engine: network release failed", "error", err)
	}
}

func (e *Engine) tryReuse(ctx context.Context, req spec.ContainerRequest, labels map[string]string) (*Handle, bool, error) {
	filter := reuseFilter(req, labels)
	ids, err := e.client.List(ctx, filter)
	if err != nil {
		return nil, false, fmt.Errorf("engine: list for reuse: %w", err)
	}
	if len(ids) == 0 {
		return nil, false, nil
	}

	id := ids[0]
	state, err := e.client.Inspect(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("engine: inspect reuse candidate: %w", err)
	}
	if !state.Running {
		return nil, false, nil
	}

	e.logger.Info("reusing existing container", "id", id[:12])
	return &Handle{engine: e, containerID: id, reuse: req.ReuseDirective}, true, nil
}

// reuseFilter builds the full {container_name?, network?, labels}
// fingerprint a reuse lookup matches on -- labels already carries the
// managed-by marker and, under ReuseCurrentSession, the process session-id
// (see ContainerRequest.EffectiveLabels), so two processes never see one
// another's containers even though both carry the same managed-by value.
func reuseFilter(req spec.ContainerRequest, labels map[string]string) docker.ListFilter {
	filter := docker.ListFilter{Labels: labels}
	if req.ContainerName != "" {
		filter.Name = req.ContainerName
	}
	if req.Network != "" && !req.IsContainerMode() {
		filter.Network = req.Network
	}
	return filter
}

func (e *Engine) createAndWaitReady(ctx context.Context, req spec.ContainerRequest, labels map[string]string, net *netmgr.Network, networkOwned bool) (*Handle, error) {
	name := req.ContainerName
	if name == "" {
		name = "testrig-" + sanitizeForName(req.Image.Name) + "-" + randname.ContainerSuffix()
	}

	opts := buildCreateOptions(req, name, labels)

	id, err := e.client.Create(ctx, opts)
	if err != nil && docker.IsImageNotFound(err) {
		// The one automatic retry the engine performs: a 404 on create
		// means the image is not local yet, so pull it and create again.
		// Any other create failure, and any failure of the retried create
		// itself, surfaces as-is.
		if pullErr := e.client.PullImage(ctx, req.Image.Reference(), ""); pullErr != nil {
			e.releaseNetwork(ctx, net, networkOwned)
			return nil, fmt.Errorf("engine: pull image: %w", pullErr)
		}
		id, err = e.client.Create(ctx, opts)
	}
	if err != nil {
		e.releaseNetwork(ctx, net, networkOwned)
		return nil, fmt.Errorf("engine: create container: %w", err)
	}

	handle := &Handle{
		engine:        e,
		containerID:   id,
		reuse:         req.ReuseDirective,
		network:       net,
		networkOwned:  networkOwned,
	}

	if e.policy == PolicyRemove && req.ReuseDirective == spec.ReuseNever {
		e.watchdog.Register(id, e.client)
		handle.watched = true
	}

	for _, src := range req.CopyToSources {
		tarStream, err := archive.FromHostPath(src.HostPath)
		if err != nil {
			e.abandon(ctx, handle, "copy-to-container build archive")
			return nil, fmt.Errorf("engine: build archive for %q: %w", src.HostPath, err)
		}
		if err := e.client.CopyToContainer(ctx, id, src.Target, tarStream); err != nil {
			e.abandon(ctx, handle, "copy-to-container")
			return nil, fmt.Errorf("engine: copy to container: %w", err)
		}
	}

	startupCtx, cancel := context.WithTimeout(ctx, req.EffectiveStartupTimeout())
	defer cancel()

	if err := e.client.Start(startupCtx, id); err != nil {
		e.abandon(ctx, handle, "start")
		return nil, fmt.Errorf("engine: start container: %w", err)
	}

	for _, hook := range req.Image.ExecBeforeReady {
		if _, err := e.runHook(startupCtx, id, hook); err != nil {
			e.abandon(ctx, handle, "exec-before-ready hook")
			return nil, fmt.Errorf("engine: exec-before-ready hook: %w", err)
		}
	}

	target := wait.Target{
		ContainerID:  id,
		DaemonHost:   e.client.Host(),
		ExposedPorts: exposedPortNumbers(req.Image.ExposedPorts),
	}
	daemon := daemonAdapter{client: e.client}

	for _, strategy := range req.Image.ReadyConditions {
		// A Command strategy declared without an explicit runner execs
		// through the same daemon client as everything else.
		if cmd, ok := strategy.(wait.Command); ok && cmd.Runner == nil {
			cmd.Runner = commandRunnerAdapter{client: e.client}
			strategy = cmd
		}
		if err := strategy.WaitUntilReady(startupCtx, daemon, target); err != nil {
			e.abandon(ctx, handle, "readiness")
			if startupCtx.Err() != nil {
				return nil, fmt.Errorf("engine: %w", wait.ErrStartupTimeout)
			}
			return nil, fmt.Errorf("engine: readiness condition failed: %w", err)
		}
	}

	for _, hook := range req.Image.ExecAfterStart {
		if _, err := e.runHook(ctx, id, hook); err != nil {
			e.abandon(ctx, handle, "exec-after-start hook")
			return nil, fmt.Errorf("engine: exec-after-start hook: %w", err)
		}
	}

	if len(req.LogConsumers) > 0 {
		stream, _, err := e.client.Logs(ctx, id, docker.LogsOptions{Follow: true})
		if err != nil {
			e.logger.Warn("engine: log consumer stream failed to open", "error", err)
		} else {
			// Subscribe before the read loop starts so the consumers see
			// the stream from its first frame.
			stream.FanOut(ctx, req.LogConsumers)
			go stream.Run()
		}
	}

	return handle, nil
}

// runHook execs one ExecHook. It leaves Command.ContainerReady empty: both
// call sites already know the container is in the right state by
// construction -- ExecBeforeReady hooks run right after Start succeeds,
// ExecAfterStart hooks run only once the surrounding readiness loop has
// already succeeded -- so re-evaluating readiness here would just repeat
// a check createAndWaitReady already made.
func (e *Engine) runHook(ctx context.Context, containerID string, hook spec.ExecHook) (*execrun.Result, error) {
	return execrun.Run(ctx, execAdapter{daemonAdapter{client: e.client}}, containerID, execrun.Command{Argv: hook.Argv})
}

// abandon best-effort removes a partially-created container and releases
// anything already acquired for it, annotating nothing further: the caller
// wraps the original error with the stage name. PolicyKeep
// disables this removal the same way it disables Handle.Close's.
func (e *Engine) abandon(ctx context.Context, handle *Handle, stage string) {
	e.logger.Warn("engine: aborting container after failed stage", "stage", stage, "id", handle.containerID[:12])
	if e.policy == PolicyRemove {
		if err := e.client.Remove(ctx, handle.containerID, true, true); err != nil {
			e.logger.Warn("engine: abandon remove failed", "error", err)
		}
	}
	if handle.watched {
		e.watchdog.Unregister(handle.containerID)
	}
	e.releaseNetwork(ctx, handle.network, handle.networkOwned)
}

func sanitizeForName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}

func exposedPortNumbers(ports []spec.Port) []int {
	out := make([]int, 0, len(ports))
	for _, p := range ports {
		out = append(out, p.Number)
	}
	return out
}
