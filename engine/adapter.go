package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/corvuslabs/testrig/docker"
	"github.com/corvuslabs/testrig/execrun"
	"github.com/corvuslabs/testrig/hostport"
	"github.com/corvuslabs/testrig/logstream"
	"github.com/corvuslabs/testrig/spec"
	"github.com/corvuslabs/testrig/wait"
)

// daemonAdapter narrows *docker.Client down to wait.DaemonClient, converting
// docker's native State/LogsOptions types into wait's package-local ones so
// neither package needs to import the other.
type daemonAdapter struct {
	client *docker.Client
}

func (a daemonAdapter) Inspect(ctx context.Context, id string) (wait.ContainerState, error) {
	state, err := a.client.Inspect(ctx, id)
	if err != nil {
		return wait.ContainerState{}, err
	}
	out := wait.ContainerState{
		Running:  state.Running,
		ExitCode: state.ExitCode,
		Health:   wait.HealthStatus(state.Health),
		Ports:    map[string][]wait.PortBinding{},
	}
	if out.Health == "" {
		out.Health = wait.HealthNone
	}
	for key, bindings := range state.Ports {
		converted := make([]wait.PortBinding, 0, len(bindings))
		for _, b := range bindings {
			converted = append(converted, wait.PortBinding{HostIP: b.HostIP, HostPort: b.HostPort})
		}
		out.Ports[key] = converted
	}
	return out, nil
}

func (a daemonAdapter) Logs(ctx context.Context, id string, opts wait.LogsOptions) (wait.LogStream, error) {
	stream, _, err := a.client.Logs(ctx, id, docker.LogsOptions{Follow: opts.Follow, Tail: opts.Tail})
	if err != nil {
		return nil, fmt.Errorf("engine: open log stream for readiness: %w", err)
	}
	return &logStreamAdapter{stream: stream}, nil
}

// logStreamAdapter bridges logstream.Stream's Source type to wait's
// LogSource (the two packages deliberately do not import each other) and
// defers starting the read loop until the first Lines subscription, so a
// readiness waiter never misses frames read before it attached.
type logStreamAdapter struct {
	stream  *logstream.Stream
	runOnce sync.Once
}

func (l *logStreamAdapter) Lines(ctx context.Context, source wait.LogSource) (<-chan string, <-chan error) {
	lines, errs := l.stream.Lines(ctx, logstream.Source(source))
	l.runOnce.Do(func() { go l.stream.Run() })
	return lines, errs
}

// execAdapter narrows *docker.Client down to execrun.DaemonClient, which
// embeds wait.DaemonClient so a Command's ContainerReady strategies resolve
// against the same Inspect/Logs translation daemonAdapter already provides
// for top-level readiness, without execAdapter duplicating it.
type execAdapter struct {
	daemonAdapter
}

func (a execAdapter) ExecSimple(ctx context.Context, containerID string, cmd []string, workingDir string, env []string, user string) (execrun.Session, error) {
	return a.client.ExecSimple(ctx, containerID, cmd, workingDir, env, user)
}

// commandRunnerAdapter adapts execAdapter into wait.CommandRunner, so a
// wait.Command strategy can drive execrun.Run without wait importing
// execrun.
type commandRunnerAdapter struct {
	client *docker.Client
}

func (a commandRunnerAdapter) RunCommand(ctx context.Context, containerID string, argv []string) (int, error) {
	result, err := execrun.Run(ctx, execAdapter{daemonAdapter{client: a.client}}, containerID, execrun.Command{Argv: argv})
	if err != nil {
		return 0, err
	}
	return result.ExitCode(), nil
}

// sidecarStarter adapts *Engine into hostport.ContainerStarter, running the
// sshd sidecar through the same Create/Start/Inspect primitives every other
// container goes through rather than a special-cased code path.
type sidecarStarter struct {
	engine *Engine
}

func (s sidecarStarter) StartSidecar(ctx context.Context, image string, env map[string]string, network string) (string, string, int, error) {
	envList := make([]string, 0, len(env))
	for k, v := range env {
		envList = append(envList, k+"="+v)
	}

	opts := docker.CreateOptions{
		Name:        "",
		Image:       image,
		Env:         envList,
		Labels:      map[string]string{spec.ManagedByLabelKey: spec.ManagedByLabelValue},
		PortSpecs:   []docker.PortSpec{{ContainerPort: 22, Protocol: "tcp"}},
		PublishAll:  true,
		NetworkName: network,
	}

	id, err := s.engine.client.Create(ctx, opts)
	if err != nil {
		return "", "", 0, fmt.Errorf("engine: create hostport sidecar: %w", err)
	}
	if err := s.engine.client.Start(ctx, id); err != nil {
		return "", "", 0, fmt.Errorf("engine: start hostport sidecar: %w", err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := (wait.Seconds(1)).WaitUntilReady(readyCtx, daemonAdapter{client: s.engine.client}, wait.Target{ContainerID: id}); err != nil {
		return "", "", 0, fmt.Errorf("engine: hostport sidecar readiness: %w", err)
	}

	state, err := s.engine.client.Inspect(ctx, id)
	if err != nil {
		return "", "", 0, fmt.Errorf("engine: inspect hostport sidecar: %w", err)
	}

	bridgeIP := state.NetworkIPs["bridge"]
	if network != "" {
		if ip, ok := state.NetworkIPs[network]; ok {
			bridgeIP = ip
		}
	}

	sshPort := 0
	for _, b := range state.Ports["22/tcp"] {
		sshPort = b.HostPort
		break
	}
	if sshPort == 0 {
		return "", "", 0, fmt.Errorf("engine: hostport sidecar published no port for 22/tcp")
	}

	return id, bridgeIP, sshPort, nil
}

func (s sidecarStarter) StopSidecar(ctx context.Context, containerID string) error {
	if err := s.engine.client.Stop(ctx, containerID, 5); err != nil {
		s.engine.logger.Warn("engine: hostport sidecar stop failed", "error", err)
	}
	return s.engine.client.Remove(ctx, containerID, true, true)
}

var _ hostport.ContainerStarter = sidecarStarter{}
