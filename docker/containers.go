package docker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// MountSpec is the engine's daemon-agnostic description of a single
// bind/volume/tmpfs attachment, translated from spec.Mount by the engine
// before reaching this package.
type MountSpec struct {
	Type     string // "bind" | "volume" | "tmpfs"
	Source   string
	Target   string
	ReadOnly bool
}

// PortSpec is one container-internal port to expose, paired with an
// optional fixed host port (zero meaning "Docker picks an ephemeral one").
type PortSpec struct {
	ContainerPort int
	Protocol      string // "tcp" | "udp" | "sctp"
	HostPort      int
}

// CreateOptions collects every field ContainerCreate needs. Grouping them
// keeps the function signature stable as requests grow more knobs.
type CreateOptions struct {
	Name string

	Image      string
	Cmd        []string
	Entrypoint []string
	Env        []string
	WorkingDir string

	Labels map[string]string

	Mounts       []MountSpec
	PortSpecs    []PortSpec
	PublishAll   bool

	NetworkMode string // "" (bridge), "host", "container:<id>", or a named network
	NetworkName string // attached in addition to NetworkMode when non-empty
	Aliases     []string

	Hosts []string // "hostname:ip" entries for ExtraHosts

	Privileged   bool
	CapAdd       []string
	CapDrop      []string
	CgroupNSMode string
	UsernsMode   string
	ShmSize      int64
	Ulimits      []UlimitSpec

	HealthCheck *HealthCheckSpec
}

// UlimitSpec mirrors a single --ulimit entry.
type UlimitSpec struct {
	Name string
	Soft int64
	Hard int64
}

// HealthCheckSpec mirrors a Docker HEALTHCHECK definition.
type HealthCheckSpec struct {
	Test        []string
	IntervalNS  int64
	TimeoutNS   int64
	Retries     int
	StartPeriod int64
}

// Create issues ContainerCreate and returns the new container's full ID.
func (c *Client) Create(ctx context.Context, opts CreateOptions) (string, error) {
	exposedPorts, portBindings := toDockerPorts(opts.PortSpecs)

	internalConfig := &container.Config{
		Image:        opts.Image,
		Cmd:          opts.Cmd,
		Entrypoint:   opts.Entrypoint,
		Env:          opts.Env,
		WorkingDir:   opts.WorkingDir,
		Labels:       opts.Labels,
		ExposedPorts: exposedPorts,
	}
	if opts.HealthCheck != nil {
		internalConfig.Healthcheck = &container.HealthConfig{
			Test:        opts.HealthCheck.Test,
			Interval:    nsToDuration(opts.HealthCheck.IntervalNS),
			Timeout:     nsToDuration(opts.HealthCheck.TimeoutNS),
			Retries:     opts.HealthCheck.Retries,
			StartPeriod: nsToDuration(opts.HealthCheck.StartPeriod),
		}
	}

	hostConfig := &container.HostConfig{
		Mounts:          toDockerMounts(opts.Mounts),
		PortBindings:    portBindings,
		PublishAllPorts: opts.PublishAll,
		NetworkMode:     container.NetworkMode(opts.NetworkMode),
		ExtraHosts:      opts.Hosts,
		Privileged:      opts.Privileged,
		CapAdd:          opts.CapAdd,
		CapDrop:         opts.CapDrop,
		UsernsMode:      container.UsernsMode(opts.UsernsMode),
		ShmSize:         opts.ShmSize,
		Resources: container.Resources{
			Ulimits: toDockerUlimits(opts.Ulimits),
		},
	}
	if opts.CgroupNSMode != "" {
		hostConfig.CgroupnsMode = container.CgroupnsMode(opts.CgroupNSMode)
	}

	var netConfig *network.NetworkingConfig
	if opts.NetworkName != "" {
		netConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				opts.NetworkName: {Aliases: opts.Aliases},
			},
		}
	}

	var platform *v1.Platform

	resp, err := c.sdk.ContainerCreate(ctx, internalConfig, hostConfig, netConfig, platform, opts.Name)
	if err != nil {
		return "", fmt.Errorf("docker: create container %q: %w", opts.Name, err)
	}
	c.logger.Info("container created", "id", shortID(resp.ID), "name", opts.Name, "image", opts.Image)
	return resp.ID, nil
}

// Start transitions a created container to running.
func (c *Client) Start(ctx context.Context, id string) error {
	if err := c.sdk.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("docker: start container %s: %w", shortID(id), err)
	}
	c.logger.Info("container started", "id", shortID(id))
	return nil
}

// Stop sends SIGTERM (then SIGKILL after timeoutSeconds) to the container's
// main process.
func (c *Client) Stop(ctx context.Context, id string, timeoutSeconds int) error {
	timeout := timeoutSeconds
	if err := c.sdk.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("docker: stop container %s: %w", shortID(id), err)
	}
	return nil
}

// Remove deletes the container and, when removeVolumes is set, any
// anonymous volumes it owned.
func (c *Client) Remove(ctx context.Context, id string, force, removeVolumes bool) error {
	err := c.sdk.ContainerRemove(ctx, id, container.RemoveOptions{
		Force:         force,
		RemoveVolumes: removeVolumes,
	})
	if err != nil {
		return fmt.Errorf("docker: remove container %s: %w", shortID(id), err)
	}
	c.logger.Info("container removed", "id", shortID(id))
	return nil
}

// Wait blocks until the container stops running, returning its exit code.
func (c *Client) Wait(ctx context.Context, id string) (int64, error) {
	statusCh, errCh := c.sdk.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return 0, fmt.Errorf("docker: wait container %s: %w", shortID(id), err)
		}
		return 0, nil
	case status := <-statusCh:
		return status.StatusCode, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// State is the daemon-native view of a container's current status, ports,
// and health -- the source an engine-level adapter converts into
// wait.ContainerState without this package depending on wait.
type State struct {
	Running  bool
	ExitCode int
	Health   string
	Ports    map[string][]PortBindingInfo

	// NetworkIPs maps a network name to this container's IP address on it,
	// used to resolve the host port exposure sidecar's bridge IP.
	NetworkIPs map[string]string
}

// PortBindingInfo is one {host-ip, host-port} entry for a given container
// port.
type PortBindingInfo struct {
	HostIP   string
	HostPort int
}

// Inspect fetches a container's current runtime state.
func (c *Client) Inspect(ctx context.Context, id string) (State, error) {
	raw, err := c.sdk.ContainerInspect(ctx, id)
	if err != nil {
		return State{}, fmt.Errorf("docker: inspect container %s: %w", shortID(id), err)
	}

	state := State{Ports: map[string][]PortBindingInfo{}, NetworkIPs: map[string]string{}}
	if raw.State != nil {
		state.Running = raw.State.Running
		state.ExitCode = raw.State.ExitCode
		if raw.State.Health != nil {
			state.Health = raw.State.Health.Status
		}
	}
	if raw.NetworkSettings != nil {
		for portKey, bindings := range raw.NetworkSettings.Ports {
			infos := make([]PortBindingInfo, 0, len(bindings))
			for _, b := range bindings {
				port, _ := strconv.Atoi(b.HostPort)
				infos = append(infos, PortBindingInfo{HostIP: b.HostIP, HostPort: port})
			}
			state.Ports[string(portKey)] = infos
		}
		for name, ep := range raw.NetworkSettings.Networks {
			if ep != nil {
				state.NetworkIPs[name] = ep.IPAddress
			}
		}
	}
	return state, nil
}

// ListFilter narrows a List call to containers matching every populated
// field: an exact name, a network they are attached to, and the full set
// of label key=value pairs -- the {container_name?, network?, labels}
// fingerprint reuse re-attachment matches on, so that two processes whose
// managed-by label is identical but whose session-id label differs never
// see each other's containers.
type ListFilter struct {
	Name    string
	Network string
	Labels  map[string]string
}

// List returns the IDs of every container (running or stopped) matching
// filter, used by reuse re-attachment.
func (c *Client) List(ctx context.Context, filter ListFilter) ([]string, error) {
	filterArgs := buildListFilter(filter)
	summaries, err := c.sdk.ContainerList(ctx, container.ListOptions{All: true, Filters: filterArgs})
	if err != nil {
		return nil, fmt.Errorf("docker: list containers: %w", err)
	}
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
