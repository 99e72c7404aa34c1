package engine

import (
	"github.com/corvuslabs/testrig/docker"
	"github.com/corvuslabs/testrig/spec"
)

// buildCreateOptions translates a validated ContainerRequest and its
// embedded ImageSpec into the daemon-facing payload docker.Client.Create
// expects -- the union of image EXPOSE, spec's forced-exposed ports, and
// explicit port mappings, plus every runtime override the request layers on
// top of the image.
func buildCreateOptions(req spec.ContainerRequest, name string, labels map[string]string) docker.CreateOptions {
	opts := docker.CreateOptions{
		Name:         name,
		Image:        req.Image.Reference(),
		Cmd:          req.Image.Cmd,
		Env:          toEnvStrings(req.Image.Env),
		WorkingDir:   req.WorkingDir,
		Labels:       labels,
		Mounts:       toMountSpecs(req.Image.Mounts),
		PortSpecs:    toPortSpecs(req.Image.ExposedPorts, req.PortMappings),
		PublishAll:   req.PublishAll(),
		NetworkMode:  networkMode(req),
		Hosts:        toHostsStrings(req.Hosts),
		Privileged:   req.Privileged,
		CapAdd:       req.CapAdd,
		CapDrop:      req.CapDrop,
		CgroupNSMode: req.CgroupNSMode,
		UsernsMode:   req.UsernsMode,
		ShmSize:      req.ShmSize,
		Ulimits:      toUlimitSpecs(req.Ulimits),
	}
	if req.Image.Entrypoint != nil {
		opts.Entrypoint = []string{*req.Image.Entrypoint}
	}
	if !req.IsContainerMode() && req.Network != "" {
		opts.NetworkName = req.Network
	}
	if req.HealthCheckOverride != nil {
		opts.HealthCheck = &docker.HealthCheckSpec{
			Test:        req.HealthCheckOverride.Test,
			IntervalNS:  int64(req.HealthCheckOverride.Interval),
			TimeoutNS:   int64(req.HealthCheckOverride.Timeout),
			Retries:     req.HealthCheckOverride.Retries,
			StartPeriod: int64(req.HealthCheckOverride.StartPeriod),
		}
	}
	return opts
}

func networkMode(req spec.ContainerRequest) string {
	if req.IsContainerMode() {
		return req.Network
	}
	return ""
}

func toEnvStrings(vars []spec.EnvVar) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, v.Name+"="+v.Value)
	}
	return out
}

func toMountSpecs(mounts []spec.Mount) []docker.MountSpec {
	out := make([]docker.MountSpec, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, docker.MountSpec{
			Type:     string(m.Type),
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.Access == spec.AccessReadOnly,
		})
	}
	return out
}

// toPortSpecs unions the image's declared exposed ports with any explicit
// host-port mappings the request adds for a port the image did not declare.
func toPortSpecs(exposed []spec.Port, mappings []spec.PortMapping) []docker.PortSpec {
	specs := make(map[spec.Port]docker.PortSpec, len(exposed))
	order := make([]spec.Port, 0, len(exposed))
	for _, p := range exposed {
		specs[p] = docker.PortSpec{ContainerPort: p.Number, Protocol: string(p.Protocol)}
		order = append(order, p)
	}
	for _, m := range mappings {
		entry, ok := specs[m.ContainerPort]
		if !ok {
			entry = docker.PortSpec{ContainerPort: m.ContainerPort.Number, Protocol: string(m.ContainerPort.Protocol)}
			order = append(order, m.ContainerPort)
		}
		entry.HostPort = m.HostPort
		specs[m.ContainerPort] = entry
	}

	out := make([]docker.PortSpec, 0, len(order))
	for _, p := range order {
		out = append(out, specs[p])
	}
	return out
}

func toHostsStrings(hosts map[string]spec.HostAlias) []string {
	out := make([]string, 0, len(hosts))
	for name, alias := range hosts {
		if alias.HostGateway {
			out = append(out, name+":host-gateway")
		} else {
			out = append(out, name+":"+alias.IP)
		}
	}
	return out
}

func toUlimitSpecs(ulimits []spec.Ulimit) []docker.UlimitSpec {
	out := make([]docker.UlimitSpec, 0, len(ulimits))
	for _, u := range ulimits {
		out = append(out, docker.UlimitSpec{Name: u.Name, Soft: u.Soft, Hard: u.Hard})
	}
	return out
}
