package docker

import (
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	natnet "github.com/docker/go-connections/nat"
)

func toDockerMounts(specs []MountSpec) []mount.Mount {
	out := make([]mount.Mount, 0, len(specs))
	for _, m := range specs {
		var typ mount.Type
		switch m.Type {
		case "volume":
			typ = mount.TypeVolume
		case "tmpfs":
			typ = mount.TypeTmpfs
		default:
			typ = mount.TypeBind
		}
		out = append(out, mount.Mount{
			Type:     typ,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}
	return out
}

func toDockerPorts(specs []PortSpec) (natnet.PortSet, natnet.PortMap) {
	exposed := natnet.PortSet{}
	bindings := natnet.PortMap{}
	for _, p := range specs {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		key := natnet.Port(strconv.Itoa(p.ContainerPort) + "/" + proto)
		exposed[key] = struct{}{}
		if p.HostPort != 0 {
			bindings[key] = append(bindings[key], natnet.PortBinding{
				HostIP:   "0.0.0.0",
				HostPort: strconv.Itoa(p.HostPort),
			})
		} else {
			bindings[key] = append(bindings[key], natnet.PortBinding{HostIP: "0.0.0.0"})
		}
	}
	return exposed, bindings
}

func toDockerUlimits(specs []UlimitSpec) []*container.Ulimit {
	out := make([]*container.Ulimit, 0, len(specs))
	for _, u := range specs {
		out = append(out, &container.Ulimit{Name: u.Name, Soft: u.Soft, Hard: u.Hard})
	}
	return out
}

func nsToDuration(ns int64) time.Duration { return time.Duration(ns) }

// buildListFilter turns a ListFilter into the daemon's filters.Args,
// adding one value under the "label" key per key=value pair (ContainerList
// requires a container to match every label value given, so the whole
// fingerprint must match).
func buildListFilter(filter ListFilter) filters.Args {
	args := filters.NewArgs()
	if filter.Name != "" {
		args.Add("name", filter.Name)
	}
	if filter.Network != "" {
		args.Add("network", filter.Network)
	}
	for k, v := range filter.Labels {
		args.Add("label", k+"="+v)
	}
	return args
}

func buildImageOptions(dockerfile string, tags []string) types.ImageBuildOptions {
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	return types.ImageBuildOptions{
		Dockerfile: dockerfile,
		Tags:       tags,
		Remove:     true,
	}
}
