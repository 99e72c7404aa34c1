package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/filters"
	dockernetwork "github.com/docker/docker/api/types/network"
)

// CreateNetwork provisions a private bridge network, returning its ID. The
// spec's netmgr package owns naming and refcounting; this call is a thin
// pass-through so netmgr has no SDK dependency of its own.
func (c *Client) CreateNetwork(ctx context.Context, name string) (string, error) {
	resp, err := c.sdk.NetworkCreate(ctx, name, dockernetwork.CreateOptions{
		Driver:     "bridge",
		Attachable: true,
		Labels: map[string]string{
			"org.testcontainers.managed-by": "testcontainers",
		},
	})
	if err != nil {
		return "", fmt.Errorf("docker: create network %q: %w", name, err)
	}
	c.logger.Info("network created", "id", shortID(resp.ID), "name", name)
	return resp.ID, nil
}

// RemoveNetwork deletes a network by ID. Docker itself refuses to remove a
// network that still has endpoints attached, which is the enforcement
// netmgr relies on to make a premature Release a safe no-op from the
// caller's point of view (see netmgr.Network.Release).
func (c *Client) RemoveNetwork(ctx context.Context, id string) error {
	if err := c.sdk.NetworkRemove(ctx, id); err != nil {
		return fmt.Errorf("docker: remove network %s: %w", shortID(id), err)
	}
	c.logger.Info("network removed", "id", shortID(id))
	return nil
}

// NetworkExists reports whether a network with the given name is already
// registered with the daemon, used by netmgr.Manager.Acquire to tell a
// pre-existing network from one it must create.
func (c *Client) NetworkExists(ctx context.Context, name string) (string, bool, error) {
	nets, err := c.sdk.NetworkList(ctx, dockernetwork.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return "", false, fmt.Errorf("docker: list networks: %w", err)
	}
	for _, n := range nets {
		if n.Name == name {
			return n.ID, true, nil
		}
	}
	return "", false, nil
}

// ConnectNetwork attaches an already-created container to a network under
// the given aliases, for joining a second network after creation.
func (c *Client) ConnectNetwork(ctx context.Context, networkID, containerID string, aliases []string) error {
	err := c.sdk.NetworkConnect(ctx, networkID, containerID, &dockernetwork.EndpointSettings{Aliases: aliases})
	if err != nil {
		return fmt.Errorf("docker: connect container %s to network %s: %w", shortID(containerID), shortID(networkID), err)
	}
	return nil
}
