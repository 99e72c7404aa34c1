// Package hostport exposes host-side TCP ports inside a target container
// under the stable DNS alias host.testcontainers.internal, by side-loading
// a small SSH server sidecar on the target's network and establishing
// reverse (remote) port forwards from inside that sidecar back out to the
// host.
package hostport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corvuslabs/testrig/internal/randname"
)

// sidecarImage is the SSH server side-loaded next to the target container.
// It is a tiny, purpose-built image whose only job is accepting the engine's
// SSH connection and relaying forwarded-tcpip channels; nothing about the
// target image needs to know it exists.
const sidecarImage = "testcontainers/sshd:1.3.0"

// ContainerStarter is the minimal capability hostport needs to stand up the
// sidecar, satisfied by the engine package's sidecarStarter adapter so this
// package never imports engine (which itself imports hostport), avoiding a
// cycle.
type ContainerStarter interface {
	StartSidecar(ctx context.Context, image string, env map[string]string, network string) (containerID, bridgeIP string, sshPort int, err error)
	StopSidecar(ctx context.Context, containerID string) error
}

// Sidecar is a running SSH server attached to the same network as a target
// container, ready to accept the reverse-tunnel SSH connection.
type Sidecar struct {
	starter ContainerStarter

	containerID string
	bridgeIP    string
	sshPort     int
	password    string
}

// StartSidecar provisions the sshd sidecar on network (empty meaning the
// default bridge), returning a handle with enough information to dial it.
func StartSidecar(ctx context.Context, starter ContainerStarter, network string, logger *slog.Logger) (*Sidecar, error) {
	token, err := randname.Token(16)
	if err != nil {
		return nil, fmt.Errorf("hostport: generate sidecar password: %w", err)
	}
	password := "tc-" + token

	id, bridgeIP, port, err := starter.StartSidecar(ctx, sidecarImage, map[string]string{"PASSWORD": password}, network)
	if err != nil {
		return nil, fmt.Errorf("hostport: start sidecar: %w", err)
	}

	shortID := id
	if len(shortID) > 12 {
		shortID = shortID[:12]
	}
	logger.Info("host port exposure sidecar started", "container_id", shortID, "bridge_ip", bridgeIP)

	return &Sidecar{
		starter:     starter,
		containerID: id,
		bridgeIP:    bridgeIP,
		sshPort:     port,
		password:    password,
	}, nil
}

// BridgeIP is the address the target container should reach the sidecar at,
// used as the value for the host.testcontainers.internal alias.
func (s *Sidecar) BridgeIP() string { return s.bridgeIP }

// Stop tears the sidecar container down the same way any other managed
// container with reuse=never is torn down: through the normal lifecycle
// path, not a special case.
func (s *Sidecar) Stop(ctx context.Context) error {
	return s.starter.StopSidecar(ctx, s.containerID)
}

// dialBackoff is the 100ms->2000ms, <=20 attempt schedule used both to wait
// for the sidecar's SSH port to accept connections and, by callers, for any
// other "daemon just started something, give it a moment" retry.
func dialBackoff() []time.Duration {
	delays := make([]time.Duration, 0, 20)
	d := 100 * time.Millisecond
	for i := 0; i < 20; i++ {
		delays = append(delays, d)
		d *= 2
		if d > 2*time.Second {
			d = 2 * time.Second
		}
	}
	return delays
}
