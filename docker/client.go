// Package docker wraps the Docker SDK client and provides the high-level
// operations the engine needs: creating, starting, stopping, and removing
// containers; reading their logs as a demultiplexed stream; running exec
// sessions against them; managing ephemeral networks; and pulling or
// building images. All Docker SDK calls are isolated here so no other
// package imports the SDK directly -- if the daemon interaction strategy
// ever changes, only this package changes.
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	dockerSDKclient "github.com/docker/docker/client"

	"github.com/corvuslabs/testrig/tcenv"
)

// Client wraps the Docker SDK client with a logger. The SDK client itself
// manages the connection to the daemon (Unix socket or TCP/TLS), so it is
// safe to share a single Client across goroutines.
type Client struct {
	sdk    *dockerSDKclient.Client
	logger *slog.Logger
	host   string
}

// NewClient constructs a Client, connects to the daemon using cfg (falling
// back to the SDK's own DOCKER_HOST/default-socket resolution when cfg.Host
// is empty), and pings it to verify the connection is live before returning.
// A non-nil error here should be treated as fatal by the caller: nothing in
// this engine can function without a reachable daemon.
func NewClient(ctx context.Context, cfg *tcenv.DaemonConfig, logger *slog.Logger) (*Client, error) {
	opts := []dockerSDKclient.Opt{dockerSDKclient.WithAPIVersionNegotiation()}

	if cfg != nil && cfg.Host != "" {
		opts = append(opts, dockerSDKclient.WithHost(cfg.Host))
		if cfg.TLSVerify {
			opts = append(opts, dockerSDKclient.WithTLSClientConfigFromEnv())
		}
	} else {
		opts = append(opts, dockerSDKclient.FromEnv)
	}

	sdk, err := dockerSDKclient.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker: create sdk client: %w", err)
	}

	c := &Client{sdk: sdk, logger: logger, host: sdk.DaemonHost()}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.ping(pingCtx); err != nil {
		return nil, fmt.Errorf("docker: daemon unreachable: %w", err)
	}

	logger.Info("docker client connected", "host", c.host)
	return c, nil
}

// Host returns the daemon endpoint this client is connected to, used by
// wait.HTTP to decide between IPv4 and IPv6 port resolution.
func (c *Client) Host() string { return c.host }

func (c *Client) ping(ctx context.Context) error {
	_, err := c.sdk.Ping(ctx)
	if err != nil {
		return fmt.Errorf("docker: ping: %w", err)
	}
	return nil
}

// Version reports the daemon's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	v, err := c.sdk.ServerVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("docker: server version: %w", err)
	}
	return v.Version, nil
}

// Close releases the underlying SDK connection. Should be deferred by the
// caller immediately after NewClient returns successfully.
func (c *Client) Close() error {
	return c.sdk.Close()
}
