package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"

	"github.com/corvuslabs/testrig/logstream"
)

// LogsOptions mirrors the subset of `docker logs` flags the engine exposes.
type LogsOptions struct {
	Follow bool
	Tail   string // "" means "all"
}

// Logs opens the container's combined stdout/stderr stream and wraps it in
// a logstream.Stream. The caller is responsible for starting Run (typically
// via go stream.Run()) and for closing the returned closer once done with
// the raw connection, which also unblocks Run on a follow=true stream.
func (c *Client) Logs(ctx context.Context, id string, opts LogsOptions) (*logstream.Stream, func() error, error) {
	tail := opts.Tail
	if tail == "" {
		tail = "all"
	}
	body, err := c.sdk.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     opts.Follow,
		Tail:       tail,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("docker: container logs %s: %w", shortID(id), err)
	}
	return logstream.Demux(body), body.Close, nil
}
