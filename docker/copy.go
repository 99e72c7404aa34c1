package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
)

// CopyToContainer uploads a tar archive (built by internal/archive) into the
// container's filesystem, rooted at target. Used for CopySource pre-start
// uploads.
func (c *Client) CopyToContainer(ctx context.Context, id, target string, tarStream io.Reader) error {
	err := c.sdk.CopyToContainer(ctx, id, target, tarStream, container.CopyToContainerOptions{})
	if err != nil {
		return fmt.Errorf("docker: copy to container %s: %w", shortID(id), err)
	}
	return nil
}
