package docker

import (
	"context"
	"fmt"
	"io"

	dockerimage "github.com/docker/docker/api/types/image"
	dockerSDKclient "github.com/docker/docker/client"
)

// IsImageNotFound reports whether err is the daemon's 404 for a missing
// image (or container). The engine uses it to decide that a failed
// ContainerCreate is worth one pull-and-retry rather than a hard failure.
func IsImageNotFound(err error) bool {
	return dockerSDKclient.IsErrNotFound(err)
}

// PullImage pulls ref (e.g. "postgres:16-alpine"), draining the daemon's
// newline-delimited JSON progress stream before returning so the caller's
// subsequent ContainerCreate never races an in-flight pull. registryAuth is
// the base64-encoded credential blob the registry expects, or empty for an
// anonymous pull.
func (c *Client) PullImage(ctx context.Context, ref, registryAuth string) error {
	c.logger.Info("pulling image", "ref", ref)

	rc, err := c.sdk.ImagePull(ctx, ref, dockerimage.PullOptions{RegistryAuth: registryAuth})
	if err != nil {
		return fmt.Errorf("docker: pull image %q: %w", ref, err)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("docker: stream image pull %q: %w", ref, err)
	}
	c.logger.Info("image pulled", "ref", ref)
	return nil
}

// ImageExists reports whether ref is already present in the local image
// cache.
func (c *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, err := c.sdk.ImageInspect(ctx, ref)
	if err == nil {
		return true, nil
	}
	// The SDK doesn't export a typed not-found sentinel in older releases;
	// any inspect failure is treated as "not present, try the pull" since
	// the worst case is a redundant but harmless pull.
	return false, nil
}

// BuildImage builds an image from a tar-encoded build context (see
// internal/archive) and a Dockerfile path within it, draining the build log
// stream the same way PullImage drains the pull log stream.
func (c *Client) BuildImage(ctx context.Context, buildContext io.Reader, dockerfile string, tags []string) error {
	resp, err := c.sdk.ImageBuild(ctx, buildContext, buildImageOptions(dockerfile, tags))
	if err != nil {
		return fmt.Errorf("docker: build image: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("docker: stream build log: %w", err)
	}
	c.logger.Info("image built", "tags", tags)
	return nil
}
