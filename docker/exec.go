package docker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/corvuslabs/testrig/logstream"
)

// ExecOptions configures a single exec session.
type ExecOptions struct {
	Cmd        []string
	WorkingDir string
	Env        []string
	User       string
}

// ExecSession is a live attached exec process: its combined output stream
// (via Stream), a Start hook that begins reading it, and a blocking Wait
// for the exit code. The read loop is deliberately not started by Exec
// itself: Stream delivers each frame only to subscribers present when it
// is read, so the caller must attach every consumer (output capture, line
// waiters) and only then call Start, or the earliest output is lost.
type ExecSession struct {
	client    *Client
	id        string
	stream    *logstream.Stream
	closer    func() error
	startOnce sync.Once
}

// Exec creates and starts an exec session attached to id, returning a
// session whose Stream carries the demultiplexed output and whose Wait
// blocks for the exit code. Mirrors the create-then-attach-then-start
// sequence the Docker API requires for a process whose output must be
// captured rather than inherited from a TTY.
func (c *Client) Exec(ctx context.Context, id string, opts ExecOptions) (*ExecSession, error) {
	created, err := c.sdk.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          opts.Cmd,
		WorkingDir:   opts.WorkingDir,
		Env:          opts.Env,
		User:         opts.User,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("docker: exec create on %s: %w", shortID(id), err)
	}

	attached, err := c.sdk.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker: exec attach %s: %w", created.ID[:12], err)
	}

	return &ExecSession{
		client: c,
		id:     created.ID,
		stream: logstream.Demux(attached.Reader),
		closer: func() error { attached.Close(); return nil },
	}, nil
}

// Stream exposes the session's demultiplexed output for StdOutMessage /
// StdErrMessage wait conditions or plain result capture. Subscribe before
// calling Start.
func (s *ExecSession) Stream() *logstream.Stream { return s.stream }

// Start begins the read loop feeding Stream's subscribers. Idempotent;
// must be called once all subscribers are attached, and before Wait.
func (s *ExecSession) Start() {
	s.startOnce.Do(func() { go s.stream.Run() })
}

// ExecSimple is Exec with execrun.DaemonClient's narrower argument list, so
// execrun never sees this package's full ExecOptions surface. It returns
// the concrete *ExecSession, so the engine wraps it in a small adapter to
// satisfy that interface.
func (c *Client) ExecSimple(ctx context.Context, containerID string, cmd []string, workingDir string, env []string, user string) (*ExecSession, error) {
	return c.Exec(ctx, containerID, ExecOptions{Cmd: cmd, WorkingDir: workingDir, Env: env, User: user})
}

// Wait polls ExecInspect until the process has exited, returning its code.
func (s *ExecSession) Wait(ctx context.Context) (int, error) {
	defer s.closer()
	for {
		info, err := s.client.sdk.ContainerExecInspect(ctx, s.id)
		if err != nil {
			return 0, fmt.Errorf("docker: exec inspect %s: %w", s.id[:12], err)
		}
		if !info.Running {
			return info.ExitCode, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
