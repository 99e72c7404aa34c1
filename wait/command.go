package wait

import (
	"context"
	"time"
)

// commandPollInterval is the default pause between exec attempts.
const commandPollInterval = time.Second

// CommandRunner is the minimal exec capability Command needs. The engine
// implements it with an adapter over execrun.Run; wait never imports the
// execrun package, which itself imports wait (execrun.Command holds a
// []Strategy), so the dependency stays one-way.
type CommandRunner interface {
	RunCommand(ctx context.Context, containerID string, argv []string) (exitCode int, err error)
}

// Command repeatedly execs a command inside the container (while it is
// running) until the exit code matches ExpectedCode, or until FailFast is
// set and the first attempt's code does not match.
type Command struct {
	base
	Runner       CommandRunner
	Argv         []string
	ExpectedCode int
	FailFast     bool
	PollInterval time.Duration
}

func (c Command) WaitUntilReady(ctx context.Context, client DaemonClient, target Target) error {
	interval := c.PollInterval
	if interval <= 0 {
		interval = commandPollInterval
	}

	for {
		state, err := client.Inspect(ctx, target.ContainerID)
		if err != nil {
			return err
		}
		if !state.Running {
			return ErrContainerNotRunning
		}

		code, err := c.Runner.RunCommand(ctx, target.ContainerID, c.Argv)
		if err != nil {
			return err
		}
		if code == c.ExpectedCode {
			return nil
		}
		if c.FailFast {
			return &ErrUnexpectedExitCode{Expected: c.ExpectedCode, Actual: code}
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
