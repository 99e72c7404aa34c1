package wait

import (
	"context"
	"time"
)

// exitPollInterval is the default cadence Exit polls Inspect at; callers
// needing a different cadence set PollInterval explicitly.
const exitPollInterval = 250 * time.Millisecond

// Exit waits for the container to stop running, then checks its exit code.
// A nil ExpectedCode accepts any exit code -- this is the "just wait for it
// to finish" shape used by one-shot containers like hello-world.
type Exit struct {
	base
	ExpectedCode *int
	PollInterval time.Duration
}

func (e Exit) WaitUntilReady(ctx context.Context, client DaemonClient, target Target) error {
	interval := e.PollInterval
	if interval <= 0 {
		interval = exitPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := client.Inspect(ctx, target.ContainerID)
		if err != nil {
			return err
		}

		if !state.Running {
			if e.ExpectedCode == nil || *e.ExpectedCode == state.ExitCode {
				return nil
			}
			return &ErrUnexpectedExitCode{Expected: *e.ExpectedCode, Actual: state.ExitCode}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ExitCode is a convenience constructor for Exit{ExpectedCode: &code}.
func ExitCode(code int) Exit {
	return Exit{ExpectedCode: &code}
}

// AnyExit is a convenience constructor for a container that just needs to
// finish running, regardless of its exit code.
func AnyExit() Exit {
	return Exit{}
}
