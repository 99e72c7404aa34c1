package wait

import (
	"errors"
	"fmt"
)

// ErrStartupTimeout is returned (wrapped) by Engine.Start when the
// composite startup deadline expires before every readiness strategy has
// succeeded.
var ErrStartupTimeout = errors.New("wait: startup timeout exceeded")

// ErrHealthCheckNotConfigured is returned by Healthcheck when the container
// has no HEALTHCHECK (health status is "none" or empty).
var ErrHealthCheckNotConfigured = errors.New("wait: container has no healthcheck configured")

// ErrUnhealthy is returned by Healthcheck when the daemon reports the
// container as unhealthy; this strategy fails fast rather than continuing
// to poll, since an unhealthy verdict is not expected to self-correct.
var ErrUnhealthy = errors.New("wait: container reported unhealthy")

// ErrNoExposedPort is returned by HTTP when the request names no port and
// the target declares no exposed ports to default to.
var ErrNoExposedPort = errors.New("wait: no exposed port available for http readiness check")

// ErrContainerNotRunning is returned by Command when the container stops
// running before the expected exit code is observed.
var ErrContainerNotRunning = errors.New("wait: container is not running")

// ErrLogStreamEnded is returned by LogMessage when the log stream reaches
// EOF before the requested number of matches were observed. Lines carries
// everything seen so far, for diagnostics.
type ErrLogStreamEnded struct {
	Needle string
	Want   int
	Got    int
	Lines  []string
}

func (e *ErrLogStreamEnded) Error() string {
	return fmt.Sprintf("wait: log stream ended after %d/%d matches of %q", e.Got, e.Want, e.Needle)
}

// ErrUnexpectedExitCode is returned by Exit when the container's final
// exit code does not match the one the strategy was configured to expect.
type ErrUnexpectedExitCode struct {
	Expected int
	Actual   int
}

func (e *ErrUnexpectedExitCode) Error() string {
	return fmt.Sprintf("wait: unexpected exit code: expected %d, got %d", e.Expected, e.Actual)
}

// ErrHTTP wraps a readiness-precluding HTTP strategy error (as opposed to a
// transient network error, which is logged and retried rather than
// returned).
type ErrHTTP struct {
	Op  string
	Err error
}

func (e *ErrHTTP) Error() string { return fmt.Sprintf("wait: http %s: %v", e.Op, e.Err) }
func (e *ErrHTTP) Unwrap() error { return e.Err }
