// Package execrun implements the exec subsystem: running a command inside a
// running container, capturing its demultiplexed output, and blocking until
// an optional set of wait conditions (specific stdout/stderr text, or
// completion itself) is satisfied. It is built on docker.Client's
// Exec/Stream primitives. The engine adapts Run to wait.CommandRunner for
// the Command readiness strategy, so wait never imports execrun.
package execrun

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/corvuslabs/testrig/logstream"
	"github.com/corvuslabs/testrig/wait"
)

// DaemonClient is the minimal exec capability this package needs from
// docker.Client, kept local so execrun does not import docker's full
// surface (and so a fake satisfying this interface is enough for tests).
// It embeds wait.DaemonClient so a Command's ContainerReady conditions can
// be evaluated against the same capability surface a top-level readiness
// strategy uses, without execrun depending on docker directly.
type DaemonClient interface {
	wait.DaemonClient
	ExecSimple(ctx context.Context, containerID string, cmd []string, workingDir string, env []string, user string) (Session, error)
}

// Session is the minimal live-exec capability execrun needs from
// docker.ExecSession. Start begins the stream's read loop and must only be
// called once every subscriber is attached -- frames read with no
// subscriber present are dropped, so Run wires up its output capture and
// any WaitFor subscription first.
type Session interface {
	Stream() *logstream.Stream
	Start()
	Wait(ctx context.Context) (int, error)
}

// Command describes one exec invocation.
type Command struct {
	Argv       []string
	WorkingDir string
	Env        []string
	User       string

	// ContainerReady holds the same readiness-strategy set the wait
	// package defines, applied to the surrounding container rather than
	// the exec'd process itself: Run evaluates every strategy here, in
	// order, before issuing
	// ExecCreate. DaemonHost/ExposedPorts fill in wait.Target's resolution
	// fields for any Http strategy among them.
	ContainerReady []wait.Strategy
	DaemonHost     string
	ExposedPorts   []int

	// WaitFor, when set, must be satisfied before Run returns: a log line
	// appearing on stdout/stderr, a fixed delay elapsing, or the process's
	// exit code matching an expectation. Run always drains the process to
	// completion afterwards so Result carries the full captured output.
	WaitFor CmdWaitCondition
}

// CmdWaitCondition governs
// when Run considers the exec'd process itself ready, as distinct from
// ContainerReady which governs the surrounding container. nil means "just
// wait for the process to finish" (the common case).
type CmdWaitCondition interface {
	// prepare attaches whatever the condition needs to the session's
	// stream (a line waiter's subscription) and returns the blocking wait
	// itself. Subscription is split from waiting so Run can attach every
	// consumer before session.Start reads the first frame. The wait never
	// resolves the exit code -- Run always calls session.Wait for that, so
	// Exit's expectedExit is checked against the one real poll-to-completion
	// rather than a second one of its own.
	prepare(session Session) func(ctx context.Context) error
	// expectedExit reports the exit code Run must compare the process's
	// actual exit code against once it finishes, if this condition cares.
	expectedExit() (code int, want bool)
}

// StdOutMessage builds a CmdWaitCondition satisfied once needle appears on
// stdout.
func StdOutMessage(needle string) CmdWaitCondition {
	return lineCondition{source: logstream.Stdout, needle: needle}
}

// StdErrMessage is the stderr counterpart of StdOutMessage.
func StdErrMessage(needle string) CmdWaitCondition {
	return lineCondition{source: logstream.Stderr, needle: needle}
}

// Exit builds a CmdWaitCondition satisfied once the exec'd process
// finishes, requiring its exit code to equal expectedCode. A mismatch
// surfaces from Run as *ErrExitCodeMismatch.
func Exit(expectedCode int) CmdWaitCondition {
	return exitCondition{code: expectedCode, want: true}
}

// Duration builds a CmdWaitCondition satisfied after a fixed delay,
// independent of anything the process does.
func Duration(length time.Duration) CmdWaitCondition {
	return durationCondition{length: length}
}

type lineCondition struct {
	source logstream.Source
	needle string
}

func (c lineCondition) prepare(session Session) func(ctx context.Context) error {
	stdout, stderr := session.Stream().Split()

	reader := stdout
	if c.source == logstream.Stderr {
		reader = stderr
	}
	waiter := logstream.NewLineWaiter(reader)

	return func(ctx context.Context) error {
		defer stdout.Close()
		defer stderr.Close()
		_, err := waiter.WaitFor(ctx, c.needle, 1)
		return err
	}
}

func (lineCondition) expectedExit() (int, bool) { return 0, false }

type exitCondition struct {
	code int
	want bool
}

func (exitCondition) prepare(Session) func(ctx context.Context) error {
	return func(context.Context) error { return nil }
}

func (c exitCondition) expectedExit() (int, bool) { return c.code, c.want }

type durationCondition struct {
	length time.Duration
}

func (d durationCondition) prepare(Session) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		timer := time.NewTimer(d.length)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (durationCondition) expectedExit() (int, bool) { return 0, false }

// Run ensures the container is ready per cmd.ContainerReady, execs argv
// inside containerID via client, optionally blocks on cmd.WaitFor, then
// drains the remaining output into a Result. If cmd.WaitFor carries an
// expected exit code and the process's actual code does not match, Run
// returns *ErrExitCodeMismatch instead of a Result.
func Run(ctx context.Context, client DaemonClient, containerID string, cmd Command) (*Result, error) {
	target := wait.Target{ContainerID: containerID, DaemonHost: cmd.DaemonHost, ExposedPorts: cmd.ExposedPorts}
	for _, strategy := range cmd.ContainerReady {
		if err := strategy.WaitUntilReady(ctx, client, target); err != nil {
			return nil, fmt.Errorf("execrun: container not ready: %w", err)
		}
	}

	session, err := client.ExecSimple(ctx, containerID, cmd.Argv, cmd.WorkingDir, cmd.Env, cmd.User)
	if err != nil {
		return nil, fmt.Errorf("execrun: exec %v: %w", cmd.Argv, err)
	}

	stream := session.Stream()
	var stdoutBuf, stderrBuf bytes.Buffer
	captured := stream.FanOut(ctx, []logstream.Consumer{
		logstream.ConsumerFunc(func(f logstream.Frame) {
			if f.Stream == logstream.Stdout {
				stdoutBuf.Write(f.Bytes)
			} else {
				stderrBuf.Write(f.Bytes)
			}
		}),
	})

	// Every subscriber is attached before the first frame is read: the
	// capture consumer above, and the wait condition's own line reader via
	// prepare. Only then does the session's read loop start.
	var waitReady func(ctx context.Context) error
	if cmd.WaitFor != nil {
		waitReady = cmd.WaitFor.prepare(session)
	}
	session.Start()

	if waitReady != nil {
		if err := waitReady(ctx); err != nil {
			return nil, fmt.Errorf("execrun: wait condition: %w", err)
		}
	}

	exitCode, err := session.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("execrun: wait for exit: %w", err)
	}

	// The process has exited but the capture goroutine may still be
	// draining buffered frames; the buffers are only safe to hand out once
	// the dispatch loop has finished with them.
	select {
	case <-captured:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if cmd.WaitFor != nil {
		if expected, want := cmd.WaitFor.expectedExit(); want && exitCode != expected {
			return nil, &ErrExitCodeMismatch{Expected: expected, Actual: exitCode}
		}
	}

	return &Result{exitCode: exitCode, stdout: stdoutBuf.Bytes(), stderr: stderrBuf.Bytes()}, nil
}

// RunCommand returns a function with the signature of wait.CommandRunner's
// RunCommand method: it runs argv through Run with no wait condition and
// returns the exit code.
func RunCommand(client DaemonClient) func(ctx context.Context, containerID string, argv []string) (int, error) {
	return func(ctx context.Context, containerID string, argv []string) (int, error) {
		result, err := Run(ctx, client, containerID, Command{Argv: argv})
		if err != nil {
			return 0, err
		}
		return result.ExitCode(), nil
	}
}
