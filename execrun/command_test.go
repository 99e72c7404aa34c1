package execrun

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvuslabs/testrig/logstream"
	"github.com/corvuslabs/testrig/wait"
)

func encodeFrame(source byte, payload string) []byte {
	header := make([]byte, 8)
	header[0] = source
	binary.BigEndian.PutUint32(header[4:], uint32(len(payload)))
	return append(header, []byte(payload)...)
}

// fakeSession is an in-memory execrun.Session backed by a pre-scripted
// frame stream and exit code, standing in for docker.ExecSession.
type fakeSession struct {
	stream    *logstream.Stream
	exitCode  int
	startOnce sync.Once
}

func (s *fakeSession) Stream() *logstream.Stream { return s.stream }

func (s *fakeSession) Start() {
	s.startOnce.Do(func() { go s.stream.Run() })
}

func (s *fakeSession) Wait(ctx context.Context) (int, error) {
	<-s.stream.Done()
	return s.exitCode, nil
}

type fakeDaemon struct {
	session *fakeSession
}

func (f *fakeDaemon) ExecSimple(ctx context.Context, containerID string, cmd []string, workingDir string, env []string, user string) (Session, error) {
	return f.session, nil
}

func (f *fakeDaemon) Inspect(ctx context.Context, id string) (wait.ContainerState, error) {
	return wait.ContainerState{Health: wait.HealthNone}, nil
}

func (f *fakeDaemon) Logs(ctx context.Context, id string, opts wait.LogsOptions) (wait.LogStream, error) {
	return nil, errors.New("execrun: fakeDaemon has no log stream")
}

// newFakeSession builds a session over a pre-encoded frame stream. The
// read loop does not run until Run calls Start, exactly like the
// production ExecSession, so subscription ordering is exercised for real:
// a Run that read frames before subscribing would lose them here too.
func newFakeSession(exitCode int, frames ...[]byte) *fakeSession {
	raw := bytes.NewBuffer(nil)
	for _, f := range frames {
		raw.Write(f)
	}
	return &fakeSession{stream: logstream.Demux(raw), exitCode: exitCode}
}

func TestRun_CapturesStdoutAndStderrAndExitCode(t *testing.T) {
	session := newFakeSession(0,
		encodeFrame(1, "hello out"),
		encodeFrame(2, "hello err"),
	)
	client := &fakeDaemon{session: session}

	result, err := Run(context.Background(), client, "container-id", Command{Argv: []string{"echo", "hi"}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode())
	assert.Equal(t, "hello out", result.Stdout())
	assert.Equal(t, "hello err", result.Stderr())
}

func TestRun_StdOutMessageWaitsForNeedle(t *testing.T) {
	session := newFakeSession(0,
		encodeFrame(1, "booting\n"),
		encodeFrame(1, "ready for connections\n"),
	)
	client := &fakeDaemon{session: session}

	result, err := Run(context.Background(), client, "container-id", Command{
		Argv:    []string{"server"},
		WaitFor: StdOutMessage("ready for connections"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode())
}

func TestRun_NoWaitForConditionReturnsActualExitCodeUnchecked(t *testing.T) {
	session := newFakeSession(3)
	client := &fakeDaemon{session: session}

	result, err := Run(context.Background(), client, "container-id", Command{Argv: []string{"sh", "-c", "exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode())
}

func TestRun_ExitCodeMismatchSurfacesActualCode(t *testing.T) {
	session := newFakeSession(3)
	client := &fakeDaemon{session: session}

	_, err := Run(context.Background(), client, "container-id", Command{
		Argv:    []string{"sh", "-c", "exit 3"},
		WaitFor: Exit(0),
	})
	require.Error(t, err)

	var mismatch *ErrExitCodeMismatch
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 0, mismatch.Expected)
	assert.Equal(t, 3, mismatch.Actual)
}

func TestRun_ExitMatchesExpectedReturnsNoError(t *testing.T) {
	session := newFakeSession(0)
	client := &fakeDaemon{session: session}

	result, err := Run(context.Background(), client, "container-id", Command{
		Argv:    []string{"sh", "-c", "exit 0"},
		WaitFor: Exit(0),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode())
}

func TestRun_DurationWaitsBeforeDraining(t *testing.T) {
	session := newFakeSession(0, encodeFrame(1, "done\n"))
	client := &fakeDaemon{session: session}

	start := time.Now()
	result, err := Run(context.Background(), client, "container-id", Command{
		Argv:    []string{"sleep", "1"},
		WaitFor: Duration(50 * time.Millisecond),
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, "done\n", result.Stdout())
}

func TestRun_ContainerReadyEvaluatedBeforeExec(t *testing.T) {
	session := newFakeSession(0)
	client := &fakeDaemon{session: session}

	result, err := Run(context.Background(), client, "container-id", Command{
		Argv:           []string{"true"},
		ContainerReady: []wait.Strategy{wait.Millis(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode())
}

func TestRun_ContainerReadyFailureSkipsExecEntirely(t *testing.T) {
	client := &fakeDaemon{session: nil}

	_, err := Run(context.Background(), client, "container-id", Command{
		Argv:           []string{"true"},
		ContainerReady: []wait.Strategy{wait.Healthcheck{}},
	})
	require.Error(t, err)
}
