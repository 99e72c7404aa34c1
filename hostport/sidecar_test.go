package hostport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDialBackoff_StartsAt100MsCapsAt2sAnd20Attempts(t *testing.T) {
	delays := dialBackoff()
	require.Len(t, delays, 20)
	assert.Equal(t, 100*time.Millisecond, delays[0])
	for _, d := range delays {
		assert.LessOrEqual(t, d, 2*time.Second)
	}
	assert.Equal(t, 2*time.Second, delays[len(delays)-1])
}

type fakeStarter struct {
	id       string
	bridgeIP string
	sshPort  int
	startErr error
	stopped  []string
}

func (f *fakeStarter) StartSidecar(ctx context.Context, image string, env map[string]string, network string) (string, string, int, error) {
	if f.startErr != nil {
		return "", "", 0, f.startErr
	}
	return f.id, f.bridgeIP, f.sshPort, nil
}

func (f *fakeStarter) StopSidecar(ctx context.Context, containerID string) error {
	f.stopped = append(f.stopped, containerID)
	return nil
}

func TestStartSidecar_ReturnsBridgeIPAndPasswordFromStarter(t *testing.T) {
	starter := &fakeStarter{id: "sidecar-id", bridgeIP: "172.18.0.5", sshPort: 32822}

	sidecar, err := StartSidecar(context.Background(), starter, "mynet", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "172.18.0.5", sidecar.BridgeIP())
	assert.NotEmpty(t, sidecar.password)
	assert.Equal(t, 32822, sidecar.sshPort)
}

func TestStartSidecar_PropagatesStarterError(t *testing.T) {
	starter := &fakeStarter{startErr: errors.New("daemon unavailable")}

	_, err := StartSidecar(context.Background(), starter, "", discardLogger())
	assert.Error(t, err)
}

func TestSidecarStop_DelegatesToStarter(t *testing.T) {
	starter := &fakeStarter{id: "sidecar-id", bridgeIP: "172.18.0.5", sshPort: 2222}
	sidecar, err := StartSidecar(context.Background(), starter, "", discardLogger())
	require.NoError(t, err)

	require.NoError(t, sidecar.Stop(context.Background()))
	assert.Equal(t, []string{"sidecar-id"}, starter.stopped)
}
