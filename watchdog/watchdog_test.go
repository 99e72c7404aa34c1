package watchdog

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeClient struct {
	mu      sync.Mutex
	stopped []string
	removed []string
}

func (f *fakeClient) Stop(ctx context.Context, id string, timeoutSeconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeClient) Remove(ctx context.Context, id string, force, removeVolumes bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterUnregister_RemovesEntryWithoutCleanup(t *testing.T) {
	client := &fakeClient{}
	reg := NewRegistry(discardLogger())

	reg.Register("abc123", client)
	reg.Unregister("abc123")

	reg.mu.Lock()
	_, present := reg.entries["abc123"]
	reg.mu.Unlock()
	assert.False(t, present)
}

func TestCleanupAll_StopsAndRemovesEveryRegisteredContainer(t *testing.T) {
	client := &fakeClient{}
	reg := NewRegistry(discardLogger())

	reg.entries["one"] = registration{id: "one", client: client}
	reg.entries["two"] = registration{id: "two", client: client}

	reg.cleanupAll()

	assert.ElementsMatch(t, []string{"one", "two"}, client.stopped)
	assert.ElementsMatch(t, []string{"one", "two"}, client.removed)

	reg.mu.Lock()
	assert.Empty(t, reg.entries)
	reg.mu.Unlock()
}

func TestCleanupAll_ToleratesPerContainerErrors(t *testing.T) {
	failing := &failingClient{}
	reg := NewRegistry(discardLogger())
	reg.entries["bad"] = registration{id: "bad", client: failing}

	assert.NotPanics(t, func() { reg.cleanupAll() })
}

type failingClient struct{}

func (failingClient) Stop(ctx context.Context, id string, timeoutSeconds int) error {
	return assert.AnError
}

func (failingClient) Remove(ctx context.Context, id string, force, removeVolumes bool) error {
	return assert.AnError
}
