package netmgr

import (
	"context"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDaemon struct {
	mu          sync.Mutex
	created     map[string]string
	removed     []string
	nextID      int
	createCalls int
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{created: map[string]string{}}
}

func (f *fakeDaemon) CreateNetwork(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()

	// Yield so a racy Acquire implementation (daemon I/O outside the lock)
	// has a window to let a second concurrent call reach here too.
	runtime.Gosched()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := "net-" + name
	f.created[name] = id
	return id, nil
}

func (f *fakeDaemon) RemoveNetwork(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeDaemon) NetworkExists(ctx context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.created[name]
	return id, ok, nil
}

func TestIsManaged(t *testing.T) {
	assert.False(t, IsManaged(""))
	assert.False(t, IsManaged("host"))
	assert.False(t, IsManaged("container:abc123"))
	assert.True(t, IsManaged("my-test-network"))
}

func TestAcquire_CreatesOnFirstRequest(t *testing.T) {
	daemon := newFakeDaemon()
	mgr := NewManager(daemon)

	net, owned, err := mgr.Acquire(context.Background(), "net-a")
	require.NoError(t, err)
	assert.True(t, owned)
	assert.Equal(t, "net-net-a", net.ID)
}

func TestAcquire_SharesSameNetworkAcrossCalls(t *testing.T) {
	daemon := newFakeDaemon()
	mgr := NewManager(daemon)

	first, _, err := mgr.Acquire(context.Background(), "shared")
	require.NoError(t, err)

	second, owned, err := mgr.Acquire(context.Background(), "shared")
	require.NoError(t, err)
	assert.True(t, owned)
	assert.Same(t, first, second)
}

func TestAcquire_PreexistingNetworkIsNotOwned(t *testing.T) {
	daemon := newFakeDaemon()
	_, _ = daemon.CreateNetwork(context.Background(), "already-there")
	mgr := NewManager(daemon)

	net, owned, err := mgr.Acquire(context.Background(), "already-there")
	require.NoError(t, err)
	assert.False(t, owned)
	assert.Nil(t, net)
}

func TestRelease_RemovesOnlyAfterLastReference(t *testing.T) {
	daemon := newFakeDaemon()
	mgr := NewManager(daemon)

	first, _, err := mgr.Acquire(context.Background(), "refcounted")
	require.NoError(t, err)
	_, _, err = mgr.Acquire(context.Background(), "refcounted")
	require.NoError(t, err)

	require.NoError(t, first.Release(context.Background()))
	assert.Empty(t, daemon.removed)

	require.NoError(t, first.Release(context.Background()))
	assert.Equal(t, []string{"net-refcounted"}, daemon.removed)
}

func TestAcquire_ConcurrentCallsForNewNameCreateExactlyOnce(t *testing.T) {
	daemon := newFakeDaemon()
	mgr := NewManager(daemon)

	const callers = 8
	var wg sync.WaitGroup
	nets := make([]*Network, callers)
	errs := make([]error, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		i := i
		go func() {
			defer wg.Done()
			nets[i], _, errs[i] = mgr.Acquire(context.Background(), "concurrent-net")
		}()
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, nets[0], nets[i])
	}
	assert.Equal(t, 1, daemon.createCalls)
}

func TestRelease_PastZeroIsANoOp(t *testing.T) {
	daemon := newFakeDaemon()
	mgr := NewManager(daemon)

	net, _, err := mgr.Acquire(context.Background(), "solo")
	require.NoError(t, err)

	require.NoError(t, net.Release(context.Background()))
	require.NoError(t, net.Release(context.Background()))
	assert.Len(t, daemon.removed, 1)
}
