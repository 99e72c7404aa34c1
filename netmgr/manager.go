// Package netmgr manages ephemeral private networks shared by sibling
// containers within a test process. A network is created on first request
// for a given name and reclaimed once every acquirer has released it.
package netmgr

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// DaemonClient is the minimal network capability this package needs.
type DaemonClient interface {
	CreateNetwork(ctx context.Context, name string) (string, error)
	RemoveNetwork(ctx context.Context, id string) error
	NetworkExists(ctx context.Context, name string) (id string, exists bool, err error)
}

// Network is a handle to a managed network, shared by every Acquire call
// for the same name. Release must be called exactly once per successful
// Acquire.
type Network struct {
	ID   string
	Name string

	mgr *Manager
}

// entry is the Manager's internal bookkeeping for one network name. Go has
// no weak-pointer standard package pre-1.24's experimental "weak"; an
// explicit refcount under the Manager's mutex is the straightforward
// equivalent of a weak-reference-and-upgrade pattern here, since every
// acquirer and releaser already goes through the same lock.
type entry struct {
	network  *Network
	refcount int
}

// Manager tracks every network this process has created, keyed by name.
type Manager struct {
	client DaemonClient

	mu      sync.Mutex
	entries map[string]*entry
	locks   map[string]*sync.Mutex
}

// NewManager constructs a Manager bound to client.
func NewManager(client DaemonClient) *Manager {
	return &Manager{client: client, entries: map[string]*entry{}, locks: map[string]*sync.Mutex{}}
}

// nameLock returns the per-name mutex used to serialize the entire
// check-exists-then-create sequence for a given network name, so two
// concurrent Acquire calls for a brand new name can never both reach
// CreateNetwork. m.mu itself is only ever held long enough to look up or
// insert into the locks/entries maps.
func (m *Manager) nameLock(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

// IsManaged reports whether name is a bridge network this Manager should
// own, as opposed to a pass-through mode ("host", "container:<id>") the
// engine hands straight to the daemon untouched.
func IsManaged(name string) bool {
	if name == "" || name == "host" {
		return false
	}
	return !strings.HasPrefix(name, "container:")
}

// Acquire returns the shared Network for name, creating it on the daemon if
// this is the first request for that name in-process. owned reports
// whether this Manager is responsible for eventually removing the network:
// false means a network by that name already existed on the daemon before
// this process touched it, and the caller should treat it as a plain
// pass-through name rather than register a Release.
func (m *Manager) Acquire(ctx context.Context, name string) (net *Network, owned bool, err error) {
	lock := m.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	if e, ok := m.entries[name]; ok {
		e.refcount++
		m.mu.Unlock()
		return e.network, true, nil
	}
	m.mu.Unlock()

	// The per-name lock is held across this entire check-then-create
	// sequence, so a second concurrent Acquire for the same new name blocks
	// here instead of racing CreateNetwork -- by the time it acquires the
	// lock, the entries lookup above will find this call's freshly inserted
	// entry and simply share it.
	exists, _, err := m.checkExists(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, false, nil
	}

	id, err := m.client.CreateNetwork(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("netmgr: create network %q: %w", name, err)
	}

	network := &Network{ID: id, Name: name, mgr: m}
	m.mu.Lock()
	m.entries[name] = &entry{network: network, refcount: 1}
	m.mu.Unlock()
	return network, true, nil
}

func (m *Manager) checkExists(ctx context.Context, name string) (bool, string, error) {
	id, exists, err := m.client.NetworkExists(ctx, name)
	if err != nil {
		return false, "", fmt.Errorf("netmgr: check network %q: %w", name, err)
	}
	return exists, id, nil
}

// Release decrements n's refcount, removing the network from the daemon
// once it reaches zero. Safe to call from the watchdog as well as the
// handle's own Close path; a double Release past zero is a no-op.
func (n *Network) Release(ctx context.Context) error {
	n.mgr.mu.Lock()
	e, ok := n.mgr.entries[n.Name]
	if !ok {
		n.mgr.mu.Unlock()
		return nil
	}
	e.refcount--
	remove := e.refcount <= 0
	if remove {
		delete(n.mgr.entries, n.Name)
	}
	n.mgr.mu.Unlock()

	if !remove {
		return nil
	}
	if err := n.mgr.client.RemoveNetwork(ctx, n.ID); err != nil {
		return fmt.Errorf("netmgr: remove network %q: %w", n.Name, err)
	}
	return nil
}
