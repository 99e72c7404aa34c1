package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corvuslabs/testrig/docker"
	"github.com/corvuslabs/testrig/spec"
)

func TestBindingForFamily_PicksIPv4OverIPv6(t *testing.T) {
	bindings := []docker.PortBindingInfo{
		{HostIP: "::", HostPort: 49001},
		{HostIP: "0.0.0.0", HostPort: 49000},
	}

	port, ok := bindingForFamily(bindings, false)
	assert.True(t, ok)
	assert.Equal(t, 49000, port)

	port, ok = bindingForFamily(bindings, true)
	assert.True(t, ok)
	assert.Equal(t, 49001, port)
}

func TestBindingForFamily_EmptyHostIPCountsAsIPv4(t *testing.T) {
	bindings := []docker.PortBindingInfo{{HostIP: "", HostPort: 49000}}

	port, ok := bindingForFamily(bindings, false)
	assert.True(t, ok)
	assert.Equal(t, 49000, port)

	_, ok = bindingForFamily(bindings, true)
	assert.False(t, ok)
}

func TestBindingForFamily_NoBindings(t *testing.T) {
	_, ok := bindingForFamily(nil, false)
	assert.False(t, ok)
}

func TestPortKey_DefaultsProtocolToTCP(t *testing.T) {
	assert.Equal(t, "6379/tcp", portKey(spec.Port{Number: 6379}))
	assert.Equal(t, "53/udp", portKey(spec.Port{Number: 53, Protocol: spec.ProtoUDP}))
}
