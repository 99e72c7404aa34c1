package hostport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupePorts_SortsAndDeduplicates(t *testing.T) {
	assert.Equal(t, []int{80, 443, 8080}, dedupePorts([]int{8080, 443, 80, 443, 8080}))
}

func TestDedupePorts_EmptyInput(t *testing.T) {
	assert.Empty(t, dedupePorts(nil))
}

func TestDialHost_SocketEndpointsAreLocal(t *testing.T) {
	assert.Equal(t, "localhost", dialHost(""))
	assert.Equal(t, "localhost", dialHost("unix:///var/run/docker.sock"))
	assert.Equal(t, "localhost", dialHost("npipe:////./pipe/docker_engine"))
}

func TestDialHost_TCPEndpointKeepsItsHost(t *testing.T) {
	assert.Equal(t, "10.1.2.3", dialHost("tcp://10.1.2.3:2376"))
	assert.Equal(t, "docker.example.com", dialHost("https://docker.example.com:2376"))
}
