package docker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDockerPorts_ExposesAndBindsExplicitHostPort(t *testing.T) {
	exposed, bindings := toDockerPorts([]PortSpec{
		{ContainerPort: 8332, Protocol: "tcp", HostPort: 18332},
		{ContainerPort: 53, Protocol: "udp"},
	})

	_, ok := exposed["8332/tcp"]
	assert.True(t, ok)
	_, ok = exposed["53/udp"]
	assert.True(t, ok)

	require.Len(t, bindings["8332/tcp"], 1)
	assert.Equal(t, "18332", bindings["8332/tcp"][0].HostPort)

	require.Len(t, bindings["53/udp"], 1)
	assert.Equal(t, "", bindings["53/udp"][0].HostPort)
}

func TestToDockerPorts_DefaultsProtocolToTCP(t *testing.T) {
	exposed, _ := toDockerPorts([]PortSpec{{ContainerPort: 80}})
	_, ok := exposed["80/tcp"]
	assert.True(t, ok)
}

func TestToDockerMounts_MapsTypes(t *testing.T) {
	out := toDockerMounts([]MountSpec{
		{Type: "bind", Source: "/host", Target: "/container", ReadOnly: true},
		{Type: "volume", Target: "/data"},
		{Type: "tmpfs", Target: "/tmp"},
	})

	require.Len(t, out, 3)
	assert.Equal(t, "/host", out[0].Source)
	assert.True(t, out[0].ReadOnly)
}

func TestToDockerUlimits_PreservesSoftHard(t *testing.T) {
	out := toDockerUlimits([]UlimitSpec{{Name: "nofile", Soft: 1024, Hard: 2048}})
	require.Len(t, out, 1)
	assert.Equal(t, "nofile", out[0].Name)
	assert.Equal(t, int64(1024), out[0].Soft)
	assert.Equal(t, int64(2048), out[0].Hard)
}

func TestBuildListFilter_EmptyYieldsNoArgs(t *testing.T) {
	args := buildListFilter(ListFilter{})
	assert.True(t, args.Len() == 0)
}

func TestBuildListFilter_AddsOneLabelArgPerPair(t *testing.T) {
	args := buildListFilter(ListFilter{
		Labels: map[string]string{
			"org.testcontainers.managed-by": "testcontainers",
			"org.testcontainers.session-id": "abc123",
		},
	})
	assert.True(t, args.Contains("label"))
	assert.Equal(t, 2, len(args.Get("label")))
}

func TestBuildListFilter_AddsNameAndNetworkArgs(t *testing.T) {
	args := buildListFilter(ListFilter{Name: "pg-test", Network: "awesome-net"})
	assert.True(t, args.Contains("name"))
	assert.True(t, args.Contains("network"))
}

func TestBuildImageOptions_DefaultsDockerfile(t *testing.T) {
	opts := buildImageOptions("", []string{"myimage:latest"})
	assert.Equal(t, "Dockerfile", opts.Dockerfile)
	assert.Equal(t, []string{"myimage:latest"}, opts.Tags)
}
