package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvuslabs/testrig/spec"
)

func TestBuildCreateOptions_UnionsExposedAndMappedPorts(t *testing.T) {
	req := spec.ContainerRequest{
		Image: spec.ImageSpec{
			Name: "postgres",
			Tag:  "16-alpine",
			ExposedPorts: []spec.Port{
				{Number: 5432, Protocol: spec.ProtoTCP},
			},
		},
		PortMappings: []spec.PortMapping{
			{HostPort: 15432, ContainerPort: spec.Port{Number: 5432, Protocol: spec.ProtoTCP}},
			{HostPort: 19999, ContainerPort: spec.Port{Number: 9999, Protocol: spec.ProtoTCP}},
		},
	}

	opts := buildCreateOptions(req, "pg-test", map[string]string{"managed-by": "testcontainers"})

	require.Len(t, opts.PortSpecs, 2)
	byPort := map[int]int{}
	for _, p := range opts.PortSpecs {
		byPort[p.ContainerPort] = p.HostPort
	}
	assert.Equal(t, 15432, byPort[5432])
	assert.Equal(t, 19999, byPort[9999])
	assert.False(t, opts.PublishAll)
}

func TestBuildCreateOptions_PublishAllWhenNoMappings(t *testing.T) {
	req := spec.ContainerRequest{
		Image: spec.ImageSpec{Name: "redis", Tag: "7-alpine"},
	}
	opts := buildCreateOptions(req, "redis-test", nil)
	assert.True(t, opts.PublishAll)
}

func TestBuildCreateOptions_ContainerModeSkipsPublishAllAndNetworkName(t *testing.T) {
	req := spec.ContainerRequest{
		Image:   spec.ImageSpec{Name: "redis", Tag: "7-alpine"},
		Network: "container:abc123",
	}
	opts := buildCreateOptions(req, "redis-test", nil)
	assert.False(t, opts.PublishAll)
	assert.Equal(t, "container:abc123", opts.NetworkMode)
	assert.Equal(t, "", opts.NetworkName)
}

func TestBuildCreateOptions_EntrypointOverride(t *testing.T) {
	entry := "/bin/custom-entry"
	req := spec.ContainerRequest{
		Image: spec.ImageSpec{Name: "redis", Tag: "7-alpine", Entrypoint: &entry},
	}
	opts := buildCreateOptions(req, "redis-test", nil)
	assert.Equal(t, []string{entry}, opts.Entrypoint)
}

func TestToHostsStrings_HostGatewayAndLiteralIP(t *testing.T) {
	out := toHostsStrings(map[string]spec.HostAlias{
		"host.testcontainers.internal": {IP: "172.17.0.2"},
		"gateway.local":                 {HostGateway: true},
	})
	require.Len(t, out, 2)
	assert.Contains(t, out, "host.testcontainers.internal:172.17.0.2")
	assert.Contains(t, out, "gateway.local:host-gateway")
}

func TestSanitizeForName_ReplacesNonAlphanumeric(t *testing.T) {
	assert.Equal(t, "my--image-1-0", sanitizeForName("my_/image.1:0"))
}

func TestExposedPortNumbers_ExtractsNumbers(t *testing.T) {
	out := exposedPortNumbers([]spec.Port{{Number: 80}, {Number: 443}})
	assert.Equal(t, []int{80, 443}, out)
}

func TestReuseFilter_IncludesFullLabelSet(t *testing.T) {
	labels := map[string]string{
		spec.ManagedByLabelKey: spec.ManagedByLabelValue,
		spec.SessionIDLabelKey: "session-abc",
		"custom-label":         "v",
	}
	req := spec.ContainerRequest{ContainerName: "pg-test", Network: "awesome-net"}

	filter := reuseFilter(req, labels)

	assert.Equal(t, "pg-test", filter.Name)
	assert.Equal(t, "awesome-net", filter.Network)
	assert.Equal(t, labels, filter.Labels)
}

func TestReuseFilter_SkipsNetworkInContainerMode(t *testing.T) {
	req := spec.ContainerRequest{Network: "container:abc123"}
	filter := reuseFilter(req, map[string]string{spec.ManagedByLabelKey: spec.ManagedByLabelValue})
	assert.Equal(t, "", filter.Network)
}
