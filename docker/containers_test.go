package docker

import (
	"testing"

	"github.com/docker/docker/api/types/mount"
	"gotest.tools/v3/assert"
)

// TestToDockerMounts_GoldenShape pins the exact mount.Mount payload Create
// sends to the SDK for each declared mount type, so a change to the
// translation (e.g. a dropped ReadOnly flag) shows up as a diff here
// instead of only at daemon-call time.
func TestToDockerMounts_GoldenShape(t *testing.T) {
	got := toDockerMounts([]MountSpec{
		{Type: "bind", Source: "/host/data", Target: "/data", ReadOnly: true},
		{Type: "volume", Source: "named-volume", Target: "/var/lib/data"},
		{Type: "tmpfs", Target: "/tmp/scratch"},
	})

	want := []mount.Mount{
		{Type: mount.TypeBind, Source: "/host/data", Target: "/data", ReadOnly: true},
		{Type: mount.TypeVolume, Source: "named-volume", Target: "/var/lib/data"},
		{Type: mount.TypeTmpfs, Target: "/tmp/scratch"},
	}

	assert.DeepEqual(t, got, want)
}

func TestShortID_TruncatesLongIDsOnly(t *testing.T) {
	assert.Equal(t, shortID("abcdef0123456789"), "abcdef012345")
	assert.Equal(t, shortID("short"), "short")
}
