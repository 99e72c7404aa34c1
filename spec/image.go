// Package spec defines the declarative data model the rest of the engine
// consumes: an ImageSpec describes what a container image needs to run, and
// a ContainerRequest layers runtime overrides (networking, reuse, host
// exposure) on top of one. Nothing in this package talks to Docker directly;
// its internal dependencies are the wait package, since a ready condition
// is part of what an ImageSpec declares, and logstream, for a request's log
// consumers.
package spec

import "github.com/corvuslabs/testrig/wait"

// MountType is the kind of filesystem attachment a container receives.
type MountType string

const (
	MountBind    MountType = "bind"
	MountVolume  MountType = "volume"
	MountTmpfs   MountType = "tmpfs"
)

// AccessMode controls whether a mount is writable from inside the container.
type AccessMode string

const (
	AccessReadOnly  AccessMode = "ro"
	AccessReadWrite AccessMode = "rw"
)

// Mount describes a single bind/volume/tmpfs attachment.
type Mount struct {
	Type   MountType
	Source string // empty for anonymous volumes and tmpfs
	Target string
	Access AccessMode
}

// Protocol is a transport protocol a port is exposed over.
type Protocol string

const (
	ProtoTCP  Protocol = "tcp"
	ProtoUDP  Protocol = "udp"
	ProtoSCTP Protocol = "sctp"
)

// Port is a container-internal port/protocol pair, e.g. 8332/tcp.
type Port struct {
	Number   int
	Protocol Protocol
}

// EnvVar is a single ordered (name, value) pair. A slice of these is used
// instead of a map so that env ordering, which some images are sensitive to
// during interpolation, is preserved exactly as declared.
type EnvVar struct {
	Name  string
	Value string
}

// ExecHook is a command run against the container at a fixed point in the
// lifecycle (before readiness is evaluated, or after it succeeds).
type ExecHook struct {
	Argv []string
}

// ImageSpec is the implementer-supplied, immutable description of a
// container image and how to run it. It never carries anything that
// depends on a particular test run (no container name, no network, no
// reuse directive) -- that belongs on ContainerRequest.
type ImageSpec struct {
	// Name and Tag are the registry coordinates, e.g. "postgres", "16-alpine".
	Name string
	Tag  string

	Env  []EnvVar
	Cmd  []string // overrides the image's default command; nil leaves it alone
	Entrypoint *string

	Mounts       []Mount
	ExposedPorts []Port // forced exposed even if the image's Dockerfile omits EXPOSE

	ReadyConditions []wait.Strategy

	ExecBeforeReady []ExecHook
	ExecAfterStart  []ExecHook
}

// Validate checks the invariants an ImageSpec must satisfy: a
// non-empty tag, with a warning (not an error) surfaced to the caller for
// floating tags. The logger-facing warning is left to the engine, which has
// the injected *slog.Logger; Validate only reports the fact.
func (s ImageSpec) Validate() error {
	if s.Tag == "" {
		return ErrTagRequired
	}
	return nil
}

// IsFloatingTag reports whether the tag is one that is expected to drift
// over time, such as "latest", making image pulls non-reproducible.
func (s ImageSpec) IsFloatingTag() bool {
	return s.Tag == "latest" || s.Tag == ""
}

// Reference formats the image as "name:tag", the form every Docker API call
// in this codebase expects.
func (s ImageSpec) Reference() string {
	return s.Name + ":" + s.Tag
}
