package spec

import (
	"time"

	"github.com/corvuslabs/testrig/logstream"
)

// ReuseDirective controls whether Start attempts to identify and re-attach
// to a previously started container instead of creating a new one.
type ReuseDirective string

const (
	ReuseNever          ReuseDirective = "never"
	ReuseAlways         ReuseDirective = "always"
	ReuseCurrentSession ReuseDirective = "current_session"
)

// HostAlias is one entry of a ContainerRequest's Hosts map: either a literal
// IP, or the sentinel "host-gateway" daemon alias.
type HostAlias struct {
	IP          string
	HostGateway bool
}

// PortMapping binds a specific host port to a specific container port. An
// empty PortMapping slice on a ContainerRequest means "publish all exposed
// ports to ephemeral host ports" (Docker's -P).
type PortMapping struct {
	HostPort      int
	ContainerPort Port
}

// Ulimit mirrors a single `--ulimit name=soft:hard` entry.
type Ulimit struct {
	Name string
	Soft int64
	Hard int64
}

// LogConsumer receives every log frame produced by a running container, in
// arrival order, for as long as the container lives. Implementations must
// not block for long; see logstream.Stream.FanOut for the delivery
// guarantees around a slow consumer.
type LogConsumer = logstream.Consumer

// CopySource describes a host path to be uploaded into the container's
// filesystem before it starts, as a tar archive.
type CopySource struct {
	HostPath string // file or directory on the host
	Target   string // destination directory inside the container
}

// ContainerRequest layers a single test's runtime overrides on top of an
// ImageSpec. It is constructed by the caller, consumed once by Engine.Start,
// and discarded once the container exists -- none of its fields are
// retained by reference inside the resulting Handle beyond what the handle
// needs to report back to the caller (mapped ports, id, etc).
type ContainerRequest struct {
	Image ImageSpec

	ContainerName string // empty: engine generates one
	Network       string // empty: default bridge; "host"/"container:*" are pass-through modes

	Hosts map[string]HostAlias

	PortMappings []PortMapping // empty: publish-all

	Labels map[string]string

	Privileged   bool
	CapAdd       []string
	CapDrop      []string
	CgroupNSMode string
	UsernsMode   string
	ShmSize      int64
	Ulimits      []Ulimit

	StartupTimeout time.Duration // zero: engine applies the 60s default

	WorkingDir string

	LogConsumers []LogConsumer

	HealthCheckOverride *HealthCheck

	HostExposedPorts []int

	ReuseDirective ReuseDirective

	CopyToSources []CopySource
}

// HealthCheck overrides or supplies a Docker HEALTHCHECK for a container
// whose image does not declare one (or whose declared one is unsuitable for
// the readiness strategy being used).
type HealthCheck struct {
	Test        []string
	Interval    time.Duration
	Timeout     time.Duration
	Retries     int
	StartPeriod time.Duration
}

// reservedLabelPrefix is the namespace the engine owns; user-supplied
// labels under it are rejected at validation time except for the exact
// managed-by key, which the engine always overwrites anyway.
const reservedLabelPrefix = "org.testcontainers."

// ManagedByLabel is the key/value pair stamped onto every container this
// engine creates, last, overriding any user-supplied value for the key.
const (
	ManagedByLabelKey   = reservedLabelPrefix + "managed-by"
	ManagedByLabelValue = "testcontainers"
	SessionIDLabelKey   = reservedLabelPrefix + "session-id"
)

// EffectiveStartupTimeout returns the request's configured timeout, or the
// spec-mandated 60 second default when unset.
func (r ContainerRequest) EffectiveStartupTimeout() time.Duration {
	if r.StartupTimeout > 0 {
		return r.StartupTimeout
	}
	return 60 * time.Second
}

// IsContainerMode reports whether Network is a pass-through mode
// ("host" or "container:<id>") rather than a managed bridge network name.
func (r ContainerRequest) IsContainerMode() bool {
	return r.Network == "host" || hasContainerPrefix(r.Network)
}

func hasContainerPrefix(network string) bool {
	const prefix = "container:"
	return len(network) > len(prefix) && network[:len(prefix)] == prefix
}

// Validate enforces the cross-field invariants of a
// ContainerRequest. It is called by Engine.Start before any daemon I/O
// happens, so a malformed request never leaves a partially created
// container behind.
func (r ContainerRequest) Validate() error {
	if err := r.Image.Validate(); err != nil {
		return err
	}

	if len(r.HostExposedPorts) > 0 {
		for _, p := range r.HostExposedPorts {
			if p == 22 {
				return ErrReservedSSHPort
			}
			if p == 0 {
				return ErrInvalidHostPort
			}
		}
		if _, ok := r.Hosts["host.testcontainers.internal"]; ok {
			return ErrAliasReserved
		}
		if r.ReuseDirective != "" && r.ReuseDirective != ReuseNever {
			return ErrReuseIncompatibleWithHostExposure
		}
		if r.IsContainerMode() {
			return ErrNetworkModeIncompatibleWithHostExposure
		}
	}

	for key := range r.Labels {
		if key != ManagedByLabelKey && hasReservedPrefix(key) {
			return ErrReservedLabel
		}
	}

	return nil
}

func hasReservedPrefix(key string) bool {
	if len(key) < len(reservedLabelPrefix) {
		return false
	}
	return key[:len(reservedLabelPrefix)] == reservedLabelPrefix
}

// EffectiveLabels returns the labels that should be attached to the
// container: the user's labels, with the managed-by marker always appended
// last so it wins regardless of what the caller passed for that key, and
// the session-id label present only under ReuseCurrentSession.
func (r ContainerRequest) EffectiveLabels(sessionID string) map[string]string {
	out := make(map[string]string, len(r.Labels)+2)
	for k, v := range r.Labels {
		out[k] = v
	}
	out[ManagedByLabelKey] = ManagedByLabelValue
	if r.ReuseDirective == ReuseCurrentSession {
		out[SessionIDLabelKey] = sessionID
	}
	return out
}

// PublishAll reports whether the request has no explicit port mappings and
// is not running in a container-sharing network mode, meaning the engine
// must set PublishAllPorts on the create payload.
func (r ContainerRequest) PublishAll() bool {
	return len(r.PortMappings) == 0 && !r.IsContainerMode()
}
