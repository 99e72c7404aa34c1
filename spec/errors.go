package spec

import "errors"

// ErrTagRequired is returned by ImageSpec.Validate when Tag is empty.
var ErrTagRequired = errors.New("spec: image tag must not be empty")

// Cross-field ContainerRequest invariant violations. Each is checked by
// Validate before any daemon call is made.
var (
	ErrReservedSSHPort                          = errors.New("spec: port 22 is reserved when host port exposure is enabled")
	ErrInvalidHostPort                          = errors.New("spec: host exposed port must be non-zero")
	ErrAliasReserved                            = errors.New("spec: host.testcontainers.internal must not be set explicitly when host port exposure is enabled")
	ErrReuseIncompatibleWithHostExposure         = errors.New("spec: reuse directives other than never are incompatible with host port exposure")
	ErrNetworkModeIncompatibleWithHostExposure   = errors.New("spec: host/container network modes are incompatible with host port exposure")
	ErrReservedLabel                             = errors.New("spec: labels in the org.testcontainers namespace are reserved")
)
