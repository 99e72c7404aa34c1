/*
Package tcenv resolves the daemon connection, removal policy, and logging
configuration the rest of the engine needs from the process environment,
mirroring the precedence order of a ~/.testcontainers.properties file
overridden by TESTCONTAINERS_* / DOCKER_* environment variables that every
testcontainers language port implements. Nothing here talks to Docker
directly; docker.NewClient only consumes the resolved DaemonConfig.
*/
package tcenv

import (
	"log/slog"
	"os"
	"path/filepath"
)

// DaemonConfig is the resolved set of options docker.NewClient needs to dial
// the daemon. Host empty means "let the SDK's own FromEnv/default-socket
// fallback decide" when no override is present anywhere.
type DaemonConfig struct {
	Host       string
	TLSVerify  bool
	CertPath   string

	// LogFormat controls the output format of the logger NewLogger builds:
	// "text" for local development, anything else (including "json", the
	// default) for structured production logging.
	LogFormat string

	// Command mirrors TESTCONTAINERS_COMMAND: "remove" (the default) lets
	// Engine register the watchdog and tear every container/network down
	// on Handle.Close; "keep" disables both, the same blanket opt-out the
	// spec describes in its External Interfaces section.
	Command string

	// LegacyKeepContainersUsed records whether the deprecated
	// KEEP_CONTAINERS alias (rather than TESTCONTAINERS_COMMAND itself) is
	// what produced Command == "keep", so the caller can log the one-time
	// deprecation warning once a logger exists.
	LegacyKeepContainersUsed bool

	// ReuseEnabled mirrors TESTCONTAINERS_REUSE_ENABLE, the global kill
	// switch that sits above each request's per-call
	// ReuseDirective: a request asking for reuse is downgraded to "never"
	// unless this is also true.
	ReuseEnabled bool
}

// Keep reports whether the resolved Command disables automatic cleanup,
// i.e. Engine.New should select PolicyKeep.
func (c *DaemonConfig) Keep() bool { return c.Command == "keep" }

// LoadDaemonConfig reads the daemon connection and global toggles from the
// environment and the optional properties file (loadPropertiesFileQuietly).
// Environment variables win over the file for every setting except the
// daemon host, where the file's tc.host wins over DOCKER_HOST.
func LoadDaemonConfig() *DaemonConfig {
	props := loadPropertiesFileQuietly()

	// Precedence: tc.host always wins; otherwise DOCKER_HOST; then
	// the properties file's docker.host; then the empty string, which
	// tells docker.NewClient to fall back to the SDK's own platform
	// default socket resolution.
	cfg := &DaemonConfig{
		Host:         firstNonEmpty(props["tc.host"], os.Getenv("DOCKER_HOST"), props["docker.host"]),
		TLSVerify:    boolFrom(firstNonEmpty(os.Getenv("DOCKER_TLS_VERIFY"), props["docker.tls.verify"])),
		CertPath:     firstNonEmpty(os.Getenv("DOCKER_CERT_PATH"), props["docker.cert.path"]),
		LogFormat:    getEnv("TC_LOG_FORMAT", firstNonEmpty(props["log.format"], "json")),
		Command:      firstNonEmpty(os.Getenv("TESTCONTAINERS_COMMAND"), props["testcontainers.command"], "remove"),
		ReuseEnabled: boolFrom(firstNonEmpty(os.Getenv("TESTCONTAINERS_REUSE_ENABLE"), props["testcontainers.reuse.enable"])),
	}

	// KEEP_CONTAINERS is the legacy alias: its mere presence (any value)
	// forces "keep" regardless of what TESTCONTAINERS_COMMAND said, the
	// same "deprecated flag still wins" rule other language ports follow.
	if _, present := os.LookupEnv("KEEP_CONTAINERS"); present {
		cfg.Command = "keep"
		cfg.LegacyKeepContainersUsed = true
	}

	return cfg
}

// WarnDeprecated logs the one-time KEEP_CONTAINERS deprecation notice once
// a logger is available. Called by Engine.New rather than LoadDaemonConfig
// itself, since construction order in cmd/tcdemo builds the logger from
// the config that this warning is about.
func (c *DaemonConfig) WarnDeprecated(logger *slog.Logger) {
	if c.LegacyKeepContainersUsed {
		logger.Warn("KEEP_CONTAINERS is deprecated, use TESTCONTAINERS_COMMAND=keep instead")
	}
}

// NewLogger constructs a *slog.Logger based on LogFormat, trimming source
// paths to basenames via ReplaceAttr so log lines stay readable in a
// terminal during local `go test -v` runs.
func (c *DaemonConfig) NewLogger() *slog.Logger {
	options := &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelInfo,
		ReplaceAttr: func(groups []string, attribute slog.Attr) slog.Attr {
			if attribute.Key == slog.SourceKey {
				if source, ok := attribute.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return attribute
		},
	}

	var handler slog.Handler
	if c.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, options)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, options)
	}
	return slog.New(handler)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func boolFrom(v string) bool {
	return v == "1" || v == "true" || v == "TRUE" || v == "True"
}
