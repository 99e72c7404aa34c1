package tcenv

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearTestContainersEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DOCKER_HOST", "DOCKER_TLS_VERIFY", "DOCKER_CERT_PATH", "TESTCONTAINERS_COMMAND", "KEEP_CONTAINERS", "TESTCONTAINERS_REUSE_ENABLE", "TC_LOG_FORMAT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDaemonConfig_DefaultsCommandToRemove(t *testing.T) {
	clearTestContainersEnv(t)
	cfg := LoadDaemonConfig()
	assert.Equal(t, "remove", cfg.Command)
	assert.False(t, cfg.Keep())
}

func TestLoadDaemonConfig_CommandKeepDisablesCleanup(t *testing.T) {
	clearTestContainersEnv(t)
	t.Setenv("TESTCONTAINERS_COMMAND", "keep")
	cfg := LoadDaemonConfig()
	assert.True(t, cfg.Keep())
	assert.False(t, cfg.LegacyKeepContainersUsed)
}

func TestLoadDaemonConfig_LegacyKeepContainersForcesKeep(t *testing.T) {
	clearTestContainersEnv(t)
	t.Setenv("TESTCONTAINERS_COMMAND", "remove")
	t.Setenv("KEEP_CONTAINERS", "1")
	cfg := LoadDaemonConfig()
	assert.True(t, cfg.Keep())
	assert.True(t, cfg.LegacyKeepContainersUsed)
}

func TestWarnDeprecated_LogsOnlyWhenLegacyUsed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := &DaemonConfig{LegacyKeepContainersUsed: false}
	cfg.WarnDeprecated(logger)
	assert.Empty(t, buf.String())

	cfg.LegacyKeepContainersUsed = true
	cfg.WarnDeprecated(logger)
	assert.Contains(t, buf.String(), "KEEP_CONTAINERS")
}

func TestParsePropertiesFile_ParsesKeyValuePairsAndSkipsComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".testcontainers.properties")
	content := "# a comment\n\ntc.host=tcp://127.0.0.1:2375\ndocker.tls.verify=1\n! bang comment\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	props := parsePropertiesFile(path)
	assert.Equal(t, "tcp://127.0.0.1:2375", props["tc.host"])
	assert.Equal(t, "1", props["docker.tls.verify"])
	assert.Len(t, props, 2)
}

func TestLoadDaemonConfig_TcHostOverridesDockerHostEnv(t *testing.T) {
	clearTestContainersEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".testcontainers.properties"), []byte("tc.host=tcp://override:2375\n"), 0o644))
	t.Setenv("DOCKER_HOST", "unix:///var/run/docker.sock")

	cfg := LoadDaemonConfig()
	assert.Equal(t, "tcp://override:2375", cfg.Host)
}

func TestParsePropertiesFile_MissingFileYieldsEmptyMap(t *testing.T) {
	props := parsePropertiesFile(filepath.Join(t.TempDir(), "nope.properties"))
	assert.Empty(t, props)
}

func TestNewLogger_TextVsJSONHandler(t *testing.T) {
	cfg := &DaemonConfig{LogFormat: "text"}
	logger := cfg.NewLogger()
	assert.NotNil(t, logger)

	cfg.LogFormat = "json"
	logger = cfg.NewLogger()
	assert.NotNil(t, logger)
}
