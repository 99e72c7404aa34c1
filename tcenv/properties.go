package tcenv

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// loadPropertiesFileQuietly reads $HOME/.testcontainers.properties in the
// Java-properties "key=value" format testcontainers-java (and every port
// that followed it) uses for machine-local defaults. A missing file, or one
// that cannot be read, yields an empty map rather than an error: the file is
// an optional convenience, never a requirement, so every lookup against its
// result degrades to the environment-variable/hardcoded-default path.
func loadPropertiesFileQuietly() map[string]string {
	home, err := os.UserHomeDir()
	if err != nil {
		return map[string]string{}
	}
	return parsePropertiesFile(filepath.Join(home, ".testcontainers.properties"))
}

func parsePropertiesFile(path string) map[string]string {
	out := map[string]string{}

	f, err := os.Open(path)
	if err != nil {
		return out
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		idx := strings.IndexAny(line, "=:")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if key != "" {
			out[key] = value
		}
	}
	return out
}
