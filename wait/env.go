package wait

import (
	"os"
	"strconv"
)

// DurationFromEnv mirrors the source's `Duration::millis_in_env_var` helper:
// a concrete image spec can declare "sleep for N more milliseconds, where N
// comes from this environment variable" (e.g. BITCOIND_ADDITIONAL_SLEEP_PERIOD)
// without forcing every caller to read the env var themselves. A missing or
// unparsable value degrades to Nothing rather than erroring, since the
// extra sleep is an opt-in accommodation, not a hard requirement.
func DurationFromEnv(name string) Strategy {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return Nothing{}
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Nothing{}
	}
	return Millis(millis)
}
