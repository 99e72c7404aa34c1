// Package randname generates short random tokens used where the engine
// needs a value with no meaningful structure of its own: the hostport
// sidecar's one-time SSH password and, when a caller leaves ContainerName
// empty, a readable suffix for the generated container name.
package randname

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Token returns a cryptographically random hex string of n bytes (2n hex
// characters). Used for secrets, where predictability is a security
// property, not just a readability one, so math/rand/v2 is not an option.
func Token(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("randname: read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ContainerSuffix returns an 8-character hex suffix suitable for appending
// to a generated container name, e.g. "testrig-postgres-3f9ac142". It
// panics only if the system CSPRNG itself is broken, which crypto/rand
// treats as unrecoverable.
func ContainerSuffix() string {
	tok, err := Token(4)
	if err != nil {
		panic(err)
	}
	return tok
}
