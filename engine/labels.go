package engine

import (
	"sync"

	"github.com/google/uuid"
)

// processSessionID is generated once per process on first use (substituting
// the source's per-process ULID; no ULID library is present anywhere in the
// retrieval pack, so google/uuid's v4, already a vetted dependency, is used
// instead -- see DESIGN.md), and stamped onto every container created with
// ReuseDirective == ReuseCurrentSession.
var (
	sessionOnce sync.Once
	sessionID   string
)

func processSessionID() string {
	sessionOnce.Do(func() {
		sessionID = uuid.NewString()
	})
	return sessionID
}
