package logstream

import (
	"bufio"
	"context"
	"strings"
)

// LineWaiter wraps a raw byte stream (typically one side of a Split) in a
// line-buffered reader and exposes a blocking "wait until a line contains
// this substring N times" operation, the shared primitive behind both the
// LogMessage readiness strategy and the exec subsystem's StdOutMessage /
// StdErrMessage wait conditions.
type LineWaiter struct {
	scanner *bufio.Scanner
}

// NewLineWaiter constructs a LineWaiter over r.
func NewLineWaiter(r interface{ Read([]byte) (int, error) }) *LineWaiter {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &LineWaiter{scanner: scanner}
}

// WaitFor scans lines until needle has appeared `times` times or the
// stream ends, returning every line observed for diagnostics either way.
func (w *LineWaiter) WaitFor(ctx context.Context, needle string, times int) ([]string, error) {
	if times <= 0 {
		times = 1
	}

	var seen []string
	matches := 0
	done := make(chan struct{})
	var scanErr error

	go func() {
		defer close(done)
		for w.scanner.Scan() {
			line := w.scanner.Text()
			seen = append(seen, line)
			if strings.Contains(line, needle) {
				matches++
				if matches >= times {
					return
				}
			}
		}
		scanErr = w.scanner.Err()
	}()

	select {
	case <-done:
		if matches >= times {
			return seen, nil
		}
		if scanErr != nil {
			return seen, scanErr
		}
		return seen, ErrUnexpectedEOF
	case <-ctx.Done():
		return seen, ctx.Err()
	}
}
