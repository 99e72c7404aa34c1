package wait

import (
	"context"
	"strings"
)

// LogMessage waits for a substring to appear a given number of times on
// one of the container's log streams. It opens a follow-mode stream
// scoped to Source, scans it line by line (UTF-8 lossy, matching the
// source's behavior of never failing a readiness check on invalid UTF-8),
// and returns as soon as the Nth match is seen.
type LogMessage struct {
	base
	Source LogSource
	Needle string
	Times  int // defaults to 1 when zero
}

// StdoutContains is a convenience constructor for the common case of a
// single stdout match.
func StdoutContains(needle string) LogMessage {
	return LogMessage{Source: SourceStdout, Needle: needle, Times: 1}
}

// StderrContains is the stderr counterpart of StdoutContains.
func StderrContains(needle string) LogMessage {
	return LogMessage{Source: SourceStderr, Needle: needle, Times: 1}
}

func (l LogMessage) WaitUntilReady(ctx context.Context, client DaemonClient, target Target) error {
	want := l.Times
	if want <= 0 {
		want = 1
	}

	stream, err := client.Logs(ctx, target.ContainerID, LogsOptions{Follow: true})
	if err != nil {
		return err
	}

	lines, errs := stream.Lines(ctx, l.Source)

	var seen []string
	matches := 0
	for lines != nil || errs != nil {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			seen = append(seen, line)
			if strings.Contains(line, l.Needle) {
				matches++
				if matches >= want {
					return nil
				}
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			// The stream reports on errs only after its last line has been
			// delivered, so any value here (nil, io.EOF or a read error)
			// means no further match can arrive.
			return &ErrLogStreamEnded{Needle: l.Needle, Want: want, Got: matches, Lines: seen}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return &ErrLogStreamEnded{Needle: l.Needle, Want: want, Got: matches, Lines: seen}
}
