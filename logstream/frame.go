// Package logstream demultiplexes the Docker daemon's framed stdout/stderr
// stream into independently consumable byte streams. It parses the same
// 8-byte-header wire format github.com/docker/docker/pkg/stdcopy.StdCopy
// does (1 stream-type byte, 3 reserved bytes, 4-byte big-endian length,
// payload) -- stdcopy itself writes to exactly two destination writers,
// but this engine needs to fan the same frames out to an arbitrary number
// of independent readers (readiness waiters, user log consumers, exec
// result buffers) at once, which stdcopy's two-writer signature cannot
// express, so this package re-implements the header loop against that
// need.
package logstream

import (
	"encoding/binary"
	"errors"
	"io"
)

// Frame is one demultiplexed chunk of container output, tagged with the
// stream it came from.
type Frame struct {
	Stream Source
	Bytes  []byte
}

// Source identifies which of the container's two output streams a Frame
// belongs to.
type Source int

const (
	Stdout Source = 1
	Stderr Source = 2
)

// ErrUnexpectedEOF is surfaced when the underlying stream ends in a way
// that looks like the connection was severed mid-frame, as opposed to a
// clean close after the container stops.
var ErrUnexpectedEOF = errors.New("logstream: stream ended unexpectedly")

const headerLength = 8

// ReadFrame reads exactly one frame from r: an 8 byte header (tag, 3
// reserved bytes, big-endian uint32 length) followed by that many payload
// bytes. It returns io.EOF (not wrapped) when r is exhausted cleanly at a
// frame boundary, and ErrUnexpectedEOF when it is exhausted mid-frame.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [headerLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, ErrUnexpectedEOF
	}

	var source Source
	switch header[0] {
	case 1:
		source = Stdout
	case 2:
		source = Stderr
	default:
		// Docker also multiplexes a "stdin" tag (0) into combined logs in
		// some code paths; treat anything unrecognized as stdout rather
		// than dropping it silently.
		source = Stdout
	}

	length := binary.BigEndian.Uint32(header[4:8])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, ErrUnexpectedEOF
	}

	return Frame{Stream: source, Bytes: payload}, nil
}
