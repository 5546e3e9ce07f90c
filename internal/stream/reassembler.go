package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
)

const readBufferSize = 4096

// Reassembler turns arbitrarily sized network reads into newline-delimited
// frames. It is not safe for concurrent use.
type Reassembler struct {
	buf []byte
}

// Ingest appends chunk to the carry-over buffer and returns every complete,
// non-empty frame in arrival order, trimmed of surrounding whitespace.
//
// A chunk ending in '}' is treated as a complete JSON object missing its
// delimiter and gets one appended.
func (r *Reassembler) Ingest(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	r.buf = append(r.buf, chunk...)
	if chunk[len(chunk)-1] == '}' {
		r.buf = append(r.buf, '\n')
	}

	var frames []string
	for {
		idx := bytes.IndexByte(r.buf, '\n')
		if idx < 0 {
			break
		}
		frame := bytes.TrimSpace(r.buf[:idx])
		r.buf = r.buf[idx+1:]
		if len(frame) > 0 {
			frames = append(frames, string(frame))
		}
	}

	if len(r.buf) == 0 {
		r.buf = nil
	}
	return frames
}

// Flush returns the trailing partial frame, if any, and empties the buffer.
func (r *Reassembler) Flush() (string, bool) {
	frame := bytes.TrimSpace(r.buf)
	r.buf = nil
	if len(frame) == 0 {
		return "", false
	}
	return string(frame), true
}

// Pending reports the number of buffered bytes not yet emitted.
func (r *Reassembler) Pending() int {
	return len(r.buf)
}

// Pump reads src until EOF and calls fn for every frame in order, including
// a trailing unterminated one. It stops early when ctx is cancelled or fn
// returns an error.
func Pump(ctx context.Context, src io.Reader, fn func(frame string) error) error {
	var r Reassembler
	buf := make([]byte, readBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			for _, frame := range r.Ingest(buf[:n]) {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(frame); err != nil {
					return err
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return readErr
		}
	}

	if frame, ok := r.Flush(); ok {
		return fn(frame)
	}
	return nil
}
