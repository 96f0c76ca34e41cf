// Package framer splits an unbounded, chunked byte stream into delimiter
// bounded frames.
//
// Bytes arrive in arbitrary fragments; a fragment may hold several frames,
// part of one frame, or end in the middle of the delimiter itself. The
// Extractor keeps every byte not yet consumed by a complete frame and searches
// the whole retained accumulator each time, so a delimiter split across two
// appends is still found.
package framer

import (
	"bytes"
	"errors"

	"github.com/arloliu/go-grbl/internal/util"
	"github.com/valyala/bytebufferpool"
)

// DefaultDelimiter terminates lines sent to and received from GRBL.
var DefaultDelimiter = []byte("\n")

// ErrEmptyDelimiter is returned by New when the delimiter has zero length.
var ErrEmptyDelimiter = errors.New("framer: delimiter must not be empty")

// Extractor accumulates incoming bytes and extracts complete frames.
//
// The accumulator always holds exactly the bytes received since the last
// extracted frame. Extractor is NOT goroutine-safe; the owner must serialize
// Append, Drain, Reset and Release.
type Extractor struct {
	delim []byte
	buf   *bytebufferpool.ByteBuffer
}

// New creates an Extractor for the given delimiter. The delimiter is copied.
func New(delimiter []byte) (*Extractor, error) {
	if len(delimiter) == 0 {
		return nil, ErrEmptyDelimiter
	}

	return &Extractor{
		delim: util.CloneSlice(delimiter, 0),
		buf:   bytebufferpool.Get(),
	}, nil
}

// Append adds p to the accumulator. An empty p is a no-op.
func (e *Extractor) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	if e.buf == nil {
		e.buf = bytebufferpool.Get()
	}
	_, _ = e.buf.Write(p)
}

// Drain extracts every complete frame currently in the accumulator, in stream
// order. Each frame is a fresh copy of the bytes before the delimiter,
// delimiter excluded. Bytes after the last delimiter stay buffered.
//
// Drain never fails: there is no invalid frame at this layer.
func (e *Extractor) Drain() [][]byte {
	if e.buf == nil || e.buf.Len() < len(e.delim) {
		return nil
	}

	var frames [][]byte
	data := e.buf.B
	consumed := 0
	for {
		idx := bytes.Index(data[consumed:], e.delim)
		if idx < 0 {
			break
		}
		frames = append(frames, util.CloneSlice(data[consumed:consumed+idx], 0))
		consumed += idx + len(e.delim)
	}

	if consumed > 0 {
		n := copy(data, data[consumed:])
		e.buf.B = data[:n]
	}

	return frames
}

// Feed appends p and drains all complete frames.
func (e *Extractor) Feed(p []byte) [][]byte {
	e.Append(p)
	return e.Drain()
}

// Buffered returns a copy of the bytes retained after the last complete frame.
func (e *Extractor) Buffered() []byte {
	if e.buf == nil {
		return nil
	}

	return util.CloneSlice(e.buf.B, 0)
}

// Len returns the number of retained bytes.
func (e *Extractor) Len() int {
	if e.buf == nil {
		return 0
	}

	return e.buf.Len()
}

// Delimiter returns a copy of the configured delimiter.
func (e *Extractor) Delimiter() []byte {
	return util.CloneSlice(e.delim, 0)
}

// Reset empties the accumulator.
func (e *Extractor) Reset() {
	if e.buf == nil {
		e.buf = bytebufferpool.Get()
		return
	}
	e.buf.Reset()
}

// Release returns the accumulator to the pool. The Extractor stays usable:
// a later Append takes a new buffer from the pool.
func (e *Extractor) Release() {
	if e.buf == nil {
		return
	}
	bytebufferpool.Put(e.buf)
	e.buf = nil
}
