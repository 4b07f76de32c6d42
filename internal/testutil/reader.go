package testutil

import (
	"errors"
	"io"
)

// ErrReaderFailed is the error produced by FailingReader when its budget is
// exhausted.
var ErrReaderFailed = errors.New("testutil: simulated stream failure")

// FailingReader yields n bytes of filler data and then fails, simulating a
// transport that drops mid-stream.
type FailingReader struct {
	remaining int64
}

// NewFailingReader creates a reader that fails after n bytes.
func NewFailingReader(n int64) *FailingReader {
	return &FailingReader{remaining: n}
}

// Read implements io.Reader.
func (r *FailingReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, ErrReaderFailed
	}
	n := int64(len(p))
	if n > r.remaining {
		n = r.remaining
	}
	for i := int64(0); i < n; i++ {
		p[i] = 'x'
	}
	r.remaining -= n
	return int(n), nil
}

// ZeroReader yields n bytes of filler data followed by io.EOF. It never
// allocates the payload up front, so tests can simulate very large streams.
type ZeroReader struct {
	remaining int64
}

// NewZeroReader creates a reader that produces exactly n bytes.
func NewZeroReader(n int64) *ZeroReader {
	return &ZeroReader{remaining: n}
}

// Read implements io.Reader.
func (r *ZeroReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	n := int64(len(p))
	if n > r.remaining {
		n = r.remaining
	}
	for i := int64(0); i < n; i++ {
		p[i] = 0
	}
	r.remaining -= n
	return int(n), nil
}
