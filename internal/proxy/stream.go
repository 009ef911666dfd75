package proxy

import (
	"io"
	"net/http"
)

// cappedBuffer counts every byte written but retains at most cap bytes.
// Keeps streaming bodies from growing telemetry memory without bound.
type cappedBuffer struct {
	buf       []byte
	cap       int
	size      int64
	truncated bool
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{cap: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.size += int64(len(p))
	room := b.cap - len(b.buf)
	switch {
	case room >= len(p):
		b.buf = append(b.buf, p...)
	case room > 0:
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
	default:
		b.truncated = true
	}
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte   { return b.buf }
func (b *cappedBuffer) Size() int64     { return b.size }
func (b *cappedBuffer) Truncated() bool { return b.truncated }

// copyFlush relays src to w chunk by chunk, flushing after each chunk so the
// client sees bytes as the upstream produces them.
func copyFlush(w http.ResponseWriter, src io.Reader, chunkSize int) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, chunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
