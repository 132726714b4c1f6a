package transport

import (
	"sync"
)

// chunkingWriter accumulates muxer output and releases it in
// timeslice-sized chunks. The byte stream stays continuous: each
// chunk is simply the next byte range, the first one carrying the
// container header.
type chunkingWriter struct {
	mu  sync.Mutex
	buf []byte
}

func (w *chunkingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Cut returns everything written since the last cut, or nil when no
// bytes accumulated.
func (w *chunkingWriter) Cut() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) == 0 {
		return nil
	}
	chunk := w.buf
	w.buf = nil
	return chunk
}
