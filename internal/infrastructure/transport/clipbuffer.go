package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"streamcast/pkg/utils"
)

// ClipBuffer keeps the most recent stream chunks for clip export.
// The first chunk of a recording carries the container header, so it
// is pinned separately from the ring: a saved clip is header plus the
// retained tail, which players treat like a stream joined mid-way.
type ClipBuffer struct {
	mu       sync.Mutex
	capacity int
	ext      string
	header   []byte
	chunks   [][]byte
}

func NewClipBuffer(capacity int) *ClipBuffer {
	if capacity <= 0 {
		capacity = 30
	}
	return &ClipBuffer{capacity: capacity, ext: "webm"}
}

// SetExtension records the container extension of the current
// recording, used for the clip file name.
func (b *ClipBuffer) SetExtension(ext string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ext = ext
}

func (b *ClipBuffer) Add(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.header == nil {
		b.header = chunk
		return
	}
	// The pinned header counts against capacity, so the tail ring
	// holds at most capacity-1 chunks.
	b.chunks = append(b.chunks, chunk)
	if tail := b.capacity - 1; len(b.chunks) > tail {
		b.chunks = b.chunks[len(b.chunks)-tail:]
	}
}

// Save writes the retained clip to dir and returns the file path.
func (b *ClipBuffer) Save(dir string) (string, error) {
	b.mu.Lock()
	header := b.header
	chunks := make([][]byte, len(b.chunks))
	copy(chunks, b.chunks)
	ext := b.ext
	b.mu.Unlock()

	if header == nil && len(chunks) == 0 {
		return "", fmt.Errorf("clip buffer is empty")
	}

	path := filepath.Join(dir, utils.ClipFileName(time.Now(), ext))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create clip file: %w", err)
	}
	defer f.Close()

	if header != nil {
		if _, err := f.Write(header); err != nil {
			return "", fmt.Errorf("failed to write clip: %w", err)
		}
	}
	for _, chunk := range chunks {
		if _, err := f.Write(chunk); err != nil {
			return "", fmt.Errorf("failed to write clip: %w", err)
		}
	}
	return path, nil
}

func (b *ClipBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.header = nil
	b.chunks = nil
}

func (b *ClipBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.chunks)
	if b.header != nil {
		n++
	}
	return n
}
