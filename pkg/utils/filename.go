package utils

import (
	"fmt"
	"strings"
	"time"
)

// timestampToken renders t in RFC 3339 with characters unsafe for
// filenames replaced, so the name sorts lexicographically by time.
func timestampToken(t time.Time) string {
	s := t.UTC().Format(time.RFC3339)
	s = strings.ReplaceAll(s, ":", "-")
	s = strings.ReplaceAll(s, ".", "-")
	return s
}

// StreamFileName builds the output file name for a recorded stream.
func StreamFileName(start time.Time, ext string) string {
	return fmt.Sprintf("streamcast-stream-%s.%s", timestampToken(start), strings.TrimPrefix(ext, "."))
}

// ClipFileName builds the output file name for a saved clip.
func ClipFileName(at time.Time, ext string) string {
	return fmt.Sprintf("streamcast-clip-%s.%s", timestampToken(at), strings.TrimPrefix(ext, "."))
}
