package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID("test")
	assert.True(t, strings.HasPrefix(id, "test_"))
	assert.Len(t, id, len("test_")+16)

	assert.NotEqual(t, GenerateID("test"), GenerateID("test"))
}

func TestGenerateSessionID(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateSessionID(), "session_"))
}

func TestGenerateStreamKey(t *testing.T) {
	key := GenerateStreamKey()
	assert.True(t, strings.HasPrefix(key, "live_"))
	assert.Len(t, key, len("live_")+32)
}

func TestStreamFileName(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	name := StreamFileName(at, "webm")
	assert.Equal(t, "streamcast-stream-2026-03-14T09-26-53Z.webm", name)
	assert.NotContains(t, name, ":")
}

func TestClipFileName(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.Equal(t, "streamcast-clip-2026-03-14T09-26-53Z.webm", ClipFileName(at, ".webm"))
}

func TestFileNamesSortByTime(t *testing.T) {
	a := ClipFileName(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), "webm")
	b := ClipFileName(time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC), "webm")
	assert.Less(t, a, b)
}
