package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateID generates a random ID with prefix
func GenerateID(prefix string) string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

// GenerateSessionID generates a unique session ID
func GenerateSessionID() string {
	return GenerateID("session")
}

// GeneratePeerID generates a unique peer ID
func GeneratePeerID() string {
	return GenerateID("peer")
}

// GenerateStreamKey generates a random ingest stream key
func GenerateStreamKey() string {
	b := make([]byte, 16)
	rand.Read(b)
	return "live_" + hex.EncodeToString(b)
}
