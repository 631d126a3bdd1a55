// Package fingerprint provides content hashing for duplicate detection
// and cache key derivation.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
)

// Content returns the hex-encoded SHA-256 digest of data.
func Content(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// File returns the hex-encoded SHA-256 digest of the file at path,
// streaming rather than loading the file into memory.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Key derives a composite cache key from its parts. Parts are joined
// with a separator that cannot appear in hex digests so distinct part
// boundaries never collide.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}
