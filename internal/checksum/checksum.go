// Package checksum produces the content hashes that identify atoms.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Normalize canonicalizes chunk text before hashing: CRLF to LF,
// trailing whitespace stripped per line, outer whitespace trimmed.
// Re-chunking content that differs only in line endings or trailing
// spaces therefore hashes identically.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// SumText returns the content hash of normalized text.
func SumText(text string) string {
	return Sum([]byte(Normalize(text)))
}
