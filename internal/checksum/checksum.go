// Package checksum fingerprints post fields for change detection in the index.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fields hashes the given fields in order. Each field is terminated by a NUL
// byte so ("ab", "c") and ("a", "bc") never collide.
func Fields(fields ...string) string {
	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
