package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns a short stable hex digest, good enough for file names.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
