// Package sha256 fingerprints archived blobs.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Prefix tags digests with their algorithm.
const Prefix = "sha256:"

// Hasher implements archive.Digester using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Digest returns the prefixed hex digest of data.
func (Hasher) Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:])
}
