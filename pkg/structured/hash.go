package structured

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// Canonical returns the canonical serialization of the value: JSON with map
// keys sorted recursively. Two values that are Equal produce identical
// canonical bytes regardless of key insertion order.
func (v Value) Canonical() []byte {
	var buf bytes.Buffer
	// writeJSON only fails on NaN/Inf numbers, which the decoders never
	// produce; a failed write leaves a prefix that still hashes stably.
	_ = writeJSON(&buf, v, true)
	return buf.Bytes()
}

// Digest returns the SHA-256 hex digest of the canonical serialization. This
// is the content hash used for record deduplication.
func (v Value) Digest() string {
	sum := sha256.Sum256(v.Canonical())
	return hex.EncodeToString(sum[:])
}
