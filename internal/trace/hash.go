package trace

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeTraceHash computes the trace hash of a canonical trace encoding
// (sha256 over the bytes, hex-encoded).
//
// This function assumes the input bytes are already a canonical encoding (e.g., from EpochTrace.CanonicalJSON()).
func ComputeTraceHash(canonicalEncoding []byte) string {
	if len(canonicalEncoding) == 0 {
		return ""
	}
	sum := sha256.Sum256(canonicalEncoding)
	return hex.EncodeToString(sum[:])
}
