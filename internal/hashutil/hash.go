// Package hashutil provides the SHA-256 hashing and hex-encoding primitives
// shared by the credential store and the integrity-hash check, plus a
// constant-time comparison for password verification. The on-disk
// credential format stores raw SHA-256 hex (see internal/credstore), so
// the hashing primitive here is sha256 directly.
package hashutil

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Size is the length in bytes of a SHA-256 digest.
const Size = sha256.Size

// Digest is a raw 32-byte SHA-256 hash.
type Digest [Size]byte

// Sum256 hashes data and returns the raw digest.
func Sum256(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// Hex returns the lowercase 64-character hex encoding of d.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// DecodeHex parses a 64-character lowercase hex string into a Digest.
// It fails if s has an odd length, a length other than 64 hex characters,
// or contains a byte that is not a hex digit.
func DecodeHex(s string) (Digest, error) {
	var d Digest
	if len(s) != Size*2 {
		return d, fmt.Errorf("hashutil: hex digest must be %d characters, got %d", Size*2, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("hashutil: invalid hex digest: %w", err)
	}
	copy(d[:], raw)
	return d, nil
}

// ConstantTimeEqual reports whether a and b are equal using a
// constant-time comparison, avoiding the timing side channel an
// early-exit byte loop would introduce for password verification.
func ConstantTimeEqual(a, b Digest) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
