// Package fingerprint derives stable content digests used as cache and
// idempotency keys. Identical content always yields an identical
// fingerprint; any byte difference yields a different one.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the sha256 hex digest of content. Empty content hashes to the
// digest of the empty byte sequence; that is defined behavior, not an error.
func Sum(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}
