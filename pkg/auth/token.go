package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the hex sha256 of a token string. It is unsalted on
// purpose: the same token must map to the same fingerprint in every
// process, since the fingerprint is both a cache-key component and the
// hash persisted in the session audit row.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
