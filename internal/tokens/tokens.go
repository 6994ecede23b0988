// Package tokens generates and hashes the single-use secrets handed out for
// email verification and password reset.
//
// Raw tokens leave the process exactly once (inside a mailed link). Only the
// SHA-256 digest is persisted, so a read-only store compromise yields nothing
// an attacker can redeem.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// SecretSize is the raw token entropy in bytes (256 bits).
const SecretSize = 32

// HashSize is the length of a decoded token hash.
const HashSize = sha256.Size

var errInvalidHash = errors.New("invalid token hash")

// NewRaw returns a fresh URL-safe token carrying SecretSize random bytes.
func NewRaw() (string, error) {
	var secret [SecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(secret[:]), nil
}

// Hash returns the hex SHA-256 digest of a raw token. Deterministic, so the
// digest doubles as the lookup key.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// DecodeHash parses a hex digest produced by Hash.
func DecodeHash(hash string) ([HashSize]byte, error) {
	var out [HashSize]byte
	if len(hash) != hex.EncodedLen(HashSize) {
		return out, errInvalidHash
	}
	if _, err := hex.Decode(out[:], []byte(hash)); err != nil {
		return out, errInvalidHash
	}
	return out, nil
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
