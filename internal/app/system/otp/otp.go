// Package otp generates and checks the one-time codes members use to log
// in by mobile. Codes are stored only as SHA-256 digests.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
)

// Length is the number of digits in a code.
const Length = 6

var codePattern = regexp.MustCompile(`^\d{6}$`)

// Generate returns a random 6-digit code in [100000, 999999].
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Hash returns the hex SHA-256 digest of code.
func Hash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether code hashes to hash.
func Verify(code, hash string) bool {
	if hash == "" {
		return false
	}
	got := Hash(code)
	return subtle.ConstantTimeCompare([]byte(got), []byte(hash)) == 1
}

// WellFormed reports whether s looks like a code.
func WellFormed(s string) bool {
	return codePattern.MatchString(s)
}
