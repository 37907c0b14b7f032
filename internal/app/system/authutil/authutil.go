// Package authutil holds the credential rules shared by the auth handlers,
// the admin management screens and mewsctl.
package authutil

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for passwords and MPINs.
const BcryptCost = 12

// MinPasswordLength is the shortest password accepted on change or create.
const MinPasswordLength = 8

var (
	ErrPasswordTooShort = errors.New("Password must be at least 8 characters")
	ErrBadMPIN          = errors.New("MPIN must be 4 to 6 digits")

	mpinPattern   = regexp.MustCompile(`^\d{4,6}$`)
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigitChars = regexp.MustCompile(`\D`)
)

// HashPassword bcrypt-hashes a password.
func HashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether pw matches hash.
func CheckPassword(hash, pw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// ValidatePassword enforces the minimum length.
func ValidatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// ValidateMPIN checks the 4-6 digit format.
func ValidateMPIN(mpin string) error {
	if !mpinPattern.MatchString(mpin) {
		return ErrBadMPIN
	}
	return nil
}

// PromotionPassword is the initial password of a member promoted to admin.
func PromotionPassword(mobile string) string {
	return "Mews@" + strings.TrimSpace(mobile)
}

// ValidEmail is a loose shape check used before sending mail.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeEmail trims and lowercases.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeMobile strips formatting and a leading +91 so numbers compare
// equal however they were typed.
func NormalizeMobile(s string) string {
	d := nonDigitChars.ReplaceAllString(s, "")
	if len(d) == 12 && strings.HasPrefix(d, "91") {
		d = d[2:]
	}
	return d
}
