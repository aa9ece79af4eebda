package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoExpiry = errors.New("credential has no expiry")

// DecodeCredential extracts the embedded claims of a bearer credential
// without verifying its signature. The client never holds the signing
// secret; on its side a credential is judged only by whether it decodes
// and by its expiry.
func DecodeCredential(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, ErrNoExpiry
	}
	return claims, nil
}

// CredentialExpiry returns the decoded expiry of a credential, or an error
// if the credential is malformed or carries no expiry.
func CredentialExpiry(raw string) (time.Time, error) {
	claims, err := DecodeCredential(raw)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}

// ValidCredential reports whether a credential decodes successfully and its
// expiry is strictly in the future.
func ValidCredential(raw string, now time.Time) bool {
	expiry, err := CredentialExpiry(raw)
	if err != nil {
		return false
	}
	return expiry.After(now)
}
