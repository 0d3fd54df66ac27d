// Package auth provides password hashing and the in-process session
// registry for the competition API. Sessions are opaque bearer tokens kept
// in memory; at competition scale a restart simply logs everyone out.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned when a password does not match its hash.
var ErrBadCredentials = errors.New("auth: invalid credentials")

const minPasswordLength = 8

// HashPassword hashes a plaintext password with bcrypt. Rejects passwords
// shorter than eight characters before hashing.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", errors.New("auth: password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a stored bcrypt hash.
func VerifyPassword(hash, password string) error {
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrBadCredentials
	}
	return nil
}
