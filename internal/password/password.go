// Package password wraps bcrypt hashing for local credentials.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Work factor for new hashes. Raising it only affects newly stored
// credentials; existing hashes verify with their embedded cost.
const hashCost = 12

// Hash returns a salted bcrypt hash of password.
func Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches the stored hash. Any bcrypt
// failure, including a malformed hash, reports false.
func Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
