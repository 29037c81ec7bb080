package auth

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost matches the cost factor used upstream.
const DefaultBcryptCost = 10

// HashPassword hashes a password using bcrypt.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPasswordHash checks if a password matches a hash. A malformed or
// empty hash returns false rather than an error, so accounts without a
// stored password are indistinguishable from a wrong password.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
