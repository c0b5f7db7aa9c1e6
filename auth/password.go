package auth

import (
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var hashCost atomic.Int64

func init() {
	hashCost.Store(12)
}

// SetPasswordHashCost overrides the bcrypt cost, tests lower it
func SetPasswordHashCost(cost int) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	hashCost.Store(int64(cost))
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), int(hashCost.Load()))
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrAuthentication
		}
		return err
	}
	return nil
}

// RandomPassword returns a throwaway cleartext password
func RandomPassword() string {
	return uuid.NewString()[:12]
}
