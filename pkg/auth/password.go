package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is lowered in tests.
var BcryptCost = bcrypt.DefaultCost

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash.
func VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

var dummyHash = sync.OnceValue(func() string {
	h, _ := HashPassword("no-such-user-placeholder")
	return h
})

// DummyHash is a valid hash at BcryptCost that matches no real password.
// Comparing against it costs as much as checking a real user.
func DummyHash() string {
	return dummyHash()
}
