package auth

import "golang.org/x/crypto/bcrypt"

// dummyHash is compared against when no user matches a login email, so the
// failure path costs the same whether or not the account exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("courseloop-dummy"), bcrypt.DefaultCost)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
