package contacts

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is deliberately above the library default; hashing is
// the one place we want to burn CPU.
const DefaultBcryptCost = 14

// BcryptHasher implements PasswordAuthenticator on bcrypt with a tunable
// work factor. The zero value uses DefaultBcryptCost.
type BcryptHasher struct {
	Cost int
}

var _ PasswordAuthenticator = BcryptHasher{}

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return passwordHashCost()
	}
	return b.Cost
}

// HashPassword will generate a password hash
func (b BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", goerrors.New("password must not be empty", goerrors.CategoryValidation)
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost())
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// ComparePasswordAndHash will validate the given cleartext password matches
// the hashed password. Any failure, including a malformed stored hash,
// reports ErrInvalidPassword; verification fails closed, it never panics.
func (b BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		// Corrupt digest in storage. Same outward failure, different log line.
		return goerrors.Wrap(err, ErrInvalidPassword.Category, ErrInvalidPassword.Message).
			WithTextCode(ErrInvalidPassword.TextCode)
	}
	return nil
}

// HashPassword hashes with the default work factor.
func HashPassword(password string) (string, error) {
	return BcryptHasher{}.HashPassword(password)
}

// ComparePasswordAndHash verifies with the default hasher.
func ComparePasswordAndHash(password, hash string) error {
	return BcryptHasher{}.ComparePasswordAndHash(password, hash)
}
