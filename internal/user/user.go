package user

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// hashCost matches the work factor existing password hashes were created with.
const hashCost = 8

type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Provider     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser is a registration before it is stored. Password is plain text and
// may be empty for accounts created without credentials.
type NewUser struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"omitempty,min=6"`
	Provider bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (n NewUser) Validate() error {
	return validate.Struct(n)
}

// HashIfPresent hashes a plain password. An empty password yields an empty
// hash so updates that do not touch the password keep the stored one.
func HashIfPresent(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored hash.
func (u *User) CheckPassword(plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain))
	return err == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var ErrEmailTaken = errors.New("email already registered")
