package security

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var ErrWeakPassword = errors.New("password does not meet policy")

// Hash password hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// PolicyError lists every rule a candidate password broke.
type PolicyError struct {
	Problems []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("password does not meet policy: %v", e.Problems)
}

func (e *PolicyError) Unwrap() error { return ErrWeakPassword }

// CheckPolicy enforces min length plus at least one upper, lower and digit.
func CheckPolicy(plain string, minLength int) error {
	if minLength < 8 {
		minLength = 8
	}

	var upper, lower, digit bool
	n := 0
	for _, r := range plain {
		n++
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	var problems []string
	if n < minLength {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", minLength))
	}
	if !upper {
		problems = append(problems, "must contain an uppercase letter")
	}
	if !lower {
		problems = append(problems, "must contain a lowercase letter")
	}
	if !digit {
		problems = append(problems, "must contain a digit")
	}

	if len(problems) > 0 {
		return &PolicyError{Problems: problems}
	}
	return nil
}
