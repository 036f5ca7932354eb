package identity

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldModule   = "module"

	minNameLength = 2
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateName(v *ValidationError, name string) {
	switch {
	case name == "":
		v.add(FieldName, "Name is required")
	case utf8.RuneCountInString(name) < minNameLength:
		v.add(FieldName, fmt.Sprintf("Name must be at least %d characters", minNameLength))
	}
}

func validateEmail(v *ValidationError, email string) {
	switch {
	case email == "":
		v.add(FieldEmail, "Email is required")
	case !emailPattern.MatchString(email):
		v.add(FieldEmail, "Please enter a valid email address")
	}
}

// validatePassword applies the length rule only when minLen > 1; login
// passes 0.
func validatePassword(v *ValidationError, password string, minLen int) {
	switch {
	case password == "":
		v.add(FieldPassword, "Password is required")
	case minLen > 1 && utf8.RuneCountInString(password) < minLen:
		v.add(FieldPassword, fmt.Sprintf("Password must be at least %d characters", minLen))
	}
}
