package identity

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return NewFailure(KindValidation, "password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return NewFailure(KindValidation, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		return NewFailure(KindValidation, "password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return NewFailure(KindValidation, "password must contain at least one number")
	}

	return nil
}

// ValidateEmail performs a basic shape check before the email goes anywhere
// near the network.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return NewFailure(KindValidation, "email is required")
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return NewFailure(KindValidation, "invalid email format")
	}
	return nil
}

// NormalizePhone converts a free-form phone number to E.164: a leading '+'
// followed by digits only. Formatting characters are stripped.
func NormalizePhone(phone string) (string, error) {
	var digits strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
			continue
		}
		switch r {
		case '+', ' ', '-', '(', ')', '.':
			// formatting characters, dropped
		default:
			return "", NewFailure(KindValidation, fmt.Sprintf("invalid character %q in phone number", r))
		}
	}
	if digits.Len() < 7 || digits.Len() > 15 {
		return "", NewFailure(KindValidation, "phone number must have between 7 and 15 digits")
	}
	return "+" + digits.String(), nil
}
