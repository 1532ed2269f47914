package shortcode

import (
	"fmt"
	"net/url"
)

const (
	DefaultMinLength = 3
	DefaultMaxLength = 10
)

// IsValidURL reports whether s is an absolute http or https URL. It never panics.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// Validator checks custom shortcode syntax against configured length bounds.
type Validator struct {
	MinLength int
	MaxLength int
}

func NewValidator(minLength, maxLength int) Validator {
	return Validator{MinLength: minLength, MaxLength: maxLength}
}

func (v Validator) IsValidShortcode(s string) bool {
	if len(s) < v.MinLength || len(s) > v.MaxLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isAlphanumeric(s[i]) {
			return false
		}
	}
	return true
}

// Rule describes the accepted syntax in user-facing form.
func (v Validator) Rule() string {
	return fmt.Sprintf("Shortcode must be %d-%d alphanumeric characters", v.MinLength, v.MaxLength)
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
