package validation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const MaxNameLength = 100

// ValidateName validates a display name
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return errors.New("name is required")
	}

	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return errors.New("name is too long (max 100 characters)")
	}

	return nil
}

// DisplayName picks the first non-blank candidate, falling back to the email
// local part, and clips the result to MaxNameLength runes.
func DisplayName(email string, candidates ...string) string {
	name := ""
	for _, c := range candidates {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			name = trimmed
			break
		}
	}
	if name == "" {
		name = LocalPart(email)
	}

	runes := []rune(name)
	if len(runes) > MaxNameLength {
		name = string(runes[:MaxNameLength])
	}
	return name
}
