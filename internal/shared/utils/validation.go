package utils

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// MaxURLLength bounds URLs accepted from clients
const MaxURLLength = 8192

var (
	// ErrURLRequired means no URL was supplied
	ErrURLRequired = errors.New("URL parameter required")
	// ErrURLInvalid means the URL is not an absolute http(s) URL
	ErrURLInvalid = errors.New("invalid URL")
	// ErrURLInsecure means a plain http URL was refused
	ErrURLInsecure = errors.New("plain http URLs are not allowed")
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateURL parses raw as an absolute http or https URL. Plain http is
// accepted only when allowInsecure is set.
func ValidateURL(raw string, allowInsecure bool) (*url.URL, error) {
	if raw == "" {
		return nil, ErrURLRequired
	}
	if err := ValidateString(raw, "url", 1, MaxURLLength, true); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrURLInvalid, err)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, ErrURLInvalid
	}
	switch u.Scheme {
	case "https":
		return u, nil
	case "http":
		if allowInsecure {
			return u, nil
		}
		return nil, ErrURLInsecure
	default:
		return nil, ErrURLInvalid
	}
}
