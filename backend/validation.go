package backend

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

func invalid(msg string) error {
	return &APIError{Message: msg, Code: CodeValidation, Status: 400}
}

// ValidateURL trims raw and checks it parses as an absolute URL.
func ValidateURL(raw string) (string, error) {
	if raw == "" {
		return "", invalid("URL is required")
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", invalid("URL cannot be empty")
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
		return "", invalid("Please enter a valid URL (e.g., https://example.com)")
	}
	return s, nil
}

// ValidateText trims text and bounds its length in characters.
func ValidateText(text, field string, minLen, maxLen int) (string, error) {
	if field == "" {
		field = "Text"
	}
	if text == "" {
		return "", invalid(field + " is required")
	}
	s := strings.TrimSpace(text)
	n := utf8.RuneCountInString(s)
	if n < minLen {
		plural := ""
		if minLen > 1 {
			plural = "s"
		}
		return "", invalid(fmt.Sprintf("%s must be at least %d character%s", field, minLen, plural))
	}
	if maxLen > 0 && n > maxLen {
		return "", invalid(fmt.Sprintf("%s must be less than %d characters", field, maxLen))
	}
	return s, nil
}

func ValidateAPISelection(api1, api2 string) error {
	if api1 == "" || api2 == "" {
		return invalid("Please select both APIs")
	}
	if api1 == api2 {
		return invalid("Please select two different APIs")
	}
	return nil
}
