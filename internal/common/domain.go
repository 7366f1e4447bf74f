package common

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeDomain reduces a domain-or-URL input to a bare hostname.
// Accepts "example.com", "www.example.com", "https://example.com/about" and
// returns "example.com" in all cases.
func NormalizeDomain(input string) (string, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	if s == "" {
		return "", fmt.Errorf("empty domain")
	}

	if strings.Contains(s, "://") {
		parsed, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("invalid URL %q: %w", input, err)
		}
		s = parsed.Hostname()
	} else {
		// Strip any path or port on a bare host
		if i := strings.IndexAny(s, "/?#"); i >= 0 {
			s = s[:i]
		}
		if i := strings.LastIndex(s, ":"); i >= 0 && !strings.Contains(s, "]") {
			s = s[:i]
		}
	}

	s = strings.TrimPrefix(s, "www.")
	if s == "" || !strings.Contains(s, ".") {
		return "", fmt.Errorf("invalid domain: %q", input)
	}

	return s, nil
}
