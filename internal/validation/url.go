package validation

import (
	"fmt"
	"net/url"
)

// ValidateSite validates the configured public site URL. Only http and
// https origins are accepted.
func ValidateSite(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("site URL must not carry a query or fragment")
	}
	return nil
}
