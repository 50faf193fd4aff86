package shortener

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/serroba/redirect-engine/internal/base62"
)

// Caller-chosen and pooled codes are 6 to 8 characters. Snowflake codes are
// longer: a 63-bit id needs up to base62.MaxWidth characters.
const (
	MinAliasLength = 6
	MaxAliasLength = 8

	// MaxURLLength bounds target URLs.
	MaxURLLength = 2048
)

// Reserved words collide with routes served next to GET /{code}.
var reservedAliases = map[string]struct{}{
	"api":     {},
	"docs":    {},
	"health":  {},
	"metrics": {},
	"openapi": {},
	"schemas": {},
	"shorten": {},
}

var aliasCodec = base62.MustNew()

// ValidateTargetURL accepts absolute http and https URLs with a host.
func ValidateTargetURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	if len(raw) > MaxURLLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidURL, MaxURLLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not http or https", ErrInvalidURL, u.Scheme)
	}

	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return nil
}

// ValidateAlias checks length, alphabet and reserved words.
func ValidateAlias(alias string) error {
	if n := len(alias); n < MinAliasLength || n > MaxAliasLength {
		return fmt.Errorf("%w: length must be between %d and %d", ErrInvalidAlias, MinAliasLength, MaxAliasLength)
	}

	if !aliasCodec.Valid(alias) {
		return fmt.Errorf("%w: only letters and digits are allowed", ErrInvalidAlias)
	}

	if _, ok := reservedAliases[strings.ToLower(alias)]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidAlias, alias)
	}

	return nil
}

// plausibleCode reports whether s could have been issued at all.
func plausibleCode(s Code) bool {
	return len(s) >= MinAliasLength && len(s) <= base62.MaxWidth && aliasCodec.Valid(string(s))
}
