package errors

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// MaxBlockHeight bounds block heights accepted from users. It is far above the
// current chain tip and only guards against overflow and typos.
const MaxBlockHeight = 100_000_000

// ValidateBlockHeight validates a block height for use in upstream requests
// and cache keys.
func ValidateBlockHeight(height int64) error {
	if height < 0 {
		return New(ErrCodeInvalidHeight, "block height cannot be negative: %d", height)
	}
	if height > MaxBlockHeight {
		return New(ErrCodeInvalidHeight, "block height too large: %d", height)
	}
	return nil
}

// ParseBlockHeight parses and validates a block height given as text
// (command-line argument, URL segment, room name).
func ParseBlockHeight(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, New(ErrCodeInvalidHeight, "block height cannot be empty")
	}
	h, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, Wrap(ErrCodeInvalidHeight, err, "invalid block height %q", s)
	}
	if err := ValidateBlockHeight(h); err != nil {
		return 0, err
	}
	return h, nil
}

var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidateColor validates a CSS hex color (#rgb or #rrggbb).
func ValidateColor(color string) error {
	if color == "" {
		return New(ErrCodeInvalidColor, "color cannot be empty")
	}
	if !hexColorRegex.MatchString(color) {
		return New(ErrCodeInvalidColor, "invalid color %q (want #rgb or #rrggbb)", color)
	}
	return nil
}

// ValidatePath validates a local file path given on the command line.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidInput, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "path contains invalid characters")
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
