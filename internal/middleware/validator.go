package middleware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bryanwahyu/leafscan/internal/domain/classification"
)

// Input validation and sanitization utilities

var cropPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,31}$`)

// ValidateCrop checks the crop path segment against the configured list.
// Every failure wraps classification.ErrUnknownCrop.
func ValidateCrop(crop string, allowed []string) error {
	if crop == "" {
		return fmt.Errorf("%w: crop cannot be empty", classification.ErrUnknownCrop)
	}
	if !cropPattern.MatchString(crop) {
		return fmt.Errorf("%w: invalid crop format", classification.ErrUnknownCrop)
	}
	if slices.Contains(allowed, crop) {
		return nil
	}
	return fmt.Errorf("%w: %s (allowed: %s)", classification.ErrUnknownCrop, crop, strings.Join(allowed, ", "))
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// SanitizeFilename keeps only the base name of an upload, without control characters.
func SanitizeFilename(name string) string {
	name = SanitizeString(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "\n", "")
	name = strings.ReplaceAll(name, "\t", " ")
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." {
		return "upload"
	}
	return base
}
