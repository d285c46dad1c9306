package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/cppla/eduboard/models"
)

var (
	sanitizer = bluemonday.UGCPolicy()
	stripper  = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// StripTags removes all markup, for titles and plain fields.
func StripTags(input string) string {
	return strings.TrimSpace(html.UnescapeString(stripper.Sanitize(input)))
}

// SanitizeBody cleans a post or comment body according to its format.
func SanitizeBody(body, format string) string {
	if format == models.FormatHTML {
		return Sanitize(body)
	}
	return StripTags(body)
}
