package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var namePolicy = bluemonday.StrictPolicy()

// SanitizeName strips any markup from user-supplied names (display
// names, custom watch labels) before they reach storage or emails.
func SanitizeName(input string) string {
	return strings.TrimSpace(namePolicy.Sanitize(input))
}
