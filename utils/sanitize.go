package utils

import (
	"strings"
	"unicode"
)

// SanitizeHeaderFilename removes characters that can break a Content-Disposition header.
func SanitizeHeaderFilename(name string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if clean == "" {
		return "download"
	}
	return clean
}
