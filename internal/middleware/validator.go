package middleware

import (
	"fmt"
	"path/filepath"
	"strings"
)

var allowedVideoExts = map[string]bool{
	".mp4": true,
	".mov": true,
	".avi": true,
}

// ValidateVideoName checks the uploaded file name and returns its normalized extension.
func ValidateVideoName(name string) (string, error) {
	name = SanitizeString(name)
	if name == "" {
		return "", fmt.Errorf("file name cannot be empty")
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedVideoExts[ext] {
		return "", fmt.Errorf("unsupported video type %q (allowed: .mp4, .mov, .avi)", ext)
	}
	return ext, nil
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
