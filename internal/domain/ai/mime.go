package ai

import (
	"path/filepath"
	"strings"
)

var videoMimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// VideoMimeType guesses the content type of a recording from its extension.
func VideoMimeType(path string) string {
	if mt, ok := videoMimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "application/octet-stream"
}

// AcceptsVideo reports whether model matches one of the configured
// video-capable model names. An entry ending in "*" matches by prefix.
func AcceptsVideo(model string, videoModels []string) bool {
	model = strings.TrimSpace(model)
	if model == "" {
		return false
	}
	for _, m := range videoModels {
		m = strings.TrimSpace(m)
		if prefix, ok := strings.CutSuffix(m, "*"); ok {
			if prefix != "" && strings.HasPrefix(model, prefix) {
				return true
			}
			continue
		}
		if m == model {
			return true
		}
	}
	return false
}
