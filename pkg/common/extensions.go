package common

import (
	"net/url"
	"path"
	"strings"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

// IsImageFormat tells by the extension whether the path or URL points to an image. Query strings and fragments
// are ignored.
func IsImageFormat(str string) bool {
	if parsed, err := url.Parse(str); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		str = parsed.Path
	}
	ext := strings.ToLower(path.Ext(str))
	for _, imageExt := range imageExtensions {
		if ext == imageExt {
			return true
		}
	}
	return false
}
