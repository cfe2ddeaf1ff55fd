package constants

import "strings"

// Media types accepted by the vision model.
const (
	MediaTypePDF  = "application/pdf"
	MediaTypeJPEG = "image/jpeg"
)

// AllowedExtensions holds the supported input file extensions.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MediaTypeForExt maps a file extension to its media type. ok is false for
// extensions outside AllowedExtensions.
func MediaTypeForExt(ext string) (mediaType string, ok bool) {
	e := NormalizeExt(ext)
	if _, allowed := AllowedExtensions[e]; !allowed {
		return "", false
	}
	if e == "pdf" {
		return MediaTypePDF, true
	}
	return MediaTypeJPEG, true
}
