package constants

import "strings"

// AllowedExtensions holds the allowed file extensions for flow uploads.
var AllowedExtensions = map[string]struct{}{
	"csv": {},
}

// MaxUploadBytes is the default ceiling for a single uploaded capture.
const MaxUploadBytes = 10 << 20 // 10 MiB

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// AllowedExt reports whether a normalized extension is accepted for upload.
func AllowedExt(ext string) bool {
	_, ok := AllowedExtensions[ext]
	return ok
}
