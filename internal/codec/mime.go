package codec

import (
	"path/filepath"
	"strings"
)

var extensionMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".jpe":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".avif": "image/avif",
}

// MIMEForPath returns the image MIME type implied by path's extension.
func MIMEForPath(path string) (string, bool) {
	mime, ok := extensionMIME[strings.ToLower(filepath.Ext(path))]
	return mime, ok
}

// RestoredMIME maps a restored original's extension back to its MIME type.
// Unknown extensions are treated as JPEG.
func RestoredMIME(path string) string {
	if mime, ok := MIMEForPath(path); ok {
		return mime
	}
	return "image/jpeg"
}

// MIMEForFormat returns the MIME type produced by a target format.
func MIMEForFormat(format string) string {
	return "image/" + Extension(format)
}
