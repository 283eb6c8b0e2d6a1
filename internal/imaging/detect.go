package imaging

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	// Decoders registered for DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var formats = map[string]struct {
	contentType string
	ext         string
}{
	"jpeg": {"image/jpeg", ".jpg"},
	"png":  {"image/png", ".png"},
	"gif":  {"image/gif", ".gif"},
	"webp": {"image/webp", ".webp"},
	"bmp":  {"image/bmp", ".bmp"},
	"tiff": {"image/tiff", ".tiff"},
}

// DetectContentType decodes only the image header of data and returns its
// MIME type and file extension.
func DetectContentType(data []byte) (contentType, ext string, err error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("not a supported image: %w", err)
	}
	f, ok := formats[format]
	if !ok {
		return "", "", fmt.Errorf("unsupported image format %q", format)
	}
	return f.contentType, f.ext, nil
}

// IsInlineImage reports whether s is a self-describing data URI carrying an image,
// e.g. "data:image/png;base64,iVBOR...".
func IsInlineImage(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < len("data:image/") || !strings.EqualFold(s[:len("data:image/")], "data:image/") {
		return false
	}
	comma := strings.IndexByte(s, ',')
	return comma > len("data:image/") && comma < len(s)-1
}
