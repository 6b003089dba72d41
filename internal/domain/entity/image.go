package entity

import (
	"net/http"
	"path/filepath"
	"strings"
)

// Image is a captured or uploaded picture held in memory until upload.
type Image struct {
	Data     []byte // encoded bytes (jpeg, png, webp)
	MIMEType string
	Filename string
}

// NewImage sniffs the MIME type when it is not supplied.
func NewImage(data []byte, filename, mimeType string) Image {
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return Image{Data: data, MIMEType: mimeType, Filename: filename}
}

// IsImage reports whether the MIME type is an image type.
func (i Image) IsImage() bool {
	return strings.HasPrefix(i.MIMEType, "image/") && len(i.Data) > 0
}

// Extension returns the file extension without the dot.
func (i Image) Extension() string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(i.Filename)), "."); ext != "" {
		return ext
	}
	switch i.MIMEType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	}
	return "jpg"
}
