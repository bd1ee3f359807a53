package service

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// GetContentBook maps common extensions to a content type.
func GetContentBook(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	case ".tar":
		return "application/x-tar"
	case ".gz":
		return "application/gzip"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

// DetectContentType prefers the extension and sniffs the bytes when it is unknown.
func DetectContentType(filename string, data []byte) string {
	if ct := GetContentBook(filename); ct != "application/octet-stream" {
		return ct
	}
	return mimetype.Detect(data).String()
}
