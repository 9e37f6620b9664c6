// Package format provides document format detection for pdfview sources.
package format

import (
	"bytes"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
)

// Format represents a document format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// PDF indicates a PDF document.
	PDF
)

// headerWindow is how far into a file the %PDF- header may start. Readers
// accept leading garbage before the header up to this offset.
const headerWindow = 1024

var pdfMagic = []byte("%PDF-")

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case PDF:
		return "PDF"
	default:
		return "Unknown"
	}
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case PDF:
		return ".pdf"
	default:
		return ""
	}
}

// MediaType returns the MIME type for the format.
func (f Format) MediaType() string {
	switch f {
	case PDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Detect determines format from a filename or URL path extension.
func Detect(name string) Format {
	ext := filepath.Ext(name)
	if strings.Contains(name, "://") || strings.Contains(name, "?") {
		// URLs: ignore the query and fragment.
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			name = name[:i]
		}
		ext = path.Ext(name)
	}
	switch strings.ToLower(ext) {
	case ".pdf":
		return PDF
	default:
		return Unknown
	}
}

// DetectFromMagic checks magic bytes to determine format.
// This is more reliable than extension-based detection.
func DetectFromMagic(data []byte) Format {
	if len(data) > headerWindow {
		data = data[:headerWindow]
	}
	if bytes.Contains(data, pdfMagic) {
		return PDF
	}
	return Unknown
}

// DetectFromContentType maps a Content-Type header value to a format.
func DetectFromContentType(contentType string) Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return Unknown
	}
	switch mediaType {
	case "application/pdf", "application/x-pdf":
		return PDF
	default:
		return Unknown
	}
}

// DetectFromReader inspects the start of the content to determine format.
func DetectFromReader(r io.ReaderAt) (Format, error) {
	magic := make([]byte, headerWindow)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return Unknown, err
	}
	return DetectFromMagic(magic[:n]), nil
}
