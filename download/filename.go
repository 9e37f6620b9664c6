package download

import (
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/unicode/norm"

	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/format"
)

// DefaultFilename is used when neither an override nor the response
// metadata names the file.
const DefaultFilename = "download.pdf"

var (
	extendedFilename = regexp.MustCompile(`(?i)(?:^|;)\s*filename\*\s*=\s*([^;]+)`)
	plainFilename    = regexp.MustCompile(`(?i)(?:^|;)\s*filename\s*=\s*("(?:[^"\\]|\\.)*"|[^;]*)`)
)

// Filename picks the saved file name: the override, then the filename in
// the Content-Disposition the document was served with, then
// DefaultFilename. The result has no directory part and ends in ".pdf".
func Filename(override string, meta engine.Metadata) string {
	for _, candidate := range []string{override, DispositionFilename(meta.ContentDisposition)} {
		if name := sanitize(candidate); name != "" {
			return ensurePDF(name)
		}
	}
	return DefaultFilename
}

// DispositionFilename extracts the filename from a Content-Disposition
// header. An RFC 5987 filename* value wins over a plain filename. It
// returns "" when the header names no file.
func DispositionFilename(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	if m := extendedFilename.FindStringSubmatch(header); m != nil {
		if name, ok := decodeExtended(strings.TrimSpace(m[1])); ok && name != "" {
			return norm.NFC.String(name)
		}
	}

	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := params["filename"]; name != "" {
			return norm.NFC.String(name)
		}
	}

	// Lenient fallback for headers mime rejects, such as unquoted spaces.
	if m := plainFilename.FindStringSubmatch(header); m != nil {
		name := strings.TrimSpace(m[1])
		if len(name) >= 2 && strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) {
			name = strings.ReplaceAll(name[1:len(name)-1], `\"`, `"`)
		}
		return norm.NFC.String(name)
	}
	return ""
}

// decodeExtended decodes charset'language'percent-encoded.
func decodeExtended(value string) (string, bool) {
	value = strings.Trim(value, `"`)
	parts := strings.SplitN(value, "'", 3)
	if len(parts) != 3 {
		return "", false
	}

	raw, err := url.PathUnescape(parts[2])
	if err != nil {
		return "", false
	}

	charset := strings.TrimSpace(parts[0])
	if charset == "" {
		charset = "utf-8"
	}
	enc, err := ianaindex.MIME.Encoding(charset)
	if err != nil || enc == nil {
		return "", false
	}
	decoded, err := enc.NewDecoder().String(raw)
	if err != nil {
		return "", false
	}
	return decoded, true
}

// sanitize strips directories, control characters and surrounding dots and
// spaces from a file name.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	return strings.Trim(name, " .")
}

func ensurePDF(name string) string {
	if format.Detect(name) == format.PDF {
		return name
	}
	return name + format.PDF.Extension()
}
