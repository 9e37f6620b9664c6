package download

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tsawler/pdfview/engine"
)

func TestFilenamePrecedence(t *testing.T) {
	tests := []struct {
		name        string
		override    string
		disposition string
		want        string
	}{
		{"override wins", "mine.pdf", `attachment; filename="theirs.pdf"`, "mine.pdf"},
		{"override gets extension", "mine", "", "mine.pdf"},
		{"override keeps upper-case extension", "SCAN.PDF", "", "SCAN.PDF"},
		{"disposition", "", `attachment; filename="theirs.pdf"`, "theirs.pdf"},
		{"disposition gets extension", "", `inline; filename=report`, "report.pdf"},
		{"default", "", "", DefaultFilename},
		{"blank override falls through", "  ", `attachment; filename="theirs.pdf"`, "theirs.pdf"},
		{"disposition without filename", "", "attachment", DefaultFilename},
		{"override path stripped", "../../etc/passwd", "", "passwd.pdf"},
		{"windows path stripped", `C:\Users\me\doc.pdf`, "", "doc.pdf"},
		{"dots only", "..", "", DefaultFilename},
		{"control characters removed", "a\x00b\nc.pdf", "", "abc.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filename(tt.override, engine.Metadata{ContentDisposition: tt.disposition})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDispositionFilename(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"quoted", `attachment; filename="annual report.pdf"`, "annual report.pdf"},
		{"token", `attachment; filename=report.pdf`, "report.pdf"},
		{"utf-8 extended", `attachment; filename*=UTF-8''na%C3%AFve%20plan.pdf`, "naïve plan.pdf"},
		{"latin-1 extended", `attachment; filename*=iso-8859-1'en'%A3%20rates.pdf`, "£ rates.pdf"},
		{"extended beats plain", `attachment; filename="fallback.pdf"; filename*=UTF-8''%E2%82%AC.pdf`, "€.pdf"},
		{"normalised to NFC", `attachment; filename*=UTF-8''Cafe%CC%81.pdf`, "Caf\u00e9.pdf"},
		{"unknown charset falls back", `attachment; filename="plain.pdf"; filename*=x-bogus''abc.pdf`, "plain.pdf"},
		{"unquoted spaces", `attachment; filename=my report.pdf`, "my report.pdf"},
		{"escaped quote", `attachment; filename="say \"hi\".pdf"`, `say "hi".pdf`},
		{"empty", "", ""},
		{"no filename", "inline", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DispositionFilename(tt.header))
		})
	}
}
