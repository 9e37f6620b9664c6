// Package pdftest generates small real PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/go-pdf/fpdf"
)

// Options shape a generated document.
type Options struct {
	Pages int

	// Size is an fpdf page size name such as "Letter" or "A4".
	// Default "Letter".
	Size string

	Title  string
	Author string

	// UserPassword, when set, encrypts the document.
	UserPassword  string
	OwnerPassword string
}

// Build renders a document with one line of text per page.
func Build(opts Options) ([]byte, error) {
	if opts.Pages <= 0 {
		opts.Pages = 1
	}
	if opts.Size == "" {
		opts.Size = "Letter"
	}

	pdf := fpdf.New("P", "pt", opts.Size, "")
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, false)
	}
	if opts.Author != "" {
		pdf.SetAuthor(opts.Author, false)
	}
	if opts.UserPassword != "" {
		owner := opts.OwnerPassword
		if owner == "" {
			owner = opts.UserPassword + "-owner"
		}
		pdf.SetProtection(fpdf.CnProtectPrint, opts.UserPassword, owner)
	}

	for i := 1; i <= opts.Pages; i++ {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 24)
		pdf.Cell(200, 40, fmt.Sprintf("Page %d", i))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustBuild is Build for tests; it fails t on error.
func MustBuild(t testing.TB, opts Options) []byte {
	t.Helper()
	data, err := Build(opts)
	if err != nil {
		t.Fatalf("build fixture PDF: %v", err)
	}
	return data
}
