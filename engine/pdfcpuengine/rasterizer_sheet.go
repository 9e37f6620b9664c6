//go:build !fitz

package pdfcpuengine

// FitzEnabled reports whether the MuPDF rasterizer was compiled in.
// Rebuild with -tags fitz to paint page content.
const FitzEnabled = false

func defaultRasterizer() Rasterizer {
	return SheetRasterizer{}
}
