//go:build !fitz

package pdfcpuengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSheetRasterizerDefault(t *testing.T) {
	assert.False(t, FitzEnabled)
	assert.IsType(t, SheetRasterizer{}, New().rasterizer)
}
