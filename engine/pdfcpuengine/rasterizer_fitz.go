//go:build fitz

package pdfcpuengine

import (
	"context"
	"image"
	"image/color"

	"github.com/gen2brain/go-fitz"
	"github.com/jmgilman/go/errors"
	"golang.org/x/image/draw"

	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/errcode"
)

// FitzEnabled reports whether the MuPDF rasterizer was compiled in.
const FitzEnabled = true

func defaultRasterizer() Rasterizer {
	return FitzRasterizer{}
}

// FitzRasterizer paints page content with MuPDF through go-fitz.
// Paper is drawn under the page and defaults to white.
type FitzRasterizer struct {
	Paper color.Color
}

// Rasterize implements Rasterizer.
func (f FitzRasterizer) Rasterize(ctx context.Context, page *Page, dst draw.Image, vp engine.Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := page.doc.raw()
	if err != nil {
		return err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return errors.Wrap(err, errcode.RenderFailed, "failed to open document with MuPDF")
	}
	defer doc.Close()

	img, err := doc.ImageDPI(page.Number()-1, vp.Scale*72)
	if err != nil {
		return errors.WithContext(
			errors.Wrap(err, errcode.RenderFailed, "MuPDF failed to render page"),
			"dpi", vp.Scale*72,
		)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	paper := f.Paper
	if paper == nil {
		paper = color.White
	}
	r := vp.Bounds().Intersect(dst.Bounds())
	draw.Draw(dst, r, image.NewUniform(paper), image.Point{}, draw.Src)

	src := rotate(img, vp.Rotation)
	// MuPDF rounds the pixmap outwards, so it can be a pixel off the viewport.
	draw.CatmullRom.Scale(dst, vp.Bounds(), src, src.Bounds(), draw.Over, nil)
	return nil
}

// rotate turns img clockwise by a quarter-turn multiple.
func rotate(img *image.RGBA, degrees int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var out *image.RGBA
	var at func(x, y int) (int, int)
	switch engine.NormalizeRotation(degrees) {
	case 90:
		out = image.NewRGBA(image.Rect(0, 0, h, w))
		at = func(x, y int) (int, int) { return h - 1 - y, x }
	case 180:
		out = image.NewRGBA(image.Rect(0, 0, w, h))
		at = func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }
	case 270:
		out = image.NewRGBA(image.Rect(0, 0, h, w))
		at = func(x, y int) (int, int) { return y, w - 1 - x }
	default:
		return img
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := at(x, y)
			out.SetRGBA(dx, dy, img.RGBAAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}
