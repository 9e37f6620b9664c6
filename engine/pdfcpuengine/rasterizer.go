package pdfcpuengine

import (
	"context"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/tsawler/pdfview/engine"
)

// Rasterizer paints a page onto dst at the given viewport.
type Rasterizer interface {
	Rasterize(ctx context.Context, page *Page, dst draw.Image, vp engine.Viewport) error
}

// RasterizerFunc adapts a function to Rasterizer.
type RasterizerFunc func(ctx context.Context, page *Page, dst draw.Image, vp engine.Viewport) error

// Rasterize implements Rasterizer.
func (f RasterizerFunc) Rasterize(ctx context.Context, page *Page, dst draw.Image, vp engine.Viewport) error {
	return f(ctx, page, dst, vp)
}

// SheetRasterizer paints the blank sheet of paper a page is printed on,
// sized to the viewport. Paper defaults to white.
type SheetRasterizer struct {
	Paper color.Color
}

// Rasterize implements Rasterizer.
func (s SheetRasterizer) Rasterize(ctx context.Context, page *Page, dst draw.Image, vp engine.Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	paper := s.Paper
	if paper == nil {
		paper = color.White
	}
	r := vp.Bounds().Intersect(dst.Bounds())
	draw.Draw(dst, r, image.NewUniform(paper), image.Point{}, draw.Src)
	return nil
}
