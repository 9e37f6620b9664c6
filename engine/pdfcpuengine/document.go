package pdfcpuengine

import (
	"context"
	"image/draw"
	"sync"

	"github.com/jmgilman/go/errors"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/errcode"
)

// Document is a document parsed by pdfcpu.
type Document struct {
	mu        sync.RWMutex
	data      []byte
	boxes     []engine.Box
	meta      engine.Metadata
	raster    Rasterizer
	destroyed bool
}

func newDocument(pdfCtx *model.Context, data []byte, raster Rasterizer) (*Document, error) {
	dims, err := pdfCtx.PageDims()
	if err != nil {
		return nil, errors.Wrap(err, errcode.LoadFailed, "failed to read page sizes")
	}

	boxes := make([]engine.Box, len(dims))
	for i, d := range dims {
		boxes[i] = engine.NewBox(0, 0, d.Width, d.Height)
	}

	return &Document{
		data:   data,
		boxes:  boxes,
		raster: raster,
		meta: engine.Metadata{
			Title:         pdfCtx.Title,
			Author:        pdfCtx.Author,
			Subject:       pdfCtx.Subject,
			Keywords:      pdfCtx.Keywords,
			Creator:       pdfCtx.Creator,
			Producer:      pdfCtx.Producer,
			ContentLength: int64(len(data)),
		},
	}, nil
}

// NumPages implements engine.Document.
func (d *Document) NumPages() int {
	return len(d.boxes)
}

// Page implements engine.Document.
func (d *Document) Page(ctx context.Context, number int) (engine.Page, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	if number < 1 || number > len(d.boxes) {
		return nil, errors.WithContext(
			errors.Newf(errors.CodeNotFound, "page %d out of range (1-%d)", number, len(d.boxes)),
			"page", number,
		)
	}
	return &Page{doc: d, number: number, box: d.boxes[number-1]}, nil
}

// Metadata implements engine.Document.
func (d *Document) Metadata(ctx context.Context) (engine.Metadata, error) {
	if err := d.alive(); err != nil {
		return engine.Metadata{}, err
	}
	return d.meta, nil
}

// Data implements engine.Document. The returned slice is a copy.
func (d *Document) Data(ctx context.Context) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.destroyed {
		return nil, errDestroyed()
	}
	return append([]byte(nil), d.data...), nil
}

// Destroy implements engine.Document.
func (d *Document) Destroy() error {
	d.mu.Lock()
	d.destroyed = true
	d.data = nil
	d.mu.Unlock()
	return nil
}

// raw returns the document bytes without copying.
func (d *Document) raw() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.destroyed {
		return nil, errDestroyed()
	}
	return d.data, nil
}

func (d *Document) alive() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.destroyed {
		return errDestroyed()
	}
	return nil
}

func errDestroyed() error {
	return errors.New(errors.CodeConflict, "document has been destroyed")
}

// Page is one page of a Document.
type Page struct {
	doc    *Document
	number int
	box    engine.Box
}

// Number implements engine.Page.
func (p *Page) Number() int {
	return p.number
}

// Box returns the page size in PDF units.
func (p *Page) Box() engine.Box {
	return p.box
}

// Viewport implements engine.Page.
func (p *Page) Viewport(scale float64, rotation int) engine.Viewport {
	return engine.NewViewport(p.box, scale, rotation)
}

// Render implements engine.Page.
func (p *Page) Render(ctx context.Context, dst draw.Image, vp engine.Viewport) error {
	if err := p.doc.alive(); err != nil {
		return err
	}
	if err := p.doc.raster.Rasterize(ctx, p, dst, vp); err != nil {
		return errors.WithContext(
			errors.Wrap(err, errcode.RenderFailed, "failed to rasterise page"),
			"page", p.number,
		)
	}
	return nil
}
