// Package enginetest provides an in-memory engine for exercising pdfview
// without a real PDF backend.
package enginetest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"

	"github.com/jmgilman/go/errors"

	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/errcode"
)

// Letter is a US Letter page in PDF units.
var Letter = engine.NewBox(0, 0, 612, 792)

// Engine is a configurable fake. The zero value serves one-page Letter
// documents.
type Engine struct {
	// Pages is the page count of every document served (default 1).
	Pages int
	// Box is the page size (default Letter).
	Box engine.Box
	// Password, when set, makes every document encrypted with it.
	Password string
	// Err, when set, fails every load with it.
	Err error
	// RenderErr, when set, fails painting of the listed page numbers.
	RenderErr map[int]error
	// Metadata is returned by every document.
	Metadata engine.Metadata
	// Gate, when set, blocks loads until it is closed.
	Gate chan struct{}

	loads atomic.Int32
	mu    sync.Mutex
	docs  []*Document
}

// Loads returns how many times Load was called.
func (e *Engine) Loads() int {
	return int(e.loads.Load())
}

// Documents returns every document the engine produced, in order.
func (e *Engine) Documents() []*Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Document(nil), e.docs...)
}

// Load implements engine.Engine.
func (e *Engine) Load(ctx context.Context, params engine.Params) *engine.LoadingTask {
	e.loads.Add(1)
	return engine.NewLoadingTask(ctx, func(ctx context.Context, task *engine.LoadingTask) (engine.Document, error) {
		if e.Gate != nil {
			select {
			case <-e.Gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data := params.Data
		if data == nil {
			data = []byte("%PDF-1.7\n% " + params.Path + params.URL + "\n%%EOF\n")
		}
		total := int64(len(data))
		task.ReportProgress(0, total)

		if e.Err != nil {
			return nil, errors.Wrap(e.Err, errcode.LoadFailed, "fake engine rejected document")
		}

		if e.Password != "" {
			pw := params.Password
			attempted := pw != ""
			for pw != e.Password {
				reason := engine.NeedPassword
				if attempted {
					reason = engine.IncorrectPassword
				}
				next, err := task.RequestPassword(ctx, reason)
				if err != nil {
					return nil, err
				}
				pw, attempted = next, true
			}
		}

		task.ReportProgress(total, total)

		doc := e.newDocument(data)
		e.mu.Lock()
		e.docs = append(e.docs, doc)
		e.mu.Unlock()
		return doc, nil
	})
}

func (e *Engine) newDocument(data []byte) *Document {
	pages := e.Pages
	if pages <= 0 {
		pages = 1
	}
	box := e.Box
	if box.Width == 0 || box.Height == 0 {
		box = Letter
	}
	meta := e.Metadata
	meta.ContentLength = int64(len(data))
	return &Document{
		NumPagesValue: pages,
		Box:           box,
		Meta:          meta,
		Bytes:         data,
		RenderErr:     e.RenderErr,
	}
}

// NewDocument builds a standalone document, as if loaded elsewhere.
func NewDocument(pages int) *Document {
	return (&Engine{Pages: pages}).newDocument([]byte("%PDF-1.7\n%%EOF\n"))
}

// Document is a fake loaded document.
type Document struct {
	NumPagesValue int
	Box           engine.Box
	Meta          engine.Metadata
	Bytes         []byte
	RenderErr     map[int]error

	destroys atomic.Int32
	renders  atomic.Int32
}

// NumPages implements engine.Document.
func (d *Document) NumPages() int {
	return d.NumPagesValue
}

// Page implements engine.Document.
func (d *Document) Page(ctx context.Context, number int) (engine.Page, error) {
	if number < 1 || number > d.NumPagesValue {
		return nil, errors.Newf(errors.CodeNotFound, "page %d out of range (1-%d)", number, d.NumPagesValue)
	}
	return &Page{doc: d, number: number}, nil
}

// Metadata implements engine.Document.
func (d *Document) Metadata(ctx context.Context) (engine.Metadata, error) {
	return d.Meta, nil
}

// Data implements engine.Document.
func (d *Document) Data(ctx context.Context) ([]byte, error) {
	if d.Destroyed() {
		return nil, errors.New(errcode.DownloadFailed, "document destroyed")
	}
	return d.Bytes, nil
}

// Destroy implements engine.Document.
func (d *Document) Destroy() error {
	d.destroys.Add(1)
	return nil
}

// Destroyed reports whether Destroy was called.
func (d *Document) Destroyed() bool {
	return d.destroys.Load() > 0
}

// DestroyCount returns how many times Destroy was called.
func (d *Document) DestroyCount() int {
	return int(d.destroys.Load())
}

// Renders returns how many page renders ran.
func (d *Document) Renders() int {
	return int(d.renders.Load())
}

// Page is a fake page that paints a flat colour derived from its number.
type Page struct {
	doc    *Document
	number int
}

// Number implements engine.Page.
func (p *Page) Number() int {
	return p.number
}

// Viewport implements engine.Page.
func (p *Page) Viewport(scale float64, rotation int) engine.Viewport {
	return engine.NewViewport(p.doc.Box, scale, rotation)
}

// Render implements engine.Page.
func (p *Page) Render(ctx context.Context, dst draw.Image, vp engine.Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := p.doc.RenderErr[p.number]; ok {
		return fmt.Errorf("page %d: %w", p.number, err)
	}
	p.doc.renders.Add(1)
	draw.Draw(dst, dst.Bounds(), image.NewUniform(PageColor(p.number)), image.Point{}, draw.Src)
	return nil
}

// PageColor is the colour a fake page paints.
func PageColor(number int) color.RGBA {
	return color.RGBA{R: uint8(number * 40), G: 0x80, B: 0xff, A: 0xff}
}
