package render

import (
	"image"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/tsawler/pdfview/engine"
)

// Surface attributes and classes.
const (
	AttrPage      = "data-page"
	AttrThumbnail = "data-thumbnail"

	ClassPage      = "pdf-page-item"
	ClassThumbnail = "pdf-thumb-item"
)

// Navigator moves a viewer to a page.
type Navigator interface {
	ScrollToPage(page int)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(page int)

// ScrollToPage implements Navigator.
func (f NavigatorFunc) ScrollToPage(page int) {
	f(page)
}

// Surface is a page-sized image a page is painted onto.
type Surface struct {
	Page     engine.Page
	Viewport engine.Viewport
	Image    *image.RGBA
	Class    string

	attrs     map[string]string
	thumbnail bool
	textLayer bool
	nav       Navigator
	painted   atomic.Bool

	mu      sync.Mutex
	text    string
	textErr error
}

func newSurface(page engine.Page, vp engine.Viewport, thumbnail, textLayer bool, nav Navigator) *Surface {
	n := strconv.Itoa(page.Number())
	s := &Surface{
		Page:      page,
		Viewport:  vp,
		Image:     image.NewRGBA(vp.Bounds()),
		Class:     ClassPage,
		attrs:     map[string]string{AttrPage: n},
		thumbnail: thumbnail,
		textLayer: textLayer,
		nav:       nav,
	}
	if thumbnail {
		s.Class = ClassThumbnail
		s.attrs[AttrThumbnail] = n
	}
	return s
}

// Number returns the page number the surface shows.
func (s *Surface) Number() int {
	return s.Page.Number()
}

// Thumbnail reports whether the surface is a thumbnail.
func (s *Surface) Thumbnail() bool {
	return s.thumbnail
}

// Attr returns an attribute value, or "" when unset.
func (s *Surface) Attr(name string) string {
	return s.attrs[name]
}

// Attrs returns a copy of the surface attributes.
func (s *Surface) Attrs() map[string]string {
	out := make(map[string]string, len(s.attrs))
	for k, v := range s.attrs {
		out[k] = v
	}
	return out
}

// Select runs the thumbnail action: scroll the navigator to this page.
// It reports false for full-size surfaces and when no navigator is set.
func (s *Surface) Select() bool {
	if !s.thumbnail || s.nav == nil {
		return false
	}
	s.nav.ScrollToPage(s.Number())
	return true
}

// Painted reports whether the page finished painting onto the surface.
func (s *Surface) Painted() bool {
	return s.painted.Load()
}

// Text returns the recognised text layer. The error is set when the layer
// was requested but recognition failed or OCR is unavailable.
func (s *Surface) Text() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.textErr
}

func (s *Surface) setText(text string, err error) {
	s.mu.Lock()
	s.text, s.textErr = text, err
	s.mu.Unlock()
}
