package render

import (
	"context"
	"image"
	"runtime"
	"sync"

	"github.com/jmgilman/go/errors"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/errcode"
	"github.com/tsawler/pdfview/internal/logging"
	"github.com/tsawler/pdfview/ocr"
)

// DefaultThumbnailWidth is the pixel width of thumbnail surfaces.
const DefaultThumbnailWidth = 100

// Config selects the surface variant and geometry.
type Config struct {
	// Thumbnail renders fixed-width previews. Scale is ignored.
	Thumbnail bool

	// Scale is the viewport scale for full-size surfaces (default 1).
	Scale float64

	// Rotation in degrees, a multiple of 90.
	Rotation int

	// Concurrent paints pages in parallel instead of in page order.
	Concurrent bool

	// TextLayer runs OCR over each painted surface.
	TextLayer bool
}

// Recognizer extracts text from a painted image.
type Recognizer interface {
	Recognize(img image.Image) (string, error)
}

// Renderer creates and paints surfaces.
type Renderer struct {
	nav         Navigator
	logger      arbor.ILogger
	thumbWidth  int
	concurrency int

	recognizer  Recognizer
	ocrLanguage string
	ocrOnce     sync.Once
	ocrClient   *ocr.Client
	ocrErr      error
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithNavigator sets the target of thumbnail Select actions.
func WithNavigator(nav Navigator) Option {
	return func(r *Renderer) {
		r.nav = nav
	}
}

// WithRecognizer sets the text layer recognizer. Without one the renderer
// opens an ocr.Client the first time a text layer is requested.
func WithRecognizer(rec Recognizer) Option {
	return func(r *Renderer) {
		r.recognizer = rec
	}
}

// WithOCRLanguage sets the Tesseract language(s), such as "eng+deu", of the
// ocr.Client the renderer opens. It has no effect with WithRecognizer.
func WithOCRLanguage(lang string) Option {
	return func(r *Renderer) {
		r.ocrLanguage = lang
	}
}

// WithLogger sets the logger.
func WithLogger(l arbor.ILogger) Option {
	return func(r *Renderer) {
		r.logger = l
	}
}

// WithThumbnailWidth sets the thumbnail width in pixels.
func WithThumbnailWidth(px int) Option {
	return func(r *Renderer) {
		if px > 0 {
			r.thumbWidth = px
		}
	}
}

// WithConcurrency caps parallel painting when Config.Concurrent is set.
// The default is GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// New creates a renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		thumbWidth:  DefaultThumbnailWidth,
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDiscard(r.logger)
	return r
}

// Close releases the OCR client the renderer opened, if any.
func (r *Renderer) Close() error {
	if r.ocrClient != nil {
		return r.ocrClient.Close()
	}
	return nil
}

// CreateSurface returns an unpainted surface sized from the page viewport.
func (r *Renderer) CreateSurface(ctx context.Context, page engine.Page, cfg Config) (*Surface, error) {
	if page == nil {
		return nil, errors.New(errors.CodeInvalidInput, "no page to render")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var vp engine.Viewport
	if cfg.Thumbnail {
		base := page.Viewport(1, cfg.Rotation)
		vp = page.Viewport(float64(r.thumbWidth)/base.Width, cfg.Rotation)
	} else {
		vp = page.Viewport(cfg.Scale, cfg.Rotation)
	}

	return newSurface(page, vp, cfg.Thumbnail, cfg.TextLayer, r.nav), nil
}

// Paint draws the page onto s in the background.
func (r *Renderer) Paint(ctx context.Context, s *Surface) *Painting {
	p := newPainting()
	go func() {
		p.finish(r.paint(ctx, s))
	}()
	return p
}

// RenderDocument creates a surface for every page, 1..N, and starts
// painting them.
func (r *Renderer) RenderDocument(ctx context.Context, doc engine.Document, cfg Config) (*Fragment, error) {
	return r.RenderPages(ctx, doc, nil, cfg)
}

// RenderPages is RenderDocument for a subset of pages, in the order given.
// A nil or empty list means every page.
func (r *Renderer) RenderPages(ctx context.Context, doc engine.Document, pages []int, cfg Config) (*Fragment, error) {
	if doc == nil {
		return nil, errors.New(errors.CodeInvalidInput, "no document to render")
	}

	if len(pages) == 0 {
		pages = make([]int, doc.NumPages())
		for i := range pages {
			pages[i] = i + 1
		}
	}

	surfaces := make([]*Surface, 0, len(pages))
	for _, n := range pages {
		if n < 1 || n > doc.NumPages() {
			return nil, errors.WithContext(
				errors.Newf(errors.CodeInvalidInput, "page %d out of range (1-%d)", n, doc.NumPages()),
				"page", n,
			)
		}
		page, err := doc.Page(ctx, n)
		if err != nil {
			return nil, errors.WithContext(
				errors.Wrap(err, errcode.RenderFailed, "failed to get page"),
				"page", n,
			)
		}
		s, err := r.CreateSurface(ctx, page, cfg)
		if err != nil {
			return nil, err
		}
		surfaces = append(surfaces, s)
	}

	limit := 1
	if cfg.Concurrent {
		limit = r.concurrency
	}

	r.logger.Debug().
		Int("pages", len(surfaces)).
		Bool("thumbnail", cfg.Thumbnail).
		Int("workers", limit).
		Msg("Rendering pages")

	return &Fragment{surfaces: surfaces, painting: r.paintAll(ctx, surfaces, limit)}, nil
}

// paintAll paints surfaces with at most limit in flight. A limit of 1
// paints in order.
func (r *Renderer) paintAll(ctx context.Context, surfaces []*Surface, limit int) *Painting {
	p := newPainting()
	go func() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for _, s := range surfaces {
			s := s
			g.Go(func() error {
				return r.paint(gctx, s)
			})
		}
		p.finish(g.Wait())
	}()
	return p
}

func (r *Renderer) paint(ctx context.Context, s *Surface) error {
	if err := s.Page.Render(ctx, s.Image, s.Viewport); err != nil {
		if errors.GetCode(err) == errors.CodeUnknown {
			err = errors.Wrap(err, errcode.RenderFailed, "failed to paint page")
		}
		return errors.WithContext(err, "page", s.Number())
	}
	s.painted.Store(true)

	if s.textLayer {
		rec, err := r.textRecognizer()
		if err != nil {
			s.setText("", err)
		} else {
			s.setText(rec.Recognize(s.Image))
		}
		if _, err := s.Text(); err != nil {
			r.logger.Warn().Err(err).Int("page", s.Number()).Msg("Text layer unavailable")
		}
	}
	return nil
}

func (r *Renderer) textRecognizer() (Recognizer, error) {
	if r.recognizer != nil {
		return r.recognizer, nil
	}
	r.ocrOnce.Do(func() {
		client, err := ocr.New()
		if err != nil {
			r.ocrErr = err
			return
		}
		if r.ocrLanguage != "" {
			if err := client.SetLanguage(r.ocrLanguage); err != nil {
				_ = client.Close()
				r.ocrErr = errors.WithContext(
					errors.Wrap(err, errors.CodeInvalidConfig, "failed to set OCR language"),
					"language", r.ocrLanguage,
				)
				return
			}
		}
		r.ocrClient = client
	})
	if r.ocrErr != nil {
		return nil, r.ocrErr
	}
	return r.ocrClient, nil
}
