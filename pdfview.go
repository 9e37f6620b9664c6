// Package pdfview provides a viewer component over a PDF engine: document
// loading through a bounded instance cache, page rendering, printing and
// download.
//
// Basic usage:
//
//	v := pdfview.New()
//	defer v.Close()
//
//	frag, err := v.Open(source.File("report.pdf")).Render(ctx)
//	if err != nil {
//	    // handle error
//	}
//	if err := frag.Wait(ctx); err != nil {
//	    // handle error
//	}
//
// With options:
//
//	path, err := v.Open(source.URL("https://example.com/invoice.pdf")).
//	    OnPassword(func(retry func(string), wrong bool) { retry(ask(wrong)) }).
//	    OnProgress(func(loaded, total int64) { bar.Set(loaded, total) }).
//	    Filename("invoice-42").
//	    Save(ctx)
//
// Loaded documents stay in the viewer's instance cache, at most five by
// default, oldest evicted first. Eviction does not destroy a document; call
// Viewer.Clear or Viewer.Close for that.
package pdfview

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ternarybob/arbor"

	"github.com/tsawler/pdfview/config"
	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/engine/pdfcpuengine"
	"github.com/tsawler/pdfview/internal/logging"
	"github.com/tsawler/pdfview/loader"
	"github.com/tsawler/pdfview/printing"
	"github.com/tsawler/pdfview/render"
	"github.com/tsawler/pdfview/source"
)

// Viewer owns an instance cache and the components that work on the
// documents in it.
type Viewer struct {
	settings settings
	logger   arbor.ILogger
	loader   *loader.Loader
	renderer *render.Renderer

	current   atomic.Int64
	closeOnce sync.Once
}

// New creates a viewer. Without WithEngine it loads documents with pdfcpu.
func New(opts ...Option) *Viewer {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	s.logger = logging.OrDiscard(s.logger)

	v := &Viewer{settings: s, logger: s.logger}

	eng := s.engine
	if eng == nil {
		eng = pdfcpuengine.New(pdfcpuengine.WithLogger(s.logger))
	}

	c := s.cache
	if c == nil {
		c = loader.NewCache(s.capacity)
		c.OnEvict(func(key source.Key, h *loader.Handle) {
			v.logger.Debug().
				Str("source", key.String()).
				Int("capacity", c.Cap()).
				Msg("Evicted document from instance cache")
		})
	}

	loaderOpts := []loader.Option{loader.WithCache(c), loader.WithLogger(s.logger)}
	if s.singleFlight {
		loaderOpts = append(loaderOpts, loader.WithSingleFlight())
	}
	v.loader = loader.New(eng, loaderOpts...)

	renderOpts := []render.Option{
		render.WithNavigator(v),
		render.WithLogger(s.logger),
		render.WithThumbnailWidth(s.thumbWidth),
		render.WithConcurrency(s.concurrency),
		render.WithOCRLanguage(s.ocrLanguage),
	}
	if s.recognizer != nil {
		renderOpts = append(renderOpts, render.WithRecognizer(s.recognizer))
	}
	v.renderer = render.New(renderOpts...)

	return v
}

// FromConfig creates a viewer from loaded configuration. opts are applied
// after the configuration.
func FromConfig(cfg *config.Config, opts ...Option) (*Viewer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout, err := cfg.PrintTimeout()
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithLogger(logging.New(cfg.Logging.Level)),
		WithCacheCapacity(cfg.Cache.Capacity),
		WithThumbnailWidth(cfg.Render.ThumbnailWidth),
		WithOCRLanguage(cfg.Render.OCRLanguage),
		WithRenderDefaults(render.Config{
			Scale:      cfg.Render.Scale,
			Rotation:   cfg.Render.Rotation,
			Concurrent: cfg.Render.Concurrent,
			TextLayer:  cfg.Render.TextLayer,
		}),
		WithPrintDPI(cfg.Print.DPI),
		WithPrintTempDir(cfg.Print.TempDir),
		WithChrome(printing.ChromePrinter{
			ExecPath:  cfg.Print.ChromePath,
			Headful:   !cfg.Print.Headless,
			NoSandbox: cfg.Print.NoSandbox,
			Flags:     cfg.Print.ExtraFlags,
			Timeout:   timeout,
		}),
		WithDownloadDir(cfg.Download.Dir),
	}
	if cfg.Cache.SingleFlight {
		base = append(base, WithSingleFlight())
	}
	return New(append(base, opts...)...), nil
}

// Load resolves src through the instance cache. See loader.Loader.Transform.
func (v *Viewer) Load(ctx context.Context, src source.Source, hooks loader.Hooks) (*loader.Handle, error) {
	return v.loader.Transform(ctx, src, hooks)
}

// Clear detaches the handle's hooks and destroys its document. It is a
// no-op for nil or already-cleared handles.
func (v *Viewer) Clear(h *loader.Handle) {
	if h == nil {
		return
	}
	loader.Clear(h)
	v.logger.Debug().Str("source", h.Key.String()).Msg("Cleared document")
}

// Cache returns the viewer's instance cache.
func (v *Viewer) Cache() *loader.Cache {
	return v.loader.Cache()
}

// Open starts a fluent session on src.
func (v *Viewer) Open(src source.Source) *Session {
	return &Session{
		viewer:  v,
		src:     src,
		options: defaultOptions(v.settings),
	}
}

// ScrollToPage records page as the current page and forwards it to the
// navigator, if one is set. Thumbnail surfaces call it when selected.
func (v *Viewer) ScrollToPage(page int) {
	if page < 1 {
		return
	}
	v.current.Store(int64(page))
	if v.settings.navigator != nil {
		v.settings.navigator.ScrollToPage(page)
	}
}

// CurrentPage returns the last page scrolled to, or 0.
func (v *Viewer) CurrentPage() int {
	return int(v.current.Load())
}

// Close clears every cached document and releases renderer resources.
// It is safe to call more than once.
func (v *Viewer) Close() error {
	var err error
	v.closeOnce.Do(func() {
		for _, h := range v.Cache().Values() {
			v.Clear(h)
		}
		err = v.renderer.Close()
	})
	return err
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	count := pdfview.Must(v.Open(source.File("document.pdf")).PageCount(ctx))
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

var (
	_ render.Navigator = (*Viewer)(nil)
	_ engine.Engine    = (*pdfcpuengine.Engine)(nil)
)
