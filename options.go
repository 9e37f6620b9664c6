package pdfview

import (
	"github.com/ternarybob/arbor"

	"github.com/tsawler/pdfview/cache"
	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/loader"
	"github.com/tsawler/pdfview/printing"
	"github.com/tsawler/pdfview/render"
)

// settings are the viewer-wide defaults.
type settings struct {
	engine       engine.Engine
	logger       arbor.ILogger
	cache        *loader.Cache
	capacity     int
	singleFlight bool

	navigator   render.Navigator
	recognizer  render.Recognizer
	ocrLanguage string
	thumbWidth  int
	concurrency int
	render      render.Config

	printer printing.Printer
	titles  printing.TitleSwapper
	chrome  printing.ChromePrinter
	dpi     float64
	tempDir string

	downloadDir string
}

func defaultSettings() settings {
	return settings{
		capacity:    cache.DefaultCapacity,
		thumbWidth:  render.DefaultThumbnailWidth,
		render:      render.Config{Scale: 1},
		dpi:         printing.DefaultDPI,
		downloadDir: ".",
	}
}

// Option configures a Viewer.
type Option func(*settings)

// WithEngine sets the PDF engine.
func WithEngine(e engine.Engine) Option {
	return func(s *settings) {
		s.engine = e
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(l arbor.ILogger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithCacheCapacity sets how many documents stay resident.
func WithCacheCapacity(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithCache makes the viewer use an existing instance cache.
func WithCache(c *loader.Cache) Option {
	return func(s *settings) {
		s.cache = c
	}
}

// WithSingleFlight coalesces concurrent loads of the same source.
func WithSingleFlight() Option {
	return func(s *settings) {
		s.singleFlight = true
	}
}

// WithNavigator receives the pages selected thumbnails scroll to.
func WithNavigator(n render.Navigator) Option {
	return func(s *settings) {
		s.navigator = n
	}
}

// WithRecognizer sets the OCR backend for text layers.
func WithRecognizer(r render.Recognizer) Option {
	return func(s *settings) {
		s.recognizer = r
	}
}

// WithOCRLanguage sets the Tesseract language(s) used for text layers,
// such as "eng" or "eng+fra".
func WithOCRLanguage(lang string) Option {
	return func(s *settings) {
		s.ocrLanguage = lang
	}
}

// WithThumbnailWidth sets the thumbnail width in pixels.
func WithThumbnailWidth(px int) Option {
	return func(s *settings) {
		if px > 0 {
			s.thumbWidth = px
		}
	}
}

// WithConcurrency caps parallel painting for concurrent renders.
func WithConcurrency(n int) Option {
	return func(s *settings) {
		s.concurrency = n
	}
}

// WithRenderDefaults sets the render configuration sessions start from.
func WithRenderDefaults(cfg render.Config) Option {
	return func(s *settings) {
		s.render = cfg
	}
}

// WithPrinter sets the printer Session.Print uses.
func WithPrinter(p printing.Printer) Option {
	return func(s *settings) {
		s.printer = p
	}
}

// WithTitleSwapper sets the title swapped to the print filename.
func WithTitleSwapper(t printing.TitleSwapper) Option {
	return func(s *settings) {
		s.titles = t
	}
}

// WithChrome sets the Chrome settings Session.PrintTo uses. Output is
// ignored.
func WithChrome(c printing.ChromePrinter) Option {
	return func(s *settings) {
		s.chrome = c
	}
}

// WithPrintDPI sets the default print resolution.
func WithPrintDPI(dpi float64) Option {
	return func(s *settings) {
		if dpi > 0 {
			s.dpi = dpi
		}
	}
}

// WithPrintTempDir sets where print jobs are staged.
func WithPrintTempDir(dir string) Option {
	return func(s *settings) {
		s.tempDir = dir
	}
}

// WithDownloadDir sets the directory Session.Save writes to.
func WithDownloadDir(dir string) Option {
	return func(s *settings) {
		if dir != "" {
			s.downloadDir = dir
		}
	}
}

// sessionOptions holds the configuration of one Session.
type sessionOptions struct {
	// Page selection (1-indexed, nil means all pages)
	pages []int

	render render.Config

	// Print and download
	dpi      float64
	filename string
	title    string

	hooks loader.Hooks
}

// defaultOptions returns session options seeded from the viewer defaults.
func defaultOptions(s settings) sessionOptions {
	return sessionOptions{
		pages:  nil,
		render: s.render,
		dpi:    s.dpi,
	}
}

// clone creates a deep copy of sessionOptions.
func (o sessionOptions) clone() sessionOptions {
	newOpts := o
	newOpts.pages = nil

	// Deep copy pages slice
	if o.pages != nil {
		newOpts.pages = make([]int, len(o.pages))
		copy(newOpts.pages, o.pages)
	}

	return newOpts
}
