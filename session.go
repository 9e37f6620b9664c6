package pdfview

import (
	"context"
	"io"

	"github.com/jmgilman/go/errors"

	"github.com/tsawler/pdfview/download"
	"github.com/tsawler/pdfview/engine"
	"github.com/tsawler/pdfview/loader"
	"github.com/tsawler/pdfview/printing"
	"github.com/tsawler/pdfview/render"
	"github.com/tsawler/pdfview/source"
)

// ErrNoDocument is returned by terminal operations when the source is
// absent or its load failure went to the OnError hook.
var ErrNoDocument = errors.New(errors.CodeNotFound, "no document loaded")

// Session provides a fluent interface over one source. Each configuration
// method returns a new Session, so sessions are safe to share and branch.
//
// Terminal operations load the source through the viewer's instance cache.
// The loaded document stays cached after the operation returns.
type Session struct {
	viewer  *Viewer
	src     source.Source
	options sessionOptions

	// Accumulated error (fail-fast)
	err error
}

// clone creates a shallow copy of the Session with a deep copy of options.
func (s *Session) clone() *Session {
	return &Session{
		viewer:  s.viewer,
		src:     s.src,
		options: s.options.clone(),
		err:     s.err,
	}
}

// ============================================================================
// Configuration Methods (return new Session instance)
// ============================================================================

// Pages selects pages (1-indexed) for Render and Print.
// Multiple calls are cumulative.
//
// Example:
//
//	err := v.Open(src).Pages(1, 3).Print(ctx)
func (s *Session) Pages(pages ...int) *Session {
	newSess := s.clone()
	newSess.options.pages = append(newSess.options.pages, pages...)
	return newSess
}

// PageRange selects a range of pages (1-indexed, inclusive). An empty
// range is an error rather than a request for every page.
func (s *Session) PageRange(start, end int) *Session {
	newSess := s.clone()
	if start > end {
		newSess.err = errors.WithContextMap(
			errors.Newf(errors.CodeInvalidInput, "page range %d-%d is empty", start, end),
			map[string]interface{}{"start": start, "end": end},
		)
		return newSess
	}
	for i := start; i <= end; i++ {
		newSess.options.pages = append(newSess.options.pages, i)
	}
	return newSess
}

// Scale sets the viewport scale of full-size surfaces.
func (s *Session) Scale(scale float64) *Session {
	newSess := s.clone()
	if scale <= 0 {
		newSess.err = errors.Newf(errors.CodeInvalidInput, "scale must be positive, got %g", scale)
	}
	newSess.options.render.Scale = scale
	return newSess
}

// Rotation sets the page rotation in degrees, a multiple of 90.
func (s *Session) Rotation(degrees int) *Session {
	newSess := s.clone()
	if degrees%90 != 0 {
		newSess.err = errors.Newf(errors.CodeInvalidInput, "rotation must be a multiple of 90, got %d", degrees)
	}
	newSess.options.render.Rotation = degrees
	return newSess
}

// Thumbnails makes Render produce thumbnail surfaces.
func (s *Session) Thumbnails() *Session {
	newSess := s.clone()
	newSess.options.render.Thumbnail = true
	return newSess
}

// Concurrent makes Render paint pages in parallel.
func (s *Session) Concurrent() *Session {
	newSess := s.clone()
	newSess.options.render.Concurrent = true
	return newSess
}

// TextLayer makes Render recognise text on painted surfaces.
func (s *Session) TextLayer() *Session {
	newSess := s.clone()
	newSess.options.render.TextLayer = true
	return newSess
}

// DPI sets the print resolution.
func (s *Session) DPI(dpi float64) *Session {
	newSess := s.clone()
	if dpi <= 0 {
		newSess.err = errors.Newf(errors.CodeInvalidInput, "dpi must be positive, got %g", dpi)
	}
	newSess.options.dpi = dpi
	return newSess
}

// Filename overrides the download name and the title shown while printing.
func (s *Session) Filename(name string) *Session {
	newSess := s.clone()
	newSess.options.filename = name
	return newSess
}

// Title sets the title of the staged print document.
func (s *Session) Title(title string) *Session {
	newSess := s.clone()
	newSess.options.title = title
	return newSess
}

// Password sets the password tried first for an encrypted raw source.
func (s *Session) Password(password string) *Session {
	newSess := s.clone()
	raw, ok := s.src.(*source.Raw)
	if !ok || raw == nil {
		newSess.err = errors.New(errors.CodeInvalidInput, "password applies to raw sources only")
		return newSess
	}
	newSess.src = raw.WithPassword(password)
	return newSess
}

// OnPassword sets the password hook. Call retry with a password to resume
// loading; wasWrongPassword reports that the previous one was rejected.
func (s *Session) OnPassword(fn func(retry func(password string), wasWrongPassword bool)) *Session {
	newSess := s.clone()
	newSess.options.hooks.Password = fn
	return newSess
}

// OnProgress sets the load progress hook. total is -1 when unknown.
func (s *Session) OnProgress(fn func(loaded, total int64)) *Session {
	newSess := s.clone()
	newSess.options.hooks.Progress = fn
	return newSess
}

// OnError routes load failures to fn instead of returning them. Terminal
// operations then return ErrNoDocument.
func (s *Session) OnError(fn func(err error)) *Session {
	newSess := s.clone()
	newSess.options.hooks.Error = fn
	return newSess
}

// ============================================================================
// Terminal Operations
// ============================================================================

// Handle loads the source and returns its cached handle. It returns nil,
// nil for an absent source, or when OnError took the failure.
func (s *Session) Handle(ctx context.Context) (*loader.Handle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.viewer.Load(ctx, s.src, s.options.hooks)
}

// document loads the source and fails with ErrNoDocument when there is
// nothing to work on.
func (s *Session) document(ctx context.Context) (engine.Document, error) {
	h, err := s.Handle(ctx)
	if err != nil {
		return nil, err
	}
	if h == nil || h.Document == nil {
		return nil, ErrNoDocument
	}
	return h.Document, nil
}

// PageCount returns the number of pages.
func (s *Session) PageCount(ctx context.Context) (int, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return 0, err
	}
	return doc.NumPages(), nil
}

// Metadata returns the document metadata.
func (s *Session) Metadata(ctx context.Context) (engine.Metadata, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return engine.Metadata{}, err
	}
	return doc.Metadata(ctx)
}

// Render creates a surface per selected page and starts painting them.
// Wait on the returned fragment for the pixels.
func (s *Session) Render(ctx context.Context) (*render.Fragment, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return nil, err
	}
	return s.viewer.renderer.RenderPages(ctx, doc, s.options.pages, s.options.render)
}

// Print stages the selected pages and prints them with the viewer's
// printer.
func (s *Session) Print(ctx context.Context) error {
	if s.viewer.settings.printer == nil {
		return errors.New(errors.CodeInvalidConfig, "no printer configured; use WithPrinter or PrintTo")
	}
	return s.print(ctx, s.viewer.settings.printer)
}

// PrintTo prints the selected pages to w as PDF with headless Chrome.
func (s *Session) PrintTo(ctx context.Context, w io.Writer) error {
	chrome := s.viewer.settings.chrome
	chrome.Output = w
	return s.print(ctx, &chrome)
}

func (s *Session) print(ctx context.Context, printer printing.Printer) error {
	doc, err := s.document(ctx)
	if err != nil {
		return err
	}

	pipeline := printing.New(printer,
		printing.WithTitleSwapper(s.viewer.settings.titles),
		printing.WithTempDir(s.viewer.settings.tempDir),
		printing.WithLogger(s.viewer.logger),
	)
	return pipeline.Print(ctx, doc, printing.Options{
		DPI:      s.options.dpi,
		Pages:    s.options.pages,
		Filename: s.options.filename,
		Title:    s.options.title,
	})
}

// Download hands the document bytes to saver and returns where they went.
func (s *Session) Download(ctx context.Context, saver download.Saver) (string, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return "", err
	}
	return download.DownloadWithLogger(ctx, doc, saver, s.options.filename, s.viewer.logger)
}

// Save downloads the document into the viewer's download directory and
// returns the written path. Existing files are never overwritten.
func (s *Session) Save(ctx context.Context) (string, error) {
	return s.Download(ctx, download.DirSaver{Dir: s.viewer.settings.downloadDir})
}
